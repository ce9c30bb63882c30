package server

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"colorflow-server/internal/ai"
	"colorflow-server/internal/payments"
	"colorflow-server/internal/pi"
)

// setupTestDB creates a test database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := t.TempDir() + "/test.db"

	// Open database connection with foreign keys enabled
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Set goose dialect for SQLite
	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatalf("Failed to set goose dialect: %v", err)
	}

	// Run migrations
	if err := goose.Up(db, "../../db/migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	return db
}

type testDBService struct {
	db *sql.DB
}

func (s *testDBService) Health() map[string]string {
	return map[string]string{"status": "up"}
}

func (s *testDBService) Close() error { return nil }

func (s *testDBService) DB() *sql.DB { return s.db }

// fakePi is a controllable stand-in for the Pi platform client
type fakePi struct {
	configured  bool
	meErr       error
	approveErr  error
	completeErr error
	validateErr error
	user        pi.User
	approved    []string
	completed   []string
}

func (f *fakePi) Configured() bool { return f.configured }

func (f *fakePi) Me(ctx context.Context, accessToken string) (*pi.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	user := f.user
	if user.UID == "" {
		user.UID = "pi-uid-1"
		user.Username = "pioneer"
	}
	return &user, nil
}

func (f *fakePi) Approve(ctx context.Context, paymentID string) (*pi.PaymentDTO, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	f.approved = append(f.approved, paymentID)
	return &pi.PaymentDTO{Identifier: paymentID}, nil
}

func (f *fakePi) Complete(ctx context.Context, paymentID, txid string) (*pi.PaymentDTO, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.completed = append(f.completed, paymentID)
	return &pi.PaymentDTO{Identifier: paymentID}, nil
}

func (f *fakePi) ValidateKey(ctx context.Context) error {
	return f.validateErr
}

var errUpstream = errors.New("upstream unavailable")

// newTestServer assembles a Server without touching the environment
func newTestServer(t *testing.T) (*Server, *fakePi) {
	t.Helper()

	db := setupTestDB(t)
	pm := NewPersistenceManager(db)
	fake := &fakePi{configured: true}

	s := &Server{
		environment:        "test",
		db:                 &testDBService{db: db},
		persistenceManager: pm,
		connectionManager:  NewConnectionManager(),
		gameManager:        NewGameManager(),
		sessionManager:     NewSessionManager(),
		connectionHealth:   NewConnectionHealth(),
		aiLimiter:          NewRateLimiter(aiLimiterMax, aiLimiterWindow),
		aiClient:           ai.NewClient(nil),
		piClient:           fake,
		dispatcher:         payments.NewDispatcher(pm),
		walletAddress:      "GTESTWALLETADDRESS",
		sandboxDelay:       0,
		done:               make(chan struct{}),
	}

	t.Cleanup(func() {
		s.aiClient.Close()
	})

	return s, fake
}

func waitForCoins(t *testing.T, pm *PersistenceManager, playerID string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := pm.LoadProfile(playerID)
		if err == nil && rec.Coins == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec, err := pm.LoadProfile(playerID)
	if err != nil {
		t.Fatalf("Profile %s never appeared: %v", playerID, err)
	}
	t.Fatalf("Profile %s has %d coins, want %d", playerID, rec.Coins, want)
}
