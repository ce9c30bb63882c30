package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pressly/goose/v3"

	"colorflow-server/internal/ai"
	"colorflow-server/internal/database"
	"colorflow-server/internal/payments"
	"colorflow-server/internal/pi"
)

// aiLimiterMax and aiLimiterWindow bound the AI proxy per caller.
const (
	aiLimiterMax    = 60
	aiLimiterWindow = 60 * time.Second
)

// PiAPI is the slice of the Pi platform client the handlers need. Tests
// swap in a fake; production uses *pi.Client.
type PiAPI interface {
	Configured() bool
	Me(ctx context.Context, accessToken string) (*pi.User, error)
	Approve(ctx context.Context, paymentID string) (*pi.PaymentDTO, error)
	Complete(ctx context.Context, paymentID, txid string) (*pi.PaymentDTO, error)
	ValidateKey(ctx context.Context) error
}

type Server struct {
	port        int
	environment string

	db                 database.Service
	persistenceManager *PersistenceManager
	connectionManager  *ConnectionManager
	gameManager        *GameManager
	sessionManager     *SessionManager
	connectionHealth   *ConnectionHealth

	aiLimiter *RateLimiter
	generator ai.Generator
	aiClient  *ai.Client

	piClient   PiAPI
	dispatcher *payments.Dispatcher

	walletAddress string
	webhookSecret string
	sandbox       bool
	sandboxDelay  time.Duration

	done chan struct{}
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	// Initialize database
	dbService := database.New()

	// Run migrations
	if err := runMigrations(dbService.DB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	persistenceManager := NewPersistenceManager(dbService.DB())

	// Gemini generator is optional; without the key the AI endpoint answers
	// a config error and gameplay text comes from the fallback table.
	var generator ai.Generator
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		gemini, err := ai.NewGeminiGenerator(context.Background(), apiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Printf("Warning: Failed to initialize Gemini client: %v", err)
		} else {
			generator = gemini
		}
	} else {
		log.Println("GEMINI_API_KEY not set, AI text endpoint disabled")
	}

	sandboxDelay := 3 * time.Second
	if raw := os.Getenv("SANDBOX_COMPLETE_DELAY"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
			sandboxDelay = time.Duration(secs) * time.Second
		}
	}

	server := &Server{
		port:               port,
		environment:        os.Getenv("ENVIRONMENT"),
		db:                 dbService,
		persistenceManager: persistenceManager,
		connectionManager:  NewConnectionManager(),
		gameManager:        NewGameManager(),
		sessionManager:     NewSessionManager(),
		connectionHealth:   NewConnectionHealth(),
		aiLimiter:          NewRateLimiter(aiLimiterMax, aiLimiterWindow),
		generator:          generator,
		aiClient:           ai.NewClient(generator),
		piClient:           pi.NewClient(os.Getenv("PI_API_KEY"), os.Getenv("PI_API_URL")),
		dispatcher:         payments.NewDispatcher(persistenceManager),
		walletAddress:      os.Getenv("PI_WALLET_ADDRESS"),
		webhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		sandbox:            os.Getenv("PI_SANDBOX") == "true",
		sandboxDelay:       sandboxDelay,
		done:               make(chan struct{}),
	}

	if server.sandbox {
		log.Println("Pi sandbox mode enabled: payments self-complete locally")
	}

	// Start background tasks
	go server.tickTask()
	go server.sweepTask()

	// Declare Server config
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", server.port),
		Handler:      server.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server, httpServer
}

// runMigrations applies database migrations using goose
func runMigrations(db *sql.DB) error {
	// Set SQLite dialect
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	// Run migrations from db/migrations directory
	if err := goose.Up(db, "./db/migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Println("Database migrations applied successfully")
	return nil
}

// tickTask drives every active session at 1 Hz. Runs that end on a tick
// get their profile flushed and a game_over push with flavor text.
func (s *Server) tickTask() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			events := s.gameManager.TickAll()
			for _, event := range events {
				s.handleGameOver(event)
			}
		}
	}
}

// sweepTask prunes stale rate limit entries, dead websocket connections,
// and idle sessions.
func (s *Server) sweepTask() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.aiLimiter.Cleanup()

			for _, connID := range s.connectionHealth.GetInactiveConnections(10 * time.Minute) {
				log.Printf("Dropping inactive connection %s", connID)
				if conn := s.connectionManager.GetConnection(connID); conn != nil {
					conn.Close(websocket.StatusGoingAway, "Inactive connection")
				}
				s.connectionManager.RemoveConnection(connID)
				s.connectionHealth.RemoveConnection(connID)
			}

			removed := s.gameManager.CleanupIdle(30 * time.Minute)
			for _, session := range removed {
				s.sessionManager.RemoveSession(session.Token)
				if err := s.persistenceManager.SaveProfile(session.Snapshot()); err != nil {
					log.Printf("Failed to flush profile for idle session %s: %v", session.PlayerID, err)
				}
			}
			if len(removed) > 0 {
				log.Printf("Cleanup task: removed %d idle sessions", len(removed))
			}
		}
	}
}

// handleGameOver flushes the player's profile. The notification waits on
// the AI queue, so it runs off the tick goroutine; a slow upstream must
// never stall clock drain for other sessions.
func (s *Server) handleGameOver(event GameOverEvent) {
	active, err := s.gameManager.GetSessionByToken(event.Token)
	if err != nil {
		return
	}

	if err := s.persistenceManager.SaveProfile(active.Snapshot()); err != nil {
		log.Printf("Failed to flush profile for %s: %v", event.PlayerID, err)
	}

	go s.pushGameOverText(event)
}

// pushGameOverText fetches flavor text and notifies the player's socket.
func (s *Server) pushGameOverText(event GameOverEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text := s.aiClient.Fetch(ctx, ai.TextRequest{
		Kind:  ai.KindGameOver,
		Level: event.Level,
		Score: event.Score,
	})

	connID := s.connectionManager.GetConnectionByToken(event.Token)
	if connID == "" {
		return
	}
	conn := s.connectionManager.GetConnection(connID)
	if conn == nil {
		return
	}

	s.sendMessage(conn, context.Background(), ServerMessage{
		Type: "game_over",
		Payload: GameOverMessage{
			Score:        event.Score,
			Level:        event.Level,
			BestCombo:    event.BestCombo,
			CoinsAwarded: event.CoinsAwarded,
			HighScore:    event.HighScore,
			NewHighScore: event.NewHighScore,
			Text:         text,
		},
	})
}

// Shutdown flushes every active session's profile and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)

	for _, info := range s.sessionManager.GetAllSessions() {
		active, err := s.gameManager.GetSessionByToken(info.Token)
		if err != nil {
			continue
		}
		if err := s.persistenceManager.SaveProfile(active.Snapshot()); err != nil {
			log.Printf("Failed to flush profile for %s during shutdown: %v", info.PlayerID, err)
		}
	}

	s.aiClient.Close()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	log.Println("Server state flushed")
	return nil
}
