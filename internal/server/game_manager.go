package server

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"colorflow-server/internal/colorflow"
)

type GameManager struct {
	sessions map[string]*ActiveSession
	mu       sync.RWMutex
}

// ActiveSession wraps one player's engine session. The engine itself is not
// concurrency-safe, so every call into it goes through the session mutex.
type ActiveSession struct {
	Session    *colorflow.Session
	Token      string
	PlayerID   string
	Username   string
	AudioMuted bool
	CreatedAt  time.Time
	UpdatedAt  time.Time

	mu sync.Mutex
}

// GameOverEvent is emitted when a tick ends a session's run.
type GameOverEvent struct {
	Token        string
	PlayerID     string
	Score        int
	Level        int
	BestCombo    int
	CoinsAwarded int
	HighScore    int
	NewHighScore bool
}

func NewGameManager() *GameManager {
	return &GameManager{
		sessions: make(map[string]*ActiveSession),
	}
}

// RegisterPlayer creates a session for a player and returns its token. The
// inventory is seeded from the persisted profile record.
func (gm *GameManager) RegisterPlayer(playerID, username string, rec *ProfileRecord) (*ActiveSession, string, error) {
	if err := validateUsername(username); err != nil {
		return nil, "", err
	}

	token := uuid.New().String()
	now := time.Now()

	engine := colorflow.NewSession(playerID, inventoryFromRecord(rec), now.UnixNano())

	active := &ActiveSession{
		Session:   engine,
		Token:     token,
		PlayerID:  playerID,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rec != nil {
		engine.HighScore = rec.HighScore
		active.AudioMuted = rec.AudioMuted
	}

	gm.mu.Lock()
	gm.sessions[token] = active
	gm.mu.Unlock()

	return active, token, nil
}

// GetSessionByToken looks up an active session.
func (gm *GameManager) GetSessionByToken(token string) (*ActiveSession, error) {
	gm.mu.RLock()
	session, exists := gm.sessions[token]
	gm.mu.RUnlock()

	if !exists {
		return nil, errors.New("TOKEN_NOT_FOUND: Invalid session token")
	}
	return session, nil
}

// RemoveSession drops a session from memory.
func (gm *GameManager) RemoveSession(token string) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	delete(gm.sessions, token)
}

// TickAll advances every session by one second and reports the runs that
// just ended so the server can flush profiles and notify players.
func (gm *GameManager) TickAll() []GameOverEvent {
	gm.mu.RLock()
	sessions := make([]*ActiveSession, 0, len(gm.sessions))
	for _, session := range gm.sessions {
		sessions = append(sessions, session)
	}
	gm.mu.RUnlock()

	var events []GameOverEvent
	for _, active := range sessions {
		active.mu.Lock()
		previousHigh := active.Session.HighScore
		ended := active.Session.Tick()
		if ended {
			active.UpdatedAt = time.Now()
			events = append(events, GameOverEvent{
				Token:        active.Token,
				PlayerID:     active.PlayerID,
				Score:        active.Session.Score,
				Level:        active.Session.Level,
				BestCombo:    active.Session.BestCombo,
				CoinsAwarded: active.Session.GameOverCoins(),
				HighScore:    active.Session.HighScore,
				NewHighScore: active.Session.HighScore > previousHigh,
			})
		}
		active.mu.Unlock()
	}

	return events
}

// CleanupIdle drops sessions with no activity for longer than maxIdle.
// Returns how many were removed.
func (gm *GameManager) CleanupIdle(maxIdle time.Duration) []*ActiveSession {
	cutoff := time.Now().Add(-maxIdle)

	gm.mu.Lock()
	defer gm.mu.Unlock()

	var removed []*ActiveSession
	for token, session := range gm.sessions {
		session.mu.Lock()
		idle := session.UpdatedAt.Before(cutoff) && session.Session.Phase != colorflow.PhasePlaying
		session.mu.Unlock()

		if idle {
			removed = append(removed, session)
			delete(gm.sessions, token)
		}
	}

	return removed
}

// Snapshot converts the in-memory inventory back to a profile record for
// persistence.
func (a *ActiveSession) Snapshot() *ProfileRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	inv := a.Session.Inventory
	powerups := make(map[string]int, len(inv.PowerUpCharges))
	for kind, count := range inv.PowerUpCharges {
		powerups[string(kind)] = count
	}

	return &ProfileRecord{
		PlayerID:     a.PlayerID,
		Coins:        inv.Coins,
		Themes:       append([]string(nil), inv.Themes...),
		Effects:      append([]string(nil), inv.Effects...),
		ActiveTheme:  inv.ActiveTheme,
		ActiveEffect: inv.ActiveEffect,
		PowerUps:     powerups,
		HighScore:    a.Session.HighScore,
		AudioMuted:   a.AudioMuted,
	}
}

// WithSession runs fn while holding the session lock.
func (a *ActiveSession) WithSession(fn func(s *colorflow.Session) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.UpdatedAt = time.Now()
	return fn(a.Session)
}

func inventoryFromRecord(rec *ProfileRecord) *colorflow.Inventory {
	inv := colorflow.NewInventory()
	if rec == nil {
		return inv
	}

	inv.Coins = rec.Coins
	for _, id := range rec.Themes {
		inv.AddTheme(id)
	}
	for _, id := range rec.Effects {
		inv.AddEffect(id)
	}
	if rec.ActiveTheme != "" {
		inv.ActiveTheme = rec.ActiveTheme
	}
	if rec.ActiveEffect != "" {
		inv.ActiveEffect = rec.ActiveEffect
	}
	for kind, count := range rec.PowerUps {
		inv.AddPowerUpCharges(colorflow.PowerUpKind(kind), count)
	}
	return inv
}

func validateUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return errors.New("USERNAME_INVALID: Username cannot be empty")
	}
	if len(username) > 20 {
		return errors.New("USERNAME_INVALID: Username too long (max 20 characters)")
	}
	return nil
}
