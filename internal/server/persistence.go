package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"colorflow-server/internal/payments"
)

// PersistenceManager handles the payment ledger and player profiles
type PersistenceManager struct {
	db *sql.DB
}

// NewPersistenceManager creates a new persistence manager
func NewPersistenceManager(db *sql.DB) *PersistenceManager {
	return &PersistenceManager{
		db: db,
	}
}

// SavePayment inserts or replaces a ledger record
// Uses UPSERT (INSERT OR REPLACE) so retried creates stay harmless
func (pm *PersistenceManager) SavePayment(p *payments.Payment) error {
	query := `
		INSERT OR REPLACE INTO payments (id, uid, amount, memo, metadata, status, txid, to_address, sandbox, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := pm.db.Exec(
		query,
		p.ID,
		p.UID,
		p.Amount,
		p.Memo,
		p.Metadata,
		string(p.Status),
		p.TxID,
		p.ToAddress,
		p.Sandbox,
		p.CreatedAt,
		p.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save payment %s: %w", p.ID, err)
	}

	return nil
}

// LoadPayment retrieves a ledger record by payment id
func (pm *PersistenceManager) LoadPayment(id string) (*payments.Payment, error) {
	query := `
		SELECT id, uid, amount, memo, metadata, status, txid, to_address, sandbox, created_at, updated_at
		FROM payments WHERE id = ?
	`

	var p payments.Payment
	var status string
	err := pm.db.QueryRow(query, id).Scan(
		&p.ID,
		&p.UID,
		&p.Amount,
		&p.Memo,
		&p.Metadata,
		&status,
		&p.TxID,
		&p.ToAddress,
		&p.Sandbox,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.New("PAYMENT_NOT_FOUND: No such payment in ledger")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment %s: %w", id, err)
	}

	p.Status = payments.Status(status)
	return &p, nil
}

// TransitionPayment moves a ledger record to a new status. It returns the
// updated record and whether anything changed. Re-reporting the current
// status is a no-op so at-least-once webhook delivery stays safe; invalid
// transitions (including any move out of a terminal status) are errors.
func (pm *PersistenceManager) TransitionPayment(id string, to payments.Status, txid string) (*payments.Payment, bool, error) {
	p, err := pm.LoadPayment(id)
	if err != nil {
		return nil, false, err
	}

	if !payments.CanTransition(p.Status, to) {
		return nil, false, fmt.Errorf("INVALID_TRANSITION: Payment %s cannot move from %s to %s", id, p.Status, to)
	}

	if p.Status == to {
		return p, false, nil
	}

	p.Status = to
	if txid != "" {
		p.TxID = txid
	}
	p.UpdatedAt = time.Now()

	if err := pm.SavePayment(p); err != nil {
		return nil, false, err
	}

	return p, true, nil
}

// CountPaymentsByStatus returns ledger totals for the health endpoint
func (pm *PersistenceManager) CountPaymentsByStatus() (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM payments GROUP BY status`

	rows, err := pm.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to count payments: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan payment count row: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment count rows: %w", err)
	}

	return counts, nil
}

// ProfileRecord is the persisted form of a player's inventory and settings
type ProfileRecord struct {
	PlayerID     string
	Coins        int
	Themes       []string
	Effects      []string
	ActiveTheme  string
	ActiveEffect string
	PowerUps     map[string]int
	HighScore    int
	AudioMuted   bool
}

// NewProfileRecord returns the defaults every new player starts with
func NewProfileRecord(playerID string) *ProfileRecord {
	return &ProfileRecord{
		PlayerID:     playerID,
		Coins:        0,
		Themes:       []string{"classic"},
		Effects:      []string{"none"},
		ActiveTheme:  "classic",
		ActiveEffect: "none",
		PowerUps:     make(map[string]int),
	}
}

// SaveProfile persists a profile record
func (pm *PersistenceManager) SaveProfile(rec *ProfileRecord) error {
	themes, err := json.Marshal(rec.Themes)
	if err != nil {
		return fmt.Errorf("failed to serialize themes: %w", err)
	}
	effects, err := json.Marshal(rec.Effects)
	if err != nil {
		return fmt.Errorf("failed to serialize effects: %w", err)
	}
	powerups, err := json.Marshal(rec.PowerUps)
	if err != nil {
		return fmt.Errorf("failed to serialize powerups: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO profiles (player_id, coins, themes, effects, active_theme, active_effect, powerups, high_score, audio_muted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = pm.db.Exec(
		query,
		rec.PlayerID,
		rec.Coins,
		string(themes),
		string(effects),
		rec.ActiveTheme,
		rec.ActiveEffect,
		string(powerups),
		rec.HighScore,
		rec.AudioMuted,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", rec.PlayerID, err)
	}

	return nil
}

// LoadProfile retrieves a profile by player id
func (pm *PersistenceManager) LoadProfile(playerID string) (*ProfileRecord, error) {
	query := `
		SELECT player_id, coins, themes, effects, active_theme, active_effect, powerups, high_score, audio_muted
		FROM profiles WHERE player_id = ?
	`

	var rec ProfileRecord
	var themes, effects, powerups string
	err := pm.db.QueryRow(query, playerID).Scan(
		&rec.PlayerID,
		&rec.Coins,
		&themes,
		&effects,
		&rec.ActiveTheme,
		&rec.ActiveEffect,
		&powerups,
		&rec.HighScore,
		&rec.AudioMuted,
	)

	if err == sql.ErrNoRows {
		return nil, errors.New("PROFILE_NOT_FOUND: No such player profile")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", playerID, err)
	}

	if err := json.Unmarshal([]byte(themes), &rec.Themes); err != nil {
		return nil, fmt.Errorf("failed to deserialize themes for %s: %w", playerID, err)
	}
	if err := json.Unmarshal([]byte(effects), &rec.Effects); err != nil {
		return nil, fmt.Errorf("failed to deserialize effects for %s: %w", playerID, err)
	}
	if err := json.Unmarshal([]byte(powerups), &rec.PowerUps); err != nil {
		return nil, fmt.Errorf("failed to deserialize powerups for %s: %w", playerID, err)
	}
	if rec.PowerUps == nil {
		rec.PowerUps = make(map[string]int)
	}

	return &rec, nil
}

// LoadOrCreateProfile retrieves a profile, seeding the defaults on first sight
func (pm *PersistenceManager) LoadOrCreateProfile(playerID string) (*ProfileRecord, error) {
	rec, err := pm.LoadProfile(playerID)
	if err == nil {
		return rec, nil
	}
	if err.Error() != "PROFILE_NOT_FOUND: No such player profile" {
		return nil, err
	}

	rec = NewProfileRecord(playerID)
	if err := pm.SaveProfile(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// The methods below implement payments.Profiles so completed purchases land
// directly in the store.

func (pm *PersistenceManager) AddCoins(playerID string, amount int) error {
	rec, err := pm.LoadOrCreateProfile(playerID)
	if err != nil {
		return err
	}
	rec.Coins += amount
	if rec.Coins < 0 {
		rec.Coins = 0
	}
	return pm.SaveProfile(rec)
}

func (pm *PersistenceManager) GrantTheme(playerID, themeID string) error {
	rec, err := pm.LoadOrCreateProfile(playerID)
	if err != nil {
		return err
	}
	for _, id := range rec.Themes {
		if id == themeID {
			return nil
		}
	}
	rec.Themes = append(rec.Themes, themeID)
	return pm.SaveProfile(rec)
}

func (pm *PersistenceManager) GrantEffect(playerID, effectID string) error {
	rec, err := pm.LoadOrCreateProfile(playerID)
	if err != nil {
		return err
	}
	for _, id := range rec.Effects {
		if id == effectID {
			return nil
		}
	}
	rec.Effects = append(rec.Effects, effectID)
	return pm.SaveProfile(rec)
}

func (pm *PersistenceManager) GrantPowerUpCharges(playerID, kind string, count int) error {
	rec, err := pm.LoadOrCreateProfile(playerID)
	if err != nil {
		return err
	}
	rec.PowerUps[kind] += count
	return pm.SaveProfile(rec)
}
