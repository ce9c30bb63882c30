package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"colorflow-server/internal/payments"
)

func testPayment(id string) *payments.Payment {
	now := time.Now()
	return &payments.Payment{
		ID:        id,
		UID:       "player-1",
		Amount:    2.0,
		Memo:      "Medium coin pack",
		Metadata:  `{"type":"coins","packId":"medium"}`,
		Status:    payments.StatusPending,
		ToAddress: "GTESTWALLETADDRESS",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveAndLoadPayment(t *testing.T) {
	assert := assert.New(t)

	pm := NewPersistenceManager(setupTestDB(t))

	assert.NoError(pm.SavePayment(testPayment("pay-1")))

	loaded, err := pm.LoadPayment("pay-1")
	assert.NoError(err)
	assert.Equal("pay-1", loaded.ID)
	assert.Equal("player-1", loaded.UID)
	assert.Equal(payments.StatusPending, loaded.Status)
	assert.Equal(2.0, loaded.Amount)
	assert.Contains(loaded.Metadata, "medium")

	_, err = pm.LoadPayment("missing")
	assert.ErrorContains(err, "PAYMENT_NOT_FOUND")
}

func TestTransitionPayment(t *testing.T) {
	assert := assert.New(t)

	pm := NewPersistenceManager(setupTestDB(t))
	assert.NoError(pm.SavePayment(testPayment("pay-1")))

	p, changed, err := pm.TransitionPayment("pay-1", payments.StatusApproved, "")
	assert.NoError(err)
	assert.True(changed)
	assert.Equal(payments.StatusApproved, p.Status)

	p, changed, err = pm.TransitionPayment("pay-1", payments.StatusCompleted, "tx-1")
	assert.NoError(err)
	assert.True(changed)
	assert.Equal("tx-1", p.TxID)

	// Re-reporting the terminal status is a no-op, not an error
	p, changed, err = pm.TransitionPayment("pay-1", payments.StatusCompleted, "tx-other")
	assert.NoError(err)
	assert.False(changed)
	assert.Equal("tx-1", p.TxID)

	// Terminal statuses never regress
	_, _, err = pm.TransitionPayment("pay-1", payments.StatusCancelled, "")
	assert.ErrorContains(err, "INVALID_TRANSITION")

	loaded, err := pm.LoadPayment("pay-1")
	assert.NoError(err)
	assert.Equal(payments.StatusCompleted, loaded.Status)
}

func TestCountPaymentsByStatus(t *testing.T) {
	assert := assert.New(t)

	pm := NewPersistenceManager(setupTestDB(t))
	assert.NoError(pm.SavePayment(testPayment("pay-1")))
	assert.NoError(pm.SavePayment(testPayment("pay-2")))
	_, _, err := pm.TransitionPayment("pay-2", payments.StatusCompleted, "tx")
	assert.NoError(err)

	counts, err := pm.CountPaymentsByStatus()
	assert.NoError(err)
	assert.Equal(1, counts["pending"])
	assert.Equal(1, counts["completed"])
}

func TestProfileRoundTrip(t *testing.T) {
	assert := assert.New(t)

	pm := NewPersistenceManager(setupTestDB(t))

	rec := NewProfileRecord("player-1")
	rec.Coins = 420
	rec.Themes = append(rec.Themes, "neon")
	rec.ActiveTheme = "neon"
	rec.PowerUps["freeze"] = 2
	rec.HighScore = 900
	rec.AudioMuted = true

	assert.NoError(pm.SaveProfile(rec))

	loaded, err := pm.LoadProfile("player-1")
	assert.NoError(err)
	assert.Equal(420, loaded.Coins)
	assert.Equal([]string{"classic", "neon"}, loaded.Themes)
	assert.Equal("neon", loaded.ActiveTheme)
	assert.Equal(2, loaded.PowerUps["freeze"])
	assert.Equal(900, loaded.HighScore)
	assert.True(loaded.AudioMuted)
}

func TestLoadOrCreateProfileSeedsDefaults(t *testing.T) {
	assert := assert.New(t)

	pm := NewPersistenceManager(setupTestDB(t))

	_, err := pm.LoadProfile("fresh")
	assert.ErrorContains(err, "PROFILE_NOT_FOUND")

	rec, err := pm.LoadOrCreateProfile("fresh")
	assert.NoError(err)
	assert.Equal(0, rec.Coins)
	assert.Equal([]string{"classic"}, rec.Themes)
	assert.Equal([]string{"none"}, rec.Effects)
	assert.Equal("classic", rec.ActiveTheme)

	// Now it exists for a plain load
	loaded, err := pm.LoadProfile("fresh")
	assert.NoError(err)
	assert.Equal("fresh", loaded.PlayerID)
}

func TestProfileGrants(t *testing.T) {
	assert := assert.New(t)

	pm := NewPersistenceManager(setupTestDB(t))

	assert.NoError(pm.AddCoins("p1", 1500))
	assert.NoError(pm.AddCoins("p1", 100))

	rec, err := pm.LoadProfile("p1")
	assert.NoError(err)
	assert.Equal(1600, rec.Coins)

	// Theme grants are idempotent
	assert.NoError(pm.GrantTheme("p1", "neon"))
	assert.NoError(pm.GrantTheme("p1", "neon"))
	rec, _ = pm.LoadProfile("p1")
	assert.Equal([]string{"classic", "neon"}, rec.Themes)

	assert.NoError(pm.GrantEffect("p1", "sparkle"))
	rec, _ = pm.LoadProfile("p1")
	assert.Equal([]string{"none", "sparkle"}, rec.Effects)

	assert.NoError(pm.GrantPowerUpCharges("p1", "blast", 3))
	assert.NoError(pm.GrantPowerUpCharges("p1", "blast", 3))
	rec, _ = pm.LoadProfile("p1")
	assert.Equal(6, rec.PowerUps["blast"])
}

func TestAddCoinsNeverGoesNegative(t *testing.T) {
	assert := assert.New(t)

	pm := NewPersistenceManager(setupTestDB(t))
	assert.NoError(pm.AddCoins("p1", 100))
	assert.NoError(pm.AddCoins("p1", -500))

	rec, err := pm.LoadProfile("p1")
	assert.NoError(err)
	assert.Equal(0, rec.Coins)
}
