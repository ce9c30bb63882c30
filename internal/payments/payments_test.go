package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	assert := assert.New(t)

	assert.True(CanTransition(StatusPending, StatusApproved))
	assert.True(CanTransition(StatusPending, StatusCompleted))
	assert.True(CanTransition(StatusApproved, StatusCompleted))
	assert.True(CanTransition(StatusPending, StatusCancelled))
	assert.True(CanTransition(StatusApproved, StatusFailed))

	// Terminal statuses are sticky.
	assert.False(CanTransition(StatusCompleted, StatusCancelled))
	assert.False(CanTransition(StatusCancelled, StatusApproved))
	assert.False(CanTransition(StatusFailed, StatusCompleted))

	// Re-reporting the current status is tolerated.
	assert.True(CanTransition(StatusCompleted, StatusCompleted))
	assert.True(CanTransition(StatusPending, StatusPending))

	// No moving backwards.
	assert.False(CanTransition(StatusApproved, StatusPending))

	// Unknown statuses never transition.
	assert.False(CanTransition(Status("shipped"), StatusCompleted))
	assert.False(CanTransition(StatusPending, Status("shipped")))
}

func TestStatusPredicates(t *testing.T) {
	assert := assert.New(t)

	assert.True(StatusPending.Known())
	assert.False(Status("refunded").Known())
	assert.True(StatusFailed.Terminal())
	assert.False(StatusApproved.Terminal())
}

func TestParseMetadata(t *testing.T) {
	assert := assert.New(t)

	meta, err := ParseMetadata([]byte(`{"type":"coins","packId":"medium"}`))
	assert.NoError(err)
	assert.Equal(MetaCoins, meta.Type)
	assert.Equal("medium", meta.PackID)

	_, err = ParseMetadata(nil)
	assert.ErrorContains(err, "EMPTY_METADATA")

	_, err = ParseMetadata([]byte("not json"))
	assert.ErrorContains(err, "BAD_METADATA")
}

type fakeProfiles struct {
	coins    map[string]int
	themes   map[string][]string
	effects  map[string][]string
	powerups map[string]map[string]int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		coins:    make(map[string]int),
		themes:   make(map[string][]string),
		effects:  make(map[string][]string),
		powerups: make(map[string]map[string]int),
	}
}

func (f *fakeProfiles) AddCoins(playerID string, amount int) error {
	f.coins[playerID] += amount
	return nil
}

func (f *fakeProfiles) GrantTheme(playerID, themeID string) error {
	f.themes[playerID] = append(f.themes[playerID], themeID)
	return nil
}

func (f *fakeProfiles) GrantEffect(playerID, effectID string) error {
	f.effects[playerID] = append(f.effects[playerID], effectID)
	return nil
}

func (f *fakeProfiles) GrantPowerUpCharges(playerID, kind string, count int) error {
	if f.powerups[playerID] == nil {
		f.powerups[playerID] = make(map[string]int)
	}
	f.powerups[playerID][kind] += count
	return nil
}

func TestDeliverCoinPack(t *testing.T) {
	assert := assert.New(t)

	profiles := newFakeProfiles()
	d := NewDispatcher(profiles)

	err := d.Deliver("p1", Metadata{Type: MetaCoins, PackID: "medium"})
	assert.NoError(err)
	// Medium pack is 1200 base plus a 300 bonus.
	assert.Equal(1500, profiles.coins["p1"])

	err = d.Deliver("p1", Metadata{Type: MetaCoins, PackID: "mega"})
	assert.ErrorContains(err, "UNKNOWN_PACK")
	assert.Equal(1500, profiles.coins["p1"])
}

func TestDeliverThemeAndEffect(t *testing.T) {
	assert := assert.New(t)

	profiles := newFakeProfiles()
	d := NewDispatcher(profiles)

	assert.NoError(d.Deliver("p1", Metadata{Type: MetaTheme, ItemID: "neon"}))
	assert.Equal([]string{"neon"}, profiles.themes["p1"])

	assert.NoError(d.Deliver("p1", Metadata{Type: MetaEffect, ItemID: "sparkle"}))
	assert.Equal([]string{"sparkle"}, profiles.effects["p1"])

	assert.ErrorContains(d.Deliver("p1", Metadata{Type: MetaTheme, ItemID: "plaid"}), "UNKNOWN_THEME")
	assert.ErrorContains(d.Deliver("p1", Metadata{Type: MetaEffect, ItemID: "confetti"}), "UNKNOWN_EFFECT")
}

func TestDeliverPowerUpCharges(t *testing.T) {
	assert := assert.New(t)

	profiles := newFakeProfiles()
	d := NewDispatcher(profiles)

	assert.NoError(d.Deliver("p1", Metadata{Type: MetaPowerUp, ItemID: "freeze"}))
	assert.Equal(3, profiles.powerups["p1"]["freeze"])
}

func TestDeliverRejectsUnknownType(t *testing.T) {
	assert := assert.New(t)

	d := NewDispatcher(newFakeProfiles())
	assert.ErrorContains(d.Deliver("p1", Metadata{Type: "nft"}), "UNKNOWN_REWARD")
}
