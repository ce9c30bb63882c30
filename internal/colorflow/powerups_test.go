package colorflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"colorflow-server/internal/game"
)

func TestActivatePowerUp_InsufficientCoins(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession(t, DifficultyEasy)
	s.Inventory.Coins = 49 // freeze costs 50

	err := s.ActivatePowerUp(PowerFreeze)

	assert.ErrorContains(err, "INSUFFICIENT_COINS")
	assert.Equal(49, s.Inventory.Coins, "rejected attempt must not touch the balance")
	assert.True(s.Power[PowerFreeze].Available())
}

func TestActivatePowerUp_DeductsImmediately(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession(t, DifficultyEasy)
	s.Inventory.Coins = 80

	err := s.ActivatePowerUp(PowerFreeze)

	assert.NoError(err)
	assert.Equal(30, s.Inventory.Coins)
	assert.False(s.Power[PowerFreeze].Available())
	assert.Equal(5.0, s.Power[PowerFreeze].EffectLeft)
}

func TestActivatePowerUp_RejectedDuringCooldown(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession(t, DifficultyEasy)
	s.Inventory.Coins = 500

	assert.NoError(s.ActivatePowerUp(PowerFreeze))
	err := s.ActivatePowerUp(PowerFreeze)

	assert.ErrorContains(err, "POWERUP_COOLDOWN")
	assert.Equal(450, s.Inventory.Coins, "second attempt must not charge")
}

func TestActivatePowerUp_CooldownArmsAfterEffect(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession(t, DifficultyEasy)
	s.Inventory.Coins = 500
	assert.NoError(s.ActivatePowerUp(PowerFreeze))

	// Run out the 5s effect.
	for i := 0; i < 5; i++ {
		assert.True(s.Power[PowerFreeze].EffectLeft > 0, "effect should still run at tick %d", i)
		s.Tick()
	}

	state := s.Power[PowerFreeze]
	assert.Equal(0.0, state.EffectLeft)
	assert.Equal(PowerUps[PowerFreeze].Cooldown, state.CooldownLeft)
	assert.False(state.Available())

	// Run out the 10s cooldown.
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	assert.True(s.Power[PowerFreeze].Available())
}

func TestFreeze_HoldsClock(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession(t, DifficultyEasy)
	s.Inventory.Coins = 50
	assert.NoError(s.ActivatePowerUp(PowerFreeze))

	before := s.Clock
	s.Tick()

	assert.Equal(before, s.Clock)
}

func TestDoubler_DoublesAwards(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession(t, DifficultyEasy)
	s.Inventory.Coins = 120
	assert.NoError(s.ActivatePowerUp(PowerDoubler))

	placePair(s, 100, 101, game.Red, false, 0)
	res, err := s.MatchPoints(100, 101)

	assert.NoError(err)
	// round(15 * 1 * 1.25 * 2)
	assert.Equal(38, res.Award)
}

func TestBlast_ClearsThirdWithCredit(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession(t, DifficultyEasy)
	s.Inventory.Coins = 150
	assert.Equal(game.BoardSize, len(s.Board))

	err := s.ActivatePowerUp(PowerBlast)

	assert.NoError(err)
	// 12/3 = 4 removed, credit 4*15/2 = 30. Board stays above the
	// refill threshold so no regeneration happens.
	assert.Equal(30, s.Score)
	assert.Equal(game.BoardSize-4, len(s.Board))
	assert.Equal(0, s.Inventory.Coins)

	// Instant effect goes straight to cooldown.
	state := s.Power[PowerBlast]
	assert.Equal(0.0, state.EffectLeft)
	assert.Equal(PowerUps[PowerBlast].Cooldown, state.CooldownLeft)
}

func TestActivatePowerUp_ConsumesChargeBeforeCoins(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession(t, DifficultyEasy)
	s.Inventory.Coins = 10
	s.Inventory.AddPowerUpCharges(PowerFreeze, 2)

	err := s.ActivatePowerUp(PowerFreeze)

	assert.NoError(err)
	assert.Equal(10, s.Inventory.Coins)
	assert.Equal(1, s.Inventory.PowerUpCharges[PowerFreeze])
}

func TestActivatePowerUp_Validation(t *testing.T) {
	assert := assert.New(t)

	s := NewSession("player-1", nil, 1)
	assert.ErrorContains(s.ActivatePowerUp(PowerFreeze), "NOT_PLAYING")

	s = newTestSession(t, DifficultyEasy)
	assert.ErrorContains(s.ActivatePowerUp(PowerUpKind("nuke")), "INVALID_POWERUP")
}

func TestColorBomb_PullsPointsTowardCenter(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession(t, DifficultyEasy)
	s.Inventory.Coins = 100
	s.Board = map[int]game.Point{
		1: {Id: 1, X: 0.0, Y: 0.0, Color: game.Red},
		2: {Id: 2, X: 1.0, Y: 1.0, Color: game.Red},
		3: {Id: 3, X: 0.0, Y: 1.0, Color: game.Blue},
		4: {Id: 4, X: 1.0, Y: 0.0, Color: game.Blue},
	}

	assert.NoError(s.ActivatePowerUp(PowerColorBomb))

	assert.Equal(0.25, s.Board[1].X)
	assert.Equal(0.25, s.Board[1].Y)
	assert.Equal(0.75, s.Board[2].X)
	assert.Equal(0.75, s.Board[2].Y)
}
