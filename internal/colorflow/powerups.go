package colorflow

import (
	"errors"
	"fmt"
)

type PowerUpKind string

const (
	PowerFreeze    PowerUpKind = "freeze"    // clock holds still
	PowerColorBomb PowerUpKind = "colorbomb" // any-color matching, points pulled to center
	PowerBlast     PowerUpKind = "blast"     // clears a third of the board with score credit
	PowerDoubler   PowerUpKind = "doubler"   // match awards doubled
)

type PowerUpSpec struct {
	Price    int     `json:"price"`
	Duration float64 `json:"duration"` // effect seconds; 0 means instant
	Cooldown float64 `json:"cooldown"` // seconds after the effect ends
}

var PowerUps = map[PowerUpKind]PowerUpSpec{
	PowerFreeze:    {Price: 50, Duration: 5, Cooldown: 10},
	PowerColorBomb: {Price: 100, Duration: 6, Cooldown: 12},
	PowerBlast:     {Price: 150, Duration: 0, Cooldown: 15},
	PowerDoubler:   {Price: 120, Duration: 10, Cooldown: 15},
}

// PowerUpState counts down in ticks. The cooldown countdown starts only
// once the effect runs out, so a power-up is unavailable from activation
// until EffectLeft and CooldownLeft both reach zero.
type PowerUpState struct {
	EffectLeft   float64 `json:"effectLeft"`
	CooldownLeft float64 `json:"cooldownLeft"`
}

func (p *PowerUpState) Available() bool {
	return p.EffectLeft <= 0 && p.CooldownLeft <= 0
}

// ActivatePowerUp validates cooldown and price, deducts coins immediately
// (or consumes a purchased charge), and applies the effect. A rejected
// activation leaves coins untouched.
func (s *Session) ActivatePowerUp(kind PowerUpKind) error {
	if s.Phase != PhasePlaying {
		return errors.New("NOT_PLAYING: No game in progress")
	}

	spec, ok := PowerUps[kind]
	if !ok {
		return fmt.Errorf("INVALID_POWERUP: Unknown power-up '%s'", kind)
	}

	state := s.Power[kind]
	if !state.Available() {
		return errors.New("POWERUP_COOLDOWN: Power-up is not ready yet")
	}

	// Purchased charges are spent before coins.
	if s.Inventory.PowerUpCharges[kind] > 0 {
		s.Inventory.PowerUpCharges[kind]--
	} else {
		if s.Inventory.Coins < spec.Price {
			return errors.New("INSUFFICIENT_COINS: Not enough coins for this power-up")
		}
		s.Inventory.Coins -= spec.Price
	}

	state.EffectLeft = spec.Duration
	if spec.Duration == 0 {
		// Instant effects go straight to cooldown.
		state.CooldownLeft = spec.Cooldown
	}

	switch kind {
	case PowerColorBomb:
		s.pullToCenter()
	case PowerBlast:
		s.blast()
	}

	return nil
}

func (s *Session) powerActive(kind PowerUpKind) bool {
	state, ok := s.Power[kind]
	return ok && state.EffectLeft > 0
}

func (s *Session) tickPower() {
	for kind, state := range s.Power {
		if state.EffectLeft > 0 {
			state.EffectLeft -= 1
			if state.EffectLeft <= 0 {
				state.EffectLeft = 0
				state.CooldownLeft = PowerUps[kind].Cooldown
			}
		} else if state.CooldownLeft > 0 {
			state.CooldownLeft -= 1
			if state.CooldownLeft < 0 {
				state.CooldownLeft = 0
			}
		}
	}
}

// pullToCenter moves every point halfway toward the board center, the
// color bomb's visual of points converging.
func (s *Session) pullToCenter() {
	for id, p := range s.Board {
		p.X = p.X + (0.5-p.X)/2
		p.Y = p.Y + (0.5-p.Y)/2
		s.Board[id] = p
	}
}

// blast removes a third of the board and credits half the base award per
// removed point, then refills if the board dropped below the threshold.
func (s *Session) blast() {
	remove := len(s.Board) / 3
	if remove == 0 {
		return
	}

	base := difficulties[s.Difficulty].BasePoints
	removed := 0
	for id := range s.Board {
		if removed >= remove {
			break
		}
		delete(s.Board, id)
		removed++
	}

	s.Score += removed * base / 2
	s.refill()
	s.maybeLevelUp()
}
