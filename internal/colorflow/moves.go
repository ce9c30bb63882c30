package colorflow

import (
	"errors"
	"math"

	"colorflow-server/internal/game"
)

// MatchResult reports the outcome of a legal two-point selection. A
// mismatch is a legal move that awards nothing and resets the combo.
type MatchResult struct {
	Matched   bool    `json:"matched"`
	Award     int     `json:"award"`
	Combo     int     `json:"combo"`
	TimeBonus float64 `json:"timeBonus"`
	LeveledUp bool    `json:"leveledUp"`
}

// MatchPoints resolves a selection of two board points.
//
// Award formula: base × combo × (1 + 0.25 × (1 − normalizedDistance)),
// doubled for a special pair, doubled again under the score doubler. The
// combo in the product is the combo at click time; it increments after.
func (s *Session) MatchPoints(aId, bId int) (MatchResult, error) {
	if s.Phase != PhasePlaying {
		return MatchResult{}, errors.New("NOT_PLAYING: No game in progress")
	}
	if s.StoreOpen {
		return MatchResult{}, errors.New("STORE_OPEN: Close the store to keep playing")
	}
	if aId == bId {
		return MatchResult{}, errors.New("SAME_POINT: Selected the same point twice")
	}

	a, okA := s.Board[aId]
	b, okB := s.Board[bId]
	if !okA || !okB {
		return MatchResult{}, errors.New("POINT_NOT_FOUND: Point no longer on the board")
	}

	matched := a.Color == b.Color || s.powerActive(PowerColorBomb)
	if !matched {
		s.Combo = 1
		return MatchResult{Matched: false, Combo: s.Combo}, nil
	}

	award := s.matchAward(a, b)
	s.Score += award

	bonus := s.timeBonus()
	s.Clock += bonus

	s.Combo++
	if s.Combo > s.BestCombo {
		s.BestCombo = s.Combo
	}

	delete(s.Board, aId)
	delete(s.Board, bId)
	s.refill()

	leveled := s.maybeLevelUp()

	return MatchResult{
		Matched:   true,
		Award:     award,
		Combo:     s.Combo,
		TimeBonus: bonus,
		LeveledUp: leveled,
	}, nil
}

func (s *Session) matchAward(a, b game.Point) int {
	base := float64(difficulties[s.Difficulty].BasePoints)
	dist := game.NormalizedDistance(a, b)
	proximity := 1 + 0.25*(1-dist)

	award := base * float64(s.Combo) * proximity
	if a.Special || b.Special {
		award *= 2
	}
	if s.powerActive(PowerDoubler) {
		award *= 2
	}
	return int(math.Round(award))
}

// timeBonus grows with the click-time combo and is capped so long streaks
// cannot make the clock runaway.
func (s *Session) timeBonus() float64 {
	bonus := 0.5 + 0.1*float64(s.Combo)
	return math.Min(bonus, MaxTimeBonus)
}
