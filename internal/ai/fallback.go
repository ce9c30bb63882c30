package ai

// Request kinds understood by the client and the fallback tables.
const (
	KindChallenge = "challenge"
	KindLevelUp   = "levelup"
	KindGameOver  = "gameover"
)

var fallbackChallenge = []string{
	"Colors are waiting. Show them who's boss!",
	"The board won't clear itself. Go!",
	"Faster matches, bigger combos. You know the drill.",
	"Every pair you miss is a point lost. Hunt them down!",
	"The clock is ticking. Make every match count!",
}

var fallbackLevelUp = []string{
	"Level up! The colors just got nervous.",
	"New level unlocked. Keep that combo rolling!",
	"Onward and upward. Fresh board, fresh points!",
	"You leveled up! The real challenge starts now.",
	"Another level down. Your streak is on fire!",
}

var fallbackGameOver = []string{
	"Great run! The colors will remember this one.",
	"Nice game! One more try and that high score falls.",
	"The clock won this round. Rematch?",
	"Solid score! Your best combo was something to see.",
	"Game over, but the board will be back. So will you.",
}

// Fallback returns canned text for a request. It is deterministic for a
// given level so repeated calls during one run stay consistent.
func Fallback(req TextRequest) string {
	var table []string
	switch req.Kind {
	case KindLevelUp:
		table = fallbackLevelUp
	case KindGameOver:
		table = fallbackGameOver
	default:
		table = fallbackChallenge
	}
	idx := req.Level % len(table)
	if idx < 0 {
		idx = 0
	}
	return table[idx]
}
