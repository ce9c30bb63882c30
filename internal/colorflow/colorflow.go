package colorflow

import (
	"errors"
	"slices"

	"colorflow-server/internal/game"
)

type Phase string

const (
	PhaseLaunch   Phase = "launch"
	PhasePlaying  Phase = "playing"
	PhaseGameOver Phase = "gameOver"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

type DifficultyConfig struct {
	StartClock float64 // seconds on the clock at game start
	BasePoints int     // base award per match
	Drain      float64 // seconds removed per tick
}

var difficulties = map[Difficulty]DifficultyConfig{
	DifficultyEasy:   {StartClock: 20, BasePoints: 15, Drain: 1.0},
	DifficultyNormal: {StartClock: 18, BasePoints: 25, Drain: 1.2},
	DifficultyHard:   {StartClock: 15, BasePoints: 40, Drain: 1.5},
}

const (
	// MaxTimeBonus caps the clock bonus a single match can grant.
	MaxTimeBonus = 2.0
	// AdCooldown is ticks between free ad-reward claims.
	AdCooldown = 60.0
)

// Inventory is the player's persisted economy state: coin balance plus
// owned/active cosmetics. Purchases, power-up spend, level rewards and
// payment completions all mutate it.
type Inventory struct {
	Coins          int                 `json:"coins"`
	Themes         []string            `json:"themes"`
	Effects        []string            `json:"effects"`
	ActiveTheme    string              `json:"activeTheme"`
	ActiveEffect   string              `json:"activeEffect"`
	PowerUpCharges map[PowerUpKind]int `json:"powerUpCharges"`
}

func NewInventory() *Inventory {
	return &Inventory{
		Coins:          0,
		Themes:         []string{"classic"},
		Effects:        []string{"none"},
		ActiveTheme:    "classic",
		ActiveEffect:   "none",
		PowerUpCharges: make(map[PowerUpKind]int),
	}
}

func (inv *Inventory) OwnsTheme(id string) bool {
	return slices.Contains(inv.Themes, id)
}

func (inv *Inventory) OwnsEffect(id string) bool {
	return slices.Contains(inv.Effects, id)
}

func (inv *Inventory) AddCoins(amount int) {
	inv.Coins += amount
}

func (inv *Inventory) AddTheme(id string) {
	if !inv.OwnsTheme(id) {
		inv.Themes = append(inv.Themes, id)
	}
}

func (inv *Inventory) AddEffect(id string) {
	if !inv.OwnsEffect(id) {
		inv.Effects = append(inv.Effects, id)
	}
}

func (inv *Inventory) AddPowerUpCharges(kind PowerUpKind, count int) {
	if inv.PowerUpCharges == nil {
		inv.PowerUpCharges = make(map[PowerUpKind]int)
	}
	inv.PowerUpCharges[kind] += count
}

// Session is one player's game. All mutation happens through the manager's
// tick loop and websocket handlers, serialized per session, so the struct
// itself carries no lock.
type Session struct {
	Id         string          `json:"id"`
	Phase      Phase           `json:"phase"`
	Difficulty Difficulty      `json:"difficulty"`
	Score      int             `json:"score"`
	Level      int             `json:"level"`
	Combo      int             `json:"combo"`
	BestCombo  int             `json:"bestCombo"`
	Clock      float64         `json:"clock"`
	HighScore  int             `json:"highScore"`
	StoreOpen  bool            `json:"storeOpen"`
	AdWait     float64         `json:"adWait"`
	Inventory  *Inventory      `json:"inventory"`
	Board      map[int]game.Point `json:"board"`
	Power      map[PowerUpKind]*PowerUpState `json:"power"`

	gen *game.Generator
}

func NewSession(id string, inv *Inventory, seed int64) *Session {
	if inv == nil {
		inv = NewInventory()
	}
	s := &Session{
		Id:        id,
		Phase:     PhaseLaunch,
		Inventory: inv,
		Board:     make(map[int]game.Point),
		Power:     make(map[PowerUpKind]*PowerUpState),
		gen:       game.NewGenerator(seed),
	}
	for kind := range PowerUps {
		s.Power[kind] = &PowerUpState{}
	}
	return s
}

// Start begins a run from the launch screen or the game-over screen.
func (s *Session) Start(d Difficulty) error {
	if s.Phase == PhasePlaying {
		return errors.New("GAME_IN_PROGRESS: Finish the current game first")
	}
	cfg, ok := difficulties[d]
	if !ok {
		return errors.New("INVALID_DIFFICULTY: Unknown difficulty")
	}

	s.Difficulty = d
	s.Phase = PhasePlaying
	s.Score = 0
	s.Level = 1
	s.Combo = 1
	s.BestCombo = 1
	s.Clock = cfg.StartClock
	s.StoreOpen = false
	for _, state := range s.Power {
		*state = PowerUpState{}
	}

	s.Board = make(map[int]game.Point)
	s.gen.Fill(s.Board, s.palette(), s.Inventory.ActiveEffect)
	return nil
}

// Tick advances the session by one second. Returns true when this tick
// ended the game.
func (s *Session) Tick() bool {
	// The ad-reward cooldown runs regardless of game phase.
	if s.AdWait > 0 {
		s.AdWait -= 1
		if s.AdWait < 0 {
			s.AdWait = 0
		}
	}

	if s.Phase != PhasePlaying {
		return false
	}

	frozen := s.powerActive(PowerFreeze)
	s.tickPower()

	// The store pauses the clock; freeze holds it in place.
	if s.StoreOpen || frozen {
		return false
	}

	s.Clock -= difficulties[s.Difficulty].Drain
	if s.Clock <= 0 {
		s.Clock = 0
		s.finish()
		return true
	}
	return false
}

// finish transitions to game over and flushes the run's coins into the
// inventory. Score and combo die with the session; coins persist.
func (s *Session) finish() {
	s.Phase = PhaseGameOver
	s.Inventory.AddCoins(s.GameOverCoins())
	if s.Score > s.HighScore {
		s.HighScore = s.Score
	}
}

// GameOverCoins is the end-of-run coin grant.
func (s *Session) GameOverCoins() int {
	return s.Score/10 + 10*s.Level + s.BestCombo
}

// LevelThreshold is the score needed to leave the given level. Growth is
// quadratic so late levels take meaningfully longer.
func LevelThreshold(level int) int {
	return 100 * level * level
}

func (s *Session) maybeLevelUp() bool {
	if s.Score < LevelThreshold(s.Level) {
		return false
	}

	cfg := difficulties[s.Difficulty]
	s.Level++
	s.Clock = cfg.StartClock
	s.Inventory.AddCoins(5 * s.Level)

	// Fresh board for the new level.
	s.Board = make(map[int]game.Point)
	s.gen.Fill(s.Board, s.palette(), s.Inventory.ActiveEffect)
	return true
}

func (s *Session) palette() []game.Color {
	theme, ok := game.Themes[s.Inventory.ActiveTheme]
	if !ok {
		theme = game.Themes["classic"]
	}
	return theme.Palette
}

func (s *Session) refill() {
	if game.NeedsRefill(s.Board) {
		s.gen.Fill(s.Board, s.palette(), s.Inventory.ActiveEffect)
	}
}
