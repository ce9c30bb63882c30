package colorflow

import "colorflow-server/internal/game"

// ClientState is the wire view of a session sent over the gameplay channel.
type ClientState struct {
	Phase        string        `json:"phase"`
	Difficulty   string        `json:"difficulty"`
	Score        int           `json:"score"`
	Level        int           `json:"level"`
	Combo        int           `json:"combo"`
	Clock        float64       `json:"clock"`
	NextLevelAt  int           `json:"nextLevelAt"`
	Coins        int           `json:"coins"`
	HighScore    int           `json:"highScore"`
	StoreOpen    bool          `json:"storeOpen"`
	ActiveTheme  string        `json:"activeTheme"`
	ActiveEffect string        `json:"activeEffect"`
	Board        []game.Point  `json:"board"`
	PowerUps     []PowerUpView `json:"powerUps"`
}

type PowerUpView struct {
	Kind         string  `json:"kind"`
	Price        int     `json:"price"`
	Active       bool    `json:"active"`
	Available    bool    `json:"available"`
	EffectLeft   float64 `json:"effectLeft"`
	CooldownLeft float64 `json:"cooldownLeft"`
	Charges      int     `json:"charges"`
}

func (s *Session) GetClientState() *ClientState {
	board := make([]game.Point, 0, len(s.Board))
	for _, p := range s.Board {
		board = append(board, p)
	}

	powerUps := make([]PowerUpView, 0, len(s.Power))
	for kind, state := range s.Power {
		powerUps = append(powerUps, PowerUpView{
			Kind:         string(kind),
			Price:        PowerUps[kind].Price,
			Active:       state.EffectLeft > 0,
			Available:    state.Available(),
			EffectLeft:   state.EffectLeft,
			CooldownLeft: state.CooldownLeft,
			Charges:      s.Inventory.PowerUpCharges[kind],
		})
	}

	return &ClientState{
		Phase:        string(s.Phase),
		Difficulty:   string(s.Difficulty),
		Score:        s.Score,
		Level:        s.Level,
		Combo:        s.Combo,
		Clock:        s.Clock,
		NextLevelAt:  LevelThreshold(s.Level),
		Coins:        s.Inventory.Coins,
		HighScore:    s.HighScore,
		StoreOpen:    s.StoreOpen,
		ActiveTheme:  s.Inventory.ActiveTheme,
		ActiveEffect: s.Inventory.ActiveEffect,
		Board:        board,
		PowerUps:     powerUps,
	}
}
