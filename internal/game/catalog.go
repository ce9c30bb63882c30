package game

// Static store catalog. Read-only at runtime; nothing here is mutated by
// gameplay, purchases only copy prices and unlock ids out of it.

type Theme struct {
	Id      string  `json:"id"`
	Name    string  `json:"name"`
	Price   int     `json:"price"`
	Palette []Color `json:"palette"`
}

type Effect struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Price int    `json:"price"`
}

// CoinPack is bought with real currency through the payment flow, never
// with in-game coins.
type CoinPack struct {
	Id     string  `json:"id"`
	Name   string  `json:"name"`
	Coins  int     `json:"coins"`
	Bonus  int     `json:"bonus"`
	Amount float64 `json:"amount"` // price in Pi
}

func (p CoinPack) Total() int {
	return p.Coins + p.Bonus
}

var Themes = map[string]Theme{
	"classic": {
		Id:      "classic",
		Name:    "Classic",
		Price:   0,
		Palette: []Color{Red, Yellow, Green, Blue},
	},
	"neon": {
		Id:      "neon",
		Name:    "Neon Nights",
		Price:   300,
		Palette: []Color{Green, Blue, Purple, Orange},
	},
	"sunset": {
		Id:      "sunset",
		Name:    "Sunset Drift",
		Price:   450,
		Palette: []Color{Red, Orange, Yellow, Purple},
	},
	"mono": {
		Id:      "mono",
		Name:    "Monochrome",
		Price:   250,
		Palette: []Color{Blue, Purple},
	},
}

var Effects = map[string]Effect{
	"none":    {Id: "none", Name: "None", Price: 0},
	"sparkle": {Id: "sparkle", Name: "Sparkle", Price: 200},
	"trail":   {Id: "trail", Name: "Comet Trail", Price: 350},
}

var CoinPacks = map[string]CoinPack{
	"small":  {Id: "small", Name: "Pouch of Coins", Coins: 500, Bonus: 0, Amount: 1},
	"medium": {Id: "medium", Name: "Bag of Coins", Coins: 1200, Bonus: 300, Amount: 2},
	"large":  {Id: "large", Name: "Chest of Coins", Coins: 2600, Bonus: 900, Amount: 4},
}

// AdReward is the free coin grant for a simulated advertisement view.
const AdReward = 50
