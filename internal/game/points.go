package game

import (
	"fmt"
	"math"
	"math/rand"
)

type Color int

const (
	Red Color = iota
	Orange
	Yellow
	Green
	Blue
	Purple
)

var colorString = map[Color]string{
	Red:    "Red",
	Orange: "Orange",
	Yellow: "Yellow",
	Green:  "Green",
	Blue:   "Blue",
	Purple: "Purple",
}

func (c Color) String() string {
	return colorString[c]
}

// Point is a clickable board object. Positions live in the unit square so
// the client can scale them to any viewport.
type Point struct {
	Id      int     `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Color   Color   `json:"color"`
	Special bool    `json:"special"`
	Effect  string  `json:"effect"`
}

func (p Point) String() string {
	if p.Special {
		return fmt.Sprintf("%s* (%d)", p.Color.String(), p.Id)
	}
	return fmt.Sprintf("%s (%d)", p.Color.String(), p.Id)
}

// NormalizedDistance returns euclidean distance scaled into [0,1].
// The unit-square diagonal is the farthest two points can be.
func NormalizedDistance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx+dy*dy) / math.Sqrt2
}

const (
	// BoardSize is the point count the generator fills up to.
	BoardSize = 12
	// RegenThreshold triggers a refill when fewer points remain.
	RegenThreshold = 4
	// SpecialChance is the probability a generated pair is special.
	SpecialChance = 0.10
)

// Generator creates points in same-color pairs from a theme's palette.
// It owns its rand source so sessions can be seeded deterministically.
type Generator struct {
	rng    *rand.Rand
	nextId int
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:    rand.New(rand.NewSource(seed)),
		nextId: 1,
	}
}

// Pair returns two points of the same palette color at random positions.
// A special pair doubles the match award.
func (g *Generator) Pair(palette []Color, effect string) (Point, Point) {
	color := palette[g.rng.Intn(len(palette))]
	special := g.rng.Float64() < SpecialChance

	a := g.place(color, special, effect)
	b := g.place(color, special, effect)
	return a, b
}

func (g *Generator) place(color Color, special bool, effect string) Point {
	p := Point{
		Id:      g.nextId,
		X:       g.rng.Float64(),
		Y:       g.rng.Float64(),
		Color:   color,
		Special: special,
		Effect:  effect,
	}
	g.nextId++
	return p
}

// Fill tops the board back up to BoardSize, always in pairs.
func (g *Generator) Fill(board map[int]Point, palette []Color, effect string) {
	for len(board) < BoardSize {
		a, b := g.Pair(palette, effect)
		board[a.Id] = a
		board[b.Id] = b
	}
}

// NeedsRefill reports whether the board dropped below the generation threshold.
func NeedsRefill(board map[int]Point) bool {
	return len(board) < RegenThreshold
}
