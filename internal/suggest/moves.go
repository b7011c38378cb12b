package suggest

import (
	"sort"

	"github.com/satindergrewal/countsheet/internal/grid"
)

// Move is a node in the move graph. Adjacent moves flow naturally from it
// on the next count.
type Move struct {
	Name     string
	Adjacent []string
}

// MoveGraph is the static vocabulary used when no LLM is configured.
// Edges are symmetric.
var MoveGraph = map[string]*Move{
	"High V": {
		Name:     "High V",
		Adjacent: []string{"Low V", "Clap", "Touchdown", "Punch"},
	},
	"Low V": {
		Name:     "Low V",
		Adjacent: []string{"High V", "Hips", "Clean"},
	},
	"Touchdown": {
		Name:     "Touchdown",
		Adjacent: []string{"High V", "Clap", "Clean"},
	},
	"Punch": {
		Name:     "Punch",
		Adjacent: []string{"High V", "Hips", "Kick"},
	},
	"Clap": {
		Name:     "Clap",
		Adjacent: []string{"High V", "Touchdown", "Clean", "Wave"},
	},
	"Clean": {
		Name:     "Clean",
		Adjacent: []string{"Low V", "Touchdown", "Clap", "Hips", "Tuck", "Head up"},
	},
	"Hips": {
		Name:     "Hips",
		Adjacent: []string{"Low V", "Punch", "Clean", "Blowkiss"},
	},
	"Tuck": {
		Name:     "Tuck",
		Adjacent: []string{"Clean", "Jump", "Hug"},
	},
	"Jump": {
		Name:     "Jump",
		Adjacent: []string{"Tuck", "Kick"},
	},
	"Kick": {
		Name:     "Kick",
		Adjacent: []string{"Punch", "Jump"},
	},
	"Wave": {
		Name:     "Wave",
		Adjacent: []string{"Clap", "Head up"},
	},
	"Head up": {
		Name:     "Head up",
		Adjacent: []string{"Clean", "Wave", "Hug"},
	},
	"Hug": {
		Name:     "Hug",
		Adjacent: []string{"Tuck", "Head up", "Blowkiss"},
	},
	"Blowkiss": {
		Name:     "Blowkiss",
		Adjacent: []string{"Hips", "Hug"},
	},
}

// openers are the moves a measure can start on: count 1 is a hit.
var openers = []string{"High V", "Punch", "Touchdown", "Clap"}

// MoveNames returns all move names in the graph, sorted.
func MoveNames() []string {
	names := make([]string, 0, len(MoveGraph))
	for name := range MoveGraph {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsValidMove checks if a move exists in the graph.
func IsValidMove(name string) bool {
	_, ok := MoveGraph[name]
	return ok
}

// Static returns eight moves for a measure by walking the move graph from an
// opener. The walk is deterministic for a (seed, measure) pair and always
// returns to "Clean" on count 8.
func Static(seed string, measureIndex int) []string {
	h := hash(seed)*31 + measureIndex
	if h < 0 {
		h = -h
	}

	moves := make([]string, grid.CountsPerMeasure)
	cur := openers[h%len(openers)]
	moves[0] = cur
	for i := 1; i < grid.CountsPerMeasure-1; i++ {
		adj := MoveGraph[cur].Adjacent
		cur = adj[(h+i)%len(adj)]
		moves[i] = cur
	}
	moves[grid.CountsPerMeasure-1] = "Clean"
	return moves
}

func hash(s string) int {
	var h int
	for i := 0; i < len(s) && i < 8; i++ {
		h = h*31 + int(s[i])
	}
	if h < 0 {
		h = -h
	}
	return h
}
