package format

import (
	"github.com/okian/tourney/pkg/logger"
)

// Handle addresses a match inside its graph.
type Handle int

// Link routes a match's winner or loser into a slot of another match.
type Link struct {
	Target Handle
	Slot   int
}

// Graph is the arena holding every match of one format.
type Graph struct {
	matches  []*Match
	onChange func()
	logger   logger.Logger
}

func newGraph(onChange func(), l logger.Logger) *Graph {
	return &Graph{onChange: onChange, logger: l}
}

// add creates a first-to-num match and returns its handle.
func (g *Graph) add(num int) Handle {
	h := Handle(len(g.matches))
	g.matches = append(g.matches, &Match{graph: g, handle: h, num: num})
	return h
}

// Match returns the match at h.
func (g *Graph) Match(h Handle) *Match { return g.matches[h] }

// Matches returns every match in creation order.
func (g *Graph) Matches() []*Match { return g.matches }

// Len returns the number of matches.
func (g *Graph) Len() int { return len(g.matches) }

func (g *Graph) linkWinner(from, to Handle, slot int) {
	g.matches[from].winners = append(g.matches[from].winners, Link{Target: to, Slot: slot})
	g.depend(to, from)
}

func (g *Graph) linkLoser(from, to Handle, slot int) {
	g.matches[from].losers = append(g.matches[from].losers, Link{Target: to, Slot: slot})
	g.depend(to, from)
}

// depend records that match h may only be modified once dep is fixed.
func (g *Graph) depend(h, dep Handle) {
	g.matches[h].deps = append(g.matches[h].deps, dep)
}

func (g *Graph) notify() {
	if g.onChange != nil {
		g.onChange()
	}
}

func (g *Graph) fixed() bool {
	for _, m := range g.matches {
		if !m.IsFixed() {
			return false
		}
	}
	return true
}

func (g *Graph) modified() bool {
	for _, m := range g.matches {
		if m.IsModified() {
			return true
		}
	}
	return false
}
