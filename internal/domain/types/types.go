// Package types contains the result rows handed to collaborators.
package types

import (
	"slices"

	"github.com/okian/tourney/internal/domain/format"
	"github.com/okian/tourney/internal/domain/tally"
)

// Standing is one competitor's row of a computed tally.
type Standing struct {
	Rank     int       `json:"rank"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Win      float64   `json:"win"`
	Top      float64   `json:"top"`
	Expected float64   `json:"expected"`
	Finishes []float64 `json:"finishes"`
}

// OutcomeLine is the most likely split of a match that can be played next.
type OutcomeLine struct {
	Match  int     `json:"match"`
	A      string  `json:"a"`
	B      string  `json:"b"`
	ScoreA int     `json:"score_a"`
	ScoreB int     `json:"score_b"`
	Prob   float64 `json:"prob"`
	WinA   float64 `json:"win_a"`
}

// Standings ranks the competitors of t. Top is the probability of finishing
// in one of the top best buckets.
func Standings(t *tally.Tally, top int) []Standing {
	if t == nil {
		return nil
	}
	ranked := t.Ranked()
	out := make([]Standing, 0, len(ranked))
	for i, p := range ranked {
		out = append(out, Standing{
			Rank:     i + 1,
			ID:       p.ID,
			Name:     p.Name,
			Win:      t.Win(p),
			Top:      t.Top(p, top),
			Expected: t.Expected(p),
			Finishes: slices.Clone(t.Get(p).Finishes),
		})
	}
	return out
}

// OutcomeLines returns the median split of every unfinished match of f whose
// players are settled, in graph order.
func OutcomeLines(f format.Format) []OutcomeLine {
	matches := f.Matches()
	var out []OutcomeLine
	for i, m := range matches {
		if !m.IsReady() || m.IsFixed() || !settled(matches, m) {
			continue
		}
		o := m.MedianSplit()
		players := m.Players()
		out = append(out, OutcomeLine{
			Match:  i,
			A:      players[0].Name,
			B:      players[1].Name,
			ScoreA: o.ScoreA,
			ScoreB: o.ScoreB,
			Prob:   o.Prob,
			WinA:   m.Probabilities()[0],
		})
	}
	return out
}

func settled(matches []*format.Match, m *format.Match) bool {
	for _, h := range m.Dependencies() {
		if !matches[h].IsFixed() {
			return false
		}
	}
	return true
}
