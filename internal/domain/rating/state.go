// Package rating holds the per-category skill state of a competitor and the
// MAP updater that moves it after a batch of games.
package rating

import (
	"math"

	"github.com/samber/lo"
)

// State is a rating vector. Index 0 is the overall rating and index c+1 the
// rating relative to opponents of category c. Dev follows the same layout.
type State struct {
	Rating []float64 `json:"rating"`
	Dev    []float64 `json:"dev"`
}

// NewState returns a state for k categories with every relative rating at zero.
func NewState(k int, overall, dev float64) *State {
	s := &State{
		Rating: make([]float64, k+1),
		Dev:    lo.Times(k+1, func(int) float64 { return dev }),
	}
	s.Rating[0] = overall
	return s
}

// Categories returns the number of matchup categories.
func (s *State) Categories() int { return len(s.Rating) - 1 }

// Clone returns a deep copy.
func (s *State) Clone() *State {
	return &State{
		Rating: append([]float64(nil), s.Rating...),
		Dev:    append([]float64(nil), s.Dev...),
	}
}

func (s *State) known(cat int) bool {
	return cat >= 0 && cat < s.Categories()
}

// Vs returns the effective rating against an opponent of category cat. An
// unknown category yields the overall rating.
func (s *State) Vs(cat int) float64 {
	if !s.known(cat) {
		return s.Rating[0]
	}
	return s.Rating[0] + s.Rating[cat+1]
}

// VarianceVs returns the variance of Vs(cat). For an unknown category the
// category deviations are averaged as if the category were drawn uniformly.
func (s *State) VarianceVs(cat int) float64 {
	d0 := s.Dev[0] * s.Dev[0]
	if s.known(cat) {
		return d0 + s.Dev[cat+1]*s.Dev[cat+1]
	}
	k := float64(s.Categories())
	if k == 0 {
		return d0
	}
	sq := lo.SumBy(s.Dev[1:], func(d float64) float64 { return d * d })
	return d0 + sq/(k*k)
}

// Valid reports whether every entry is finite and every deviation positive.
func (s *State) Valid() bool {
	if s == nil || len(s.Rating) < 1 || len(s.Rating) != len(s.Dev) {
		return false
	}
	for i := range s.Rating {
		if math.IsNaN(s.Rating[i]) || math.IsInf(s.Rating[i], 0) || !(s.Dev[i] > 0) || math.IsInf(s.Dev[i], 0) {
			return false
		}
	}
	return true
}
