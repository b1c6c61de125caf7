// Package competitor models a seeded participant and its pairwise win probability.
package competitor

import (
	"math"

	"github.com/okian/tourney/internal/domain/rating"
)

// ByeName is the display name of the placeholder that forfeits every match.
const ByeName = "BYE"

// UnknownCategory marks a competitor whose category is not rated against.
const UnknownCategory = -1

// BeatsFunc returns the single-game probability that the receiver beats opp.
type BeatsFunc func(opp *Competitor) float64

// Competitor is a participant. It is owned by the caller and never mutated by
// a computation.
type Competitor struct {
	ID       string
	Name     string
	Category int
	State    *rating.State
	Bye      bool

	// Beats, when set, replaces the rating-based probability.
	Beats BeatsFunc
}

// New creates a rated competitor.
func New(id, name string, category int, state *rating.State) *Competitor {
	return &Competitor{ID: id, Name: name, Category: category, State: state}
}

// NewBye creates a BYE placeholder.
func NewBye() *Competitor {
	return &Competitor{ID: ByeName, Name: ByeName, Category: UnknownCategory, Bye: true}
}

// Copy returns a shallow copy that keeps the ID so results map back.
func (c *Competitor) Copy() *Competitor {
	cp := *c
	return &cp
}

func (c *Competitor) String() string { return c.Name }

// ProbabilityOfBeating returns the single-game win probability against opp.
func (c *Competitor) ProbabilityOfBeating(opp *Competitor) float64 {
	switch {
	case c.Bye && opp.Bye:
		return 0.5
	case c.Bye:
		return 0
	case opp.Bye:
		return 1
	case c.Beats != nil:
		return clamp(c.Beats(opp))
	case opp.Beats != nil:
		return clamp(1 - opp.Beats(c))
	case c.State == nil || opp.State == nil:
		return 0.5
	}
	mine := c.State.Vs(opp.Category)
	theirs := opp.State.Vs(c.Category)
	scale := math.Sqrt(1 + c.State.VarianceVs(opp.Category) + opp.State.VarianceVs(c.Category))
	return rating.CDF(mine-theirs, 0, scale)
}

func clamp(p float64) float64 {
	if math.IsNaN(p) {
		return 0.5
	}
	return math.Min(math.Max(p, 0), 1)
}
