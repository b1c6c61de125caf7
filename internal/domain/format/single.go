package format

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/tourney/internal/domain/tally"
)

// SingleMatch is one best-of-(2num-1) match.
type SingleMatch struct {
	base
	match Handle
}

// NewSingleMatch creates a first-to-num match.
func NewSingleMatch(num int, opts ...Option) (*SingleMatch, error) {
	if num < 1 {
		return nil, fmt.Errorf("first to %d: %w", num, ErrInvalidSize)
	}
	f := &SingleMatch{}
	f.init(KindSingle, []int{1, 1}, []int{1, 1}, f, opts)
	f.match = f.graph.add(num)
	return f, nil
}

func (f *SingleMatch) fill() {
	f.graph.Match(f.match).SetPlayers(f.players[0], f.players[1])
}

func (f *SingleMatch) newTally() *tally.Tally { return tally.New(f.players, 2) }

func (f *SingleMatch) useMonteCarlo() bool { return false }

func (f *SingleMatch) defaultRuns() int { return defaultBracketRuns }

func (f *SingleMatch) exact(_ context.Context, t *tally.Tally, _ computeOptions) error {
	for _, o := range f.graph.Match(f.match).InstancesDetail() {
		t.Get(o.Winner).Finishes[1] += o.Prob
		t.Get(o.Loser).Finishes[0] += o.Prob
	}
	return nil
}

func (f *SingleMatch) monteCarlo(ctx context.Context, t *tally.Tally, runs int, _ computeOptions) error {
	m := f.graph.Match(f.match)
	m.ComputeExact()
	return f.sample(ctx, runs, func(w float64) {
		o := m.RandomOutcome(f.opts.rng, true)
		t.Get(o.Winner).Finishes[1] += w
		t.Get(o.Loser).Finishes[0] += w
	})
}

// Match returns the only match for the keys "", "1" and "match".
func (f *SingleMatch) Match(key string) (*Match, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", "1", "match":
		return f.graph.Match(f.match), nil
	default:
		return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
	}
}

// Outcomes returns every final score with its probability.
func (f *SingleMatch) Outcomes() ([]Outcome, error) {
	if !f.ready() {
		return nil, ErrNotReady
	}
	return f.graph.Match(f.match).InstancesDetail(), nil
}

// MedianSplit returns the representative score line.
func (f *SingleMatch) MedianSplit() (Outcome, error) {
	if !f.ready() {
		return Outcome{}, ErrNotReady
	}
	return f.graph.Match(f.match).MedianSplit(), nil
}
