package format

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/tourney/internal/domain/tally"
	"github.com/okian/tourney/pkg/logger"
	"github.com/okian/tourney/pkg/metrics"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat/combin"
)

// exactLimit is the largest joint outcome count enumerated exactly.
const exactLimit = 2e5

// abortCheckInterval is how many enumerated outcomes pass between cancellation checks.
const abortCheckInterval = 4096

// RRGroup is a round robin where every pair plays once. Ties in the table
// are broken by an ordered list of criteria; outcomes the criteria cannot
// order are left out of the finishes and reported as ambiguous mass.
type RRGroup struct {
	base
	num       int
	tie       []Criterion
	threshold int
	pairs     [][]int
	// roots maps each seat to the seat it came from in the outermost group.
	roots []int
	root  bool
	cache *subgroupCache
}

// NewRRGroup creates a group of n players playing first-to-num matches. The
// top threshold places advance; it only affects reporting.
func NewRRGroup(n, num int, tie []Criterion, threshold int, opts ...Option) (*RRGroup, error) {
	if n < 2 || num < 1 {
		return nil, fmt.Errorf("round robin of %d, first to %d: %w", n, num, ErrInvalidSize)
	}
	for _, c := range tie {
		if !c.valid() {
			return nil, fmt.Errorf("tie-break criterion %q: %w", c, ErrInvalidSize)
		}
	}
	if threshold < 1 || threshold > n {
		threshold = 1
	}
	f := newRRGroup(n, num, tie, threshold, lo.Range(n), nil, opts)
	f.root = true
	return f, nil
}

func newRRGroup(n, num int, tie []Criterion, threshold int, roots []int, cache *subgroupCache, opts []Option) *RRGroup {
	f := &RRGroup{
		num:       num,
		tie:       slices.Clone(tie),
		threshold: threshold,
		pairs:     combin.Combinations(n, 2),
		roots:     roots,
		cache:     cache,
	}
	f.init(KindRRGroup, []int{n}, lo.Times(n, func(int) int { return 1 }), f, opts)
	for range f.pairs {
		f.graph.add(num)
	}
	return f
}

// Threshold returns the number of advancing places.
func (f *RRGroup) Threshold() int { return f.threshold }

// TieBreaks returns the criteria in the order they are applied.
func (f *RRGroup) TieBreaks() []Criterion { return f.tie }

// pairIndex returns the match index of seats i < j in lexicographic pair order.
func (f *RRGroup) pairIndex(i, j int) int {
	n := len(f.players)
	return i*(2*n-i-1)/2 + (j - i - 1)
}

func (f *RRGroup) fill() {
	for m, pr := range f.pairs {
		f.graph.Match(Handle(m)).SetPlayers(f.players[pr[0]], f.players[pr[1]])
	}
}

func (f *RRGroup) newTally() *tally.Tally {
	n := len(f.players)
	return tally.New(f.players, n, tally.WithRoundRobin(n, f.num))
}

func (f *RRGroup) useMonteCarlo() bool {
	return math.Pow(float64(2*f.num), float64(len(f.pairs))) > exactLimit
}

func (f *RRGroup) defaultRuns() int { return defaultGroupRuns }

// subOptions carries the random source and logging into replay subgroups.
func (f *RRGroup) subOptions() []Option {
	return []Option{
		WithRand(f.opts.rng),
		WithLogger(f.opts.logger),
		WithProgressInterval(f.opts.progress),
		WithMonteCarloRuns(f.opts.runs),
	}
}

func (f *RRGroup) exact(ctx context.Context, t *tally.Tally, co computeOptions) error {
	if err := f.checkpoint(ctx); err != nil {
		return err
	}
	if f.root {
		f.cache = newSubgroupCache()
	}
	res := f.resolver(ctx, co)
	sets := lo.Map(f.Matches(), func(m *Match, _ int) []Outcome { return m.InstancesDetail() })

	var (
		resolved float64
		count    int
		err      error
	)
	product(sets, func(outs []Outcome) {
		if err != nil {
			return
		}
		count++
		if count%abortCheckInterval == 0 {
			if err = f.checkpoint(ctx); err != nil {
				return
			}
		}
		p := 1.0
		for _, o := range outs {
			p *= o.Prob
		}
		if p == 0 {
			return
		}
		if res.credit(t, outs, p) {
			resolved += p
		}
	})
	if err != nil {
		return err
	}
	f.settle(ctx, t, resolved)
	return nil
}

func (f *RRGroup) monteCarlo(ctx context.Context, t *tally.Tally, runs int, co computeOptions) error {
	if f.root {
		f.cache = newSubgroupCache()
	}
	res := f.resolver(ctx, co)
	matches := f.Matches()
	outs := make([]Outcome, len(matches))
	var resolved float64
	err := f.sample(ctx, runs, func(w float64) {
		for i, m := range matches {
			outs[i] = m.RandomOutcome(f.opts.rng, true)
		}
		if res.credit(t, outs, w) {
			resolved += w
		}
	})
	if err != nil {
		return err
	}
	f.settle(ctx, t, resolved)
	return nil
}

func (f *RRGroup) settle(ctx context.Context, t *tally.Tally, resolved float64) {
	t.Renormalise(resolved)
	if t.Ambiguous > 0 {
		metrics.RecordAmbiguousMass(t.Ambiguous)
		f.opts.logger.Debug(ctx, "unresolved tie-breaks",
			logger.Int("players", len(f.players)),
			logger.Float64("ambiguous", t.Ambiguous),
		)
	}
}

// ResolveTable orders the players best first for one complete set of match
// outcomes, given in match order.
func (f *RRGroup) ResolveTable(ctx context.Context, outcomes []Outcome) ([]*Competitor, error) {
	if !f.ready() {
		return nil, fmt.Errorf("%s: %w", f.kind, ErrNotReady)
	}
	if len(outcomes) != len(f.pairs) {
		return nil, fmt.Errorf("%d outcomes for %d matches: %w", len(outcomes), len(f.pairs), ErrInvalidSize)
	}
	if f.root {
		f.cache = newSubgroupCache()
	}
	res := f.resolver(ctx, computeOptions{})
	tb := res.score(outcomes)
	if !res.breakTies(tb, tb.order, 0, f.tie) || slices.ContainsFunc(tb.spread, func(s []placement) bool { return s != nil }) {
		return nil, fmt.Errorf("%s: %w", f.kind, ErrAmbiguousRanking)
	}
	return lo.Map(tb.order, func(s int, _ int) *Competitor { return f.players[s] }), nil
}

// Match returns the match by 0-based index or by the two player names
// separated by a space, in either order.
func (f *RRGroup) Match(key string) (*Match, error) {
	if i, err := strconv.Atoi(strings.TrimSpace(key)); err == nil {
		if i < 0 || i >= len(f.pairs) {
			return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
		}
		return f.graph.Match(Handle(i)), nil
	}
	names := strings.Fields(strings.ToLower(key))
	if len(names) != 2 {
		return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
	}
	for _, m := range f.Matches() {
		ps := m.Players()
		if ps[0] == nil || ps[1] == nil {
			continue
		}
		a, b := strings.ToLower(ps[0].Name), strings.ToLower(ps[1].Name)
		if (a == names[0] && b == names[1]) || (a == names[1] && b == names[0]) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
}
