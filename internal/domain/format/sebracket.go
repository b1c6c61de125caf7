package format

import (
	"context"
	"fmt"
	"math/bits"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/tourney/internal/domain/tally"
	"github.com/samber/lo"
)

// maxRounds bounds bracket depth.
const maxRounds = 16

// SEBracket is a single-elimination bracket. Bucket r holds those knocked out
// in round r; the last bucket is the winner.
type SEBracket struct {
	base
	num    []int
	rounds [][]Handle
}

// NewSEBracket creates a bracket of 2^len(num) players where round r is
// first to num[r].
func NewSEBracket(num []int, opts ...Option) (*SEBracket, error) {
	if len(num) == 0 || len(num) > maxRounds || slices.ContainsFunc(num, func(n int) bool { return n < 1 }) {
		return nil, fmt.Errorf("bracket rounds %v: %w", num, ErrInvalidSize)
	}
	r := len(num)
	out := make([]int, 0, r+1)
	for i := r - 1; i >= 0; i-- {
		out = append(out, 1<<i)
	}
	out = append(out, 1)

	f := &SEBracket{num: slices.Clone(num)}
	f.init(KindSEBracket, lo.Times(1<<r, func(int) int { return 1 }), out, f, opts)
	f.setup()
	return f, nil
}

// NewSEBracketSized creates a bracket of size players, every round first to num.
func NewSEBracketSized(size, num int, opts ...Option) (*SEBracket, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("bracket of %d: %w", size, ErrInvalidSize)
	}
	return NewSEBracket(lo.Times(bits.TrailingZeros(uint(size)), func(int) int { return num }), opts...)
}

func (f *SEBracket) setup() {
	var prev []Handle
	for r, n := range f.num {
		cnt := 1 << (len(f.num) - 1 - r)
		round := make([]Handle, cnt)
		for i := range round {
			round[i] = f.graph.add(n)
			if prev != nil {
				f.graph.linkWinner(prev[2*i], round[i], 0)
				f.graph.linkWinner(prev[2*i+1], round[i], 1)
			}
		}
		f.rounds = append(f.rounds, round)
		prev = round
	}
}

// Rounds returns the number of rounds.
func (f *SEBracket) Rounds() int { return len(f.rounds) }

func (f *SEBracket) fill() {
	for i, p := range f.players {
		f.graph.Match(f.rounds[0][i/2]).SetPlayer(i%2, p)
	}
}

func (f *SEBracket) newTally() *tally.Tally {
	return tally.New(f.players, len(f.schemaOut), tally.WithEliminators())
}

func (f *SEBracket) useMonteCarlo() bool { return len(f.rounds) > 4 }

func (f *SEBracket) defaultRuns() int { return defaultBracketRuns }

func (f *SEBracket) credit(t *tally.Tally) visitFunc {
	last := len(f.rounds) - 1
	return func(l int, path [][]Instance, prob float64) bool {
		for _, inst := range path[l] {
			e := t.Get(inst.Loser)
			e.Finishes[l] += prob
			e.Eliminators[inst.Winner] += prob
		}
		if l == last {
			t.Get(path[l][0].Winner).Finishes[l+1] += prob
		}
		return true
	}
}

func (f *SEBracket) exact(_ context.Context, t *tally.Tally, _ computeOptions) error {
	w := &walker{graph: f.graph, levels: f.rounds, visit: f.credit(t)}
	w.run(1)
	return nil
}

func (f *SEBracket) monteCarlo(ctx context.Context, t *tally.Tally, runs int, _ computeOptions) error {
	w := &walker{graph: f.graph, levels: f.rounds, rng: f.opts.rng, visit: f.credit(t)}
	return f.sample(ctx, runs, w.run)
}

// Match returns the match keyed "round-index", both 1-based, e.g. "2-1".
func (f *SEBracket) Match(key string) (*Match, error) {
	r, i, err := parsePosition(key)
	if err != nil || r < 1 || r > len(f.rounds) || i < 1 || i > len(f.rounds[r-1]) {
		return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
	}
	return f.graph.Match(f.rounds[r-1][i-1]), nil
}

// parsePosition reads "r-i", ignoring anything after the first space.
func parsePosition(key string) (int, int, error) {
	key, _, _ = strings.Cut(strings.TrimSpace(key), " ")
	rs, is, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0, ErrNoSuchMatch
	}
	r, err := strconv.Atoi(rs)
	if err != nil {
		return 0, 0, err
	}
	i, err := strconv.Atoi(is)
	if err != nil {
		return 0, 0, err
	}
	return r, i, nil
}
