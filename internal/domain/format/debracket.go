package format

import (
	"context"
	"fmt"
	"math/bits"
	"strings"

	"github.com/okian/tourney/internal/domain/tally"
	"github.com/samber/lo"
)

// DEBracket is a double-elimination bracket of 2^k players. Losers of the
// first winners' round meet in the losers' bracket, which then alternates
// between taking the losers of the next winners' round and halving itself.
// The grand final may be reset: the winners' bracket champion only needs one
// series win, the losers' bracket champion needs two.
//
// Bucket j holds those eliminated in losers' round j, followed by the runner
// up and the champion.
type DEBracket struct {
	base
	wb    [][]Handle
	lb    [][]Handle
	final Handle
	reset Handle
}

// NewDEBracket creates a double-elimination bracket where every match is first to num.
func NewDEBracket(size, num int, opts ...Option) (*DEBracket, error) {
	if size < 4 || size&(size-1) != 0 || bits.TrailingZeros(uint(size)) > maxRounds || num < 1 {
		return nil, fmt.Errorf("double elimination of %d, first to %d: %w", size, num, ErrInvalidSize)
	}
	f := &DEBracket{}
	f.init(KindDEBracket, lo.Times(size, func(int) int { return 1 }), nil, f, opts)
	f.setup(bits.TrailingZeros(uint(size)), num)
	f.schemaOut = append(lo.Map(f.lb, func(r []Handle, _ int) int { return len(r) }), 1, 1)
	return f, nil
}

func (f *DEBracket) setup(k, num int) {
	g := f.graph
	size := 1 << k

	var prev []Handle
	for r := 0; r < k; r++ {
		round := make([]Handle, size>>(r+1))
		for i := range round {
			round[i] = g.add(num)
			if prev != nil {
				g.linkWinner(prev[2*i], round[i], 0)
				g.linkWinner(prev[2*i+1], round[i], 1)
			}
		}
		f.wb = append(f.wb, round)
		prev = round
	}

	lb := make([]Handle, size/4)
	for i := range lb {
		lb[i] = g.add(num)
		g.linkLoser(f.wb[0][2*i], lb[i], 0)
		g.linkLoser(f.wb[0][2*i+1], lb[i], 1)
	}
	f.lb = append(f.lb, lb)

	for j := 1; j < k; j++ {
		// Winners' losers drop in reversed order to delay rematches.
		drop := make([]Handle, len(lb))
		for i := range drop {
			drop[i] = g.add(num)
			g.linkWinner(lb[i], drop[i], 0)
			g.linkLoser(f.wb[j][len(drop)-1-i], drop[i], 1)
		}
		f.lb = append(f.lb, drop)
		lb = drop
		if j == k-1 {
			break
		}
		pair := make([]Handle, len(drop)/2)
		for i := range pair {
			pair[i] = g.add(num)
			g.linkWinner(drop[2*i], pair[i], 0)
			g.linkWinner(drop[2*i+1], pair[i], 1)
		}
		f.lb = append(f.lb, pair)
		lb = pair
	}

	top := f.wb[k-1][0]
	bottom := lb[0]
	f.final = g.add(num)
	f.reset = g.add(num)
	for _, h := range []Handle{f.final, f.reset} {
		g.linkWinner(top, h, 0)
		g.linkWinner(bottom, h, 1)
	}
	g.depend(f.reset, f.final)
}

func (f *DEBracket) fill() {
	for i, p := range f.players {
		f.graph.Match(f.wb[0][i/2]).SetPlayer(i%2, p)
	}
}

func (f *DEBracket) newTally() *tally.Tally {
	return tally.New(f.players, len(f.schemaOut), tally.WithEliminators(), tally.WithBumpers())
}

func (f *DEBracket) useMonteCarlo() bool { return len(f.wb) > 3 }

func (f *DEBracket) defaultRuns() int { return defaultBracketRuns }

// IsFixed reports whether the champion is decided.
func (f *DEBracket) IsFixed() bool {
	for _, m := range f.graph.Matches() {
		if m.handle == f.reset {
			continue
		}
		if !m.IsFixed() {
			return false
		}
	}
	fin := f.graph.Match(f.final)
	return (fin.IsFixed() && fin.Winner() == fin.Players()[0]) || f.graph.Match(f.reset).IsFixed()
}

func (f *DEBracket) levels() [][]Handle {
	levels := make([][]Handle, 0, len(f.wb)+len(f.lb)+2)
	levels = append(levels, f.wb...)
	levels = append(levels, f.lb...)
	return append(levels, []Handle{f.final}, []Handle{f.reset})
}

func (f *DEBracket) credit(t *tally.Tally) visitFunc {
	k, nlb := len(f.wb), len(f.lb)
	champion := func(inst Instance, prob float64) {
		t.Get(inst.Winner).Finishes[nlb+1] += prob
		t.Get(inst.Loser).Finishes[nlb] += prob
		t.Get(inst.Loser).Eliminators[inst.Winner] += prob
	}
	return func(l int, path [][]Instance, prob float64) bool {
		switch {
		case l < k:
			for _, inst := range path[l] {
				t.Get(inst.Loser).Bumpers[inst.Winner] += prob
			}
		case l < k+nlb:
			for _, inst := range path[l] {
				e := t.Get(inst.Loser)
				e.Finishes[l-k] += prob
				e.Eliminators[inst.Winner] += prob
			}
		case l == k+nlb:
			if inst := path[l][0]; inst.Winner == path[k-1][0].Winner {
				champion(inst, prob)
				return false
			}
		default:
			champion(path[l][0], prob)
		}
		return true
	}
}

func (f *DEBracket) exact(_ context.Context, t *tally.Tally, _ computeOptions) error {
	w := &walker{graph: f.graph, levels: f.levels(), visit: f.credit(t)}
	w.run(1)
	return nil
}

func (f *DEBracket) monteCarlo(ctx context.Context, t *tally.Tally, runs int, _ computeOptions) error {
	w := &walker{graph: f.graph, levels: f.levels(), rng: f.opts.rng, visit: f.credit(t)}
	return f.sample(ctx, runs, w.run)
}

// Match returns "wb r-i", "lb r-i" (1-based), "final" or "reset".
func (f *DEBracket) Match(key string) (*Match, error) {
	fields := strings.Fields(strings.ToLower(key))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
	}
	switch fields[0] {
	case "final":
		return f.graph.Match(f.final), nil
	case "reset":
		return f.graph.Match(f.reset), nil
	}
	var side [][]Handle
	switch fields[0] {
	case "wb":
		side = f.wb
	case "lb":
		side = f.lb
	}
	if side == nil || len(fields) < 2 {
		return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
	}
	r, i, err := parsePosition(fields[1])
	if err != nil || r < 1 || r > len(side) || i < 1 || i > len(side[r-1]) {
		return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
	}
	return f.graph.Match(side[r-1][i-1]), nil
}
