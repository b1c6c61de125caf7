package format

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/tourney/internal/domain/tally"
)

// MSLGroup is a four-player dual group: two opening matches, a winners' and
// a losers' match, and a decider between the winners' match loser and the
// losers' match winner. Buckets are 4th, 3rd, 2nd, 1st.
type MSLGroup struct {
	base
	first   [2]Handle
	winners Handle
	losers  Handle
	final   Handle
}

// NewMSLGroup creates a dual group where every match is first to num.
func NewMSLGroup(num int, opts ...Option) (*MSLGroup, error) {
	if num < 1 {
		return nil, fmt.Errorf("first to %d: %w", num, ErrInvalidSize)
	}
	f := &MSLGroup{}
	f.init(KindMSLGroup, []int{1, 1, 1, 1}, []int{1, 1, 1, 1}, f, opts)

	g := f.graph
	f.first = [2]Handle{g.add(num), g.add(num)}
	f.winners = g.add(num)
	f.losers = g.add(num)
	f.final = g.add(num)
	for slot, h := range f.first {
		g.linkWinner(h, f.winners, slot)
		g.linkLoser(h, f.losers, slot)
	}
	g.linkLoser(f.winners, f.final, 0)
	g.linkWinner(f.losers, f.final, 1)
	return f, nil
}

func (f *MSLGroup) fill() {
	f.graph.Match(f.first[0]).SetPlayers(f.players[0], f.players[1])
	f.graph.Match(f.first[1]).SetPlayers(f.players[2], f.players[3])
}

func (f *MSLGroup) newTally() *tally.Tally {
	return tally.New(f.players, 4, tally.WithPairs())
}

func (f *MSLGroup) useMonteCarlo() bool { return false }

func (f *MSLGroup) defaultRuns() int { return defaultGroupRuns }

func (f *MSLGroup) levels() [][]Handle {
	return [][]Handle{f.first[:], {f.winners, f.losers}, {f.final}}
}

func (f *MSLGroup) credit(t *tally.Tally) visitFunc {
	return func(l int, path [][]Instance, prob float64) bool {
		switch l {
		case 1:
			t.Get(path[1][1].Loser).Finishes[0] += prob
			t.Get(path[1][0].Winner).Finishes[3] += prob
		case 2:
			fin := path[2][0]
			t.Get(fin.Loser).Finishes[1] += prob
			t.Get(fin.Winner).Finishes[2] += prob
			top := path[1][0].Winner
			t.Get(top).Pairs[fin.Winner] += prob
			t.Get(fin.Winner).Pairs[top] += prob
		}
		return true
	}
}

func (f *MSLGroup) exact(_ context.Context, t *tally.Tally, _ computeOptions) error {
	w := &walker{graph: f.graph, levels: f.levels(), visit: f.credit(t)}
	w.run(1)
	return nil
}

func (f *MSLGroup) monteCarlo(ctx context.Context, t *tally.Tally, runs int, _ computeOptions) error {
	w := &walker{graph: f.graph, levels: f.levels(), rng: f.opts.rng, visit: f.credit(t)}
	return f.sample(ctx, runs, w.run)
}

// Match returns one of "first", "second", "winners", "losers" or "final".
func (f *MSLGroup) Match(key string) (*Match, error) {
	key, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(key)), " ")
	var h Handle
	switch key {
	case "first":
		h = f.first[0]
	case "second":
		h = f.first[1]
	case "winners":
		h = f.winners
	case "losers":
		h = f.losers
	case "final":
		h = f.final
	default:
		return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
	}
	return f.graph.Match(h), nil
}
