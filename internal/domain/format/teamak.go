package format

import (
	"context"
	"fmt"

	"github.com/okian/tourney/internal/domain/tally"
	"github.com/samber/lo"
)

// TeamAK is an all-kill team match: the winner of each game stays on and the
// loser's team sends its next player until one team runs out. Players are
// seeded team A first, then team B, each in sending order. Team scores count
// the opponents eliminated.
type TeamAK struct {
	base
	n     int
	teams [2]*Competitor
	// grid[i][j] is the match between A's i-th and B's j-th player.
	grid [][]Handle
}

// NewTeamAK creates an all-kill match of n players a side, each game first to num.
func NewTeamAK(num, n int, opts ...Option) (*TeamAK, error) {
	if num < 1 || n < 1 {
		return nil, fmt.Errorf("all-kill of %d a side, first to %d: %w", n, num, ErrInvalidSize)
	}
	f := &TeamAK{n: n, teams: newTeams()}
	f.init(KindTeamAK, []int{n, n}, []int{1, 1}, f, opts)
	f.grid = lo.Times(n, func(int) []Handle {
		return lo.Times(n, func(int) Handle { return f.graph.add(num) })
	})
	return f, nil
}

// Teams returns the competitors the tally is keyed by.
func (f *TeamAK) Teams() [2]*Competitor { return f.teams }

func (f *TeamAK) fill() {
	for i, row := range f.grid {
		for j, h := range row {
			f.graph.Match(h).SetPlayers(f.players[i], f.players[f.n+j])
		}
	}
}

func (f *TeamAK) newTally() *tally.Tally {
	return tally.New(f.teams[:], 2, tally.WithScores(f.n+1))
}

func (f *TeamAK) useMonteCarlo() bool { return false }

func (f *TeamAK) defaultRuns() int { return defaultTeamRuns }

// exact propagates the probability of each (A's player, B's player) pairing
// being reached until one side is exhausted.
func (f *TeamAK) exact(_ context.Context, t *tally.Tally, _ computeOptions) error {
	reach := lo.Times(f.n+1, func(int) []float64 { return make([]float64, f.n+1) })
	reach[0][0] = 1
	for i := 0; i < f.n; i++ {
		for j := 0; j < f.n; j++ {
			r := reach[i][j]
			if r == 0 {
				continue
			}
			p := f.graph.Match(f.grid[i][j]).Probabilities()[0]
			reach[i][j+1] += r * p
			reach[i+1][j] += r * (1 - p)
		}
	}
	a, b := t.Get(f.teams[0]), t.Get(f.teams[1])
	for k := 0; k < f.n; k++ {
		// A wins having lost k players; B loses having lost k.
		pa, pb := reach[k][f.n], reach[f.n][k]
		a.Finishes[1] += pa
		b.Finishes[0] += pa
		a.Scores[f.n] += pa
		b.Scores[k] += pa
		b.Finishes[1] += pb
		a.Finishes[0] += pb
		b.Scores[f.n] += pb
		a.Scores[k] += pb
	}
	return nil
}

func (f *TeamAK) monteCarlo(ctx context.Context, t *tally.Tally, runs int, _ computeOptions) error {
	a, b := t.Get(f.teams[0]), t.Get(f.teams[1])
	return f.sample(ctx, runs, func(w float64) {
		i, j := 0, 0
		for i < f.n && j < f.n {
			m := f.graph.Match(f.grid[i][j])
			if m.RandomInstance(f.opts.rng, true).Winner == m.Players()[0] {
				j++
			} else {
				i++
			}
		}
		a.Scores[j] += w
		b.Scores[i] += w
		if j == f.n {
			a.Finishes[1] += w
			b.Finishes[0] += w
			return
		}
		b.Finishes[1] += w
		a.Finishes[0] += w
	})
}

// IsFixed reports whether the fixed results already decide the match.
func (f *TeamAK) IsFixed() bool {
	i, j := 0, 0
	for i < f.n && j < f.n {
		m := f.graph.Match(f.grid[i][j])
		if !m.IsFixed() {
			return false
		}
		if m.Winner() == m.Players()[0] {
			j++
		} else {
			i++
		}
	}
	return true
}

// Match returns the match keyed "i-j", both 1-based, between A's i-th and
// B's j-th player.
func (f *TeamAK) Match(key string) (*Match, error) {
	i, j, err := parsePosition(key)
	if err != nil || i < 1 || i > f.n || j < 1 || j > f.n {
		return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
	}
	return f.graph.Match(f.grid[i-1][j-1]), nil
}
