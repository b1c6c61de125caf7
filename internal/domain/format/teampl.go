package format

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/tourney/internal/domain/competitor"
	"github.com/okian/tourney/internal/domain/tally"
	"github.com/samber/lo"
)

// newTeams returns the two synthetic competitors a team tally is keyed by.
func newTeams() [2]*Competitor {
	return [2]*Competitor{
		{ID: "team-a", Name: "Team A", Category: competitor.UnknownCategory},
		{ID: "team-b", Name: "Team B", Category: competitor.UnknownCategory},
	}
}

// TeamPL is a proleague team match: seat i of team A plays seat i of team B,
// the team with more pairing wins takes the match and an ace match decides an
// even split. Players are seeded team A first, then team B.
type TeamPL struct {
	base
	n        int
	teams    [2]*Competitor
	pairings []Handle
	ace      Handle
	aceSeats [2]int
}

// NewTeamPL creates a proleague match of n pairings, each first to num.
func NewTeamPL(num, n int, opts ...Option) (*TeamPL, error) {
	if num < 1 || n < 1 {
		return nil, fmt.Errorf("proleague of %d pairings, first to %d: %w", n, num, ErrInvalidSize)
	}
	f := &TeamPL{n: n, teams: newTeams(), ace: -1}
	f.init(KindTeamPL, []int{n, n}, []int{1, 1}, f, opts)
	f.pairings = lo.Times(n, func(int) Handle { return f.graph.add(num) })
	if n%2 == 0 {
		f.ace = f.graph.add(num)
	}
	return f, nil
}

// Teams returns the competitors the tally is keyed by.
func (f *TeamPL) Teams() [2]*Competitor { return f.teams }

// SetAce picks the team A and team B seats that play the ace match.
func (f *TeamPL) SetAce(a, b int) error {
	if f.ace < 0 {
		return fmt.Errorf("odd proleague has no ace match: %w", ErrNoSuchMatch)
	}
	if a < 0 || a >= f.n || b < 0 || b >= f.n {
		return fmt.Errorf("ace seats %d, %d: %w", a, b, ErrInvalidSize)
	}
	f.aceSeats = [2]int{a, b}
	f.updated = false
	f.fill()
	return nil
}

func (f *TeamPL) fill() {
	for i, h := range f.pairings {
		f.graph.Match(h).SetPlayers(f.players[i], f.players[f.n+i])
	}
	if f.ace >= 0 {
		f.graph.Match(f.ace).SetPlayers(f.players[f.aceSeats[0]], f.players[f.n+f.aceSeats[1]])
	}
}

func (f *TeamPL) newTally() *tally.Tally {
	return tally.New(f.teams[:], 2, tally.WithScores(f.n+1))
}

func (f *TeamPL) useMonteCarlo() bool { return false }

func (f *TeamPL) defaultRuns() int { return defaultTeamRuns }

// aceProb returns team A's chance in the ace match, zero when there is none.
func (f *TeamPL) aceProb() float64 {
	if f.ace < 0 {
		return 0
	}
	return f.graph.Match(f.ace).Probabilities()[0]
}

// exact convolves the pairing win probabilities into team A's score
// distribution.
func (f *TeamPL) exact(_ context.Context, t *tally.Tally, _ computeOptions) error {
	dist := make([]float64, f.n+1)
	dist[0] = 1
	for _, h := range f.pairings {
		p := f.graph.Match(h).Probabilities()[0]
		for k := len(dist) - 1; k >= 0; k-- {
			dist[k] *= 1 - p
			if k > 0 {
				dist[k] += dist[k-1] * p
			}
		}
	}
	a, b := t.Get(f.teams[0]), t.Get(f.teams[1])
	ace := f.aceProb()
	for k, p := range dist {
		a.Scores[k] += p
		b.Scores[f.n-k] += p
		switch {
		case 2*k > f.n:
			a.Finishes[1] += p
			b.Finishes[0] += p
		case 2*k < f.n:
			b.Finishes[1] += p
			a.Finishes[0] += p
		default:
			a.Finishes[1] += p * ace
			b.Finishes[0] += p * ace
			b.Finishes[1] += p * (1 - ace)
			a.Finishes[0] += p * (1 - ace)
		}
	}
	return nil
}

func (f *TeamPL) monteCarlo(ctx context.Context, t *tally.Tally, runs int, _ computeOptions) error {
	a, b := t.Get(f.teams[0]), t.Get(f.teams[1])
	return f.sample(ctx, runs, func(w float64) {
		k := 0
		for _, h := range f.pairings {
			m := f.graph.Match(h)
			if m.RandomInstance(f.opts.rng, true).Winner == m.Players()[0] {
				k++
			}
		}
		a.Scores[k] += w
		b.Scores[f.n-k] += w
		win := 2*k > f.n
		if 2*k == f.n {
			m := f.graph.Match(f.ace)
			win = m.RandomInstance(f.opts.rng, true).Winner == m.Players()[0]
		}
		if win {
			a.Finishes[1] += w
			b.Finishes[0] += w
			return
		}
		b.Finishes[1] += w
		a.Finishes[0] += w
	})
}

// IsFixed reports whether the winning team is decided.
func (f *TeamPL) IsFixed() bool {
	var wins [2]int
	open := 0
	for _, h := range f.pairings {
		m := f.graph.Match(h)
		if !m.IsFixed() {
			open++
			continue
		}
		if m.Winner() == m.Players()[0] {
			wins[0]++
		} else {
			wins[1]++
		}
	}
	if 2*wins[0] > f.n || 2*wins[1] > f.n {
		return true
	}
	return open == 0 && f.ace >= 0 && f.graph.Match(f.ace).IsFixed()
}

// Match returns pairing "1".."n" or the "ace" match.
func (f *TeamPL) Match(key string) (*Match, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "ace" && f.ace >= 0 {
		return f.graph.Match(f.ace), nil
	}
	i, err := strconv.Atoi(key)
	if err != nil || i < 1 || i > f.n {
		return nil, fmt.Errorf("%q: %w", key, ErrNoSuchMatch)
	}
	return f.graph.Match(f.pairings[i-1]), nil
}
