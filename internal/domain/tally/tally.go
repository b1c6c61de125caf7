// Package tally accumulates placement probabilities and auxiliary statistics
// for every competitor of one computation.
package tally

import (
	"math"
	"slices"

	"github.com/okian/tourney/internal/domain/competitor"
	"github.com/samber/lo"
)

// Competitor is the key type of a tally.
type Competitor = competitor.Competitor

// Entry is the distribution of one competitor. Finishes is indexed by
// placement bucket, the last bucket being the winner. Auxiliary statistics
// are nil unless the tally was created with the matching option.
type Entry struct {
	Finishes []float64

	// Eliminators holds who knocked this competitor out of the bracket.
	Eliminators map[*Competitor]float64
	// Bumpers holds who dropped this competitor into the losers' bracket.
	Bumpers map[*Competitor]float64
	// Pairs holds, for a dual group, who advanced together with this competitor.
	Pairs map[*Competitor]float64

	// MatchWins is indexed by number of matches won.
	MatchWins []float64
	// SetScore is indexed by games won minus games lost, shifted by setScoreOffset.
	SetScore       []float64
	setScoreOffset int
	// SetWins is indexed by number of games won.
	SetWins []float64
	// Scores is a team's distribution over its final match score.
	Scores []float64
}

// AddSetScore credits p to the game differential diff.
func (e *Entry) AddSetScore(diff int, p float64) {
	e.SetScore[diff+e.setScoreOffset] += p
}

// SetScoreAt returns the probability of the game differential diff.
func (e *Entry) SetScoreAt(diff int) float64 {
	i := diff + e.setScoreOffset
	if i < 0 || i >= len(e.SetScore) {
		return 0
	}
	return e.SetScore[i]
}

// SetScoreOffset returns the index of a zero differential in SetScore.
func (e *Entry) SetScoreOffset() int { return e.setScoreOffset }

// ExpectedMatchScore returns the expected matches won and lost in a round robin.
func (e *Entry) ExpectedMatchScore() (float64, float64) {
	wins := expectedIndex(e.MatchWins)
	return wins, float64(len(e.MatchWins)-1) - wins
}

// ExpectedSetScore returns the expected games won and lost in a round robin.
func (e *Entry) ExpectedSetScore() (float64, float64) {
	var diff float64
	for i, p := range e.SetScore {
		diff += float64(i-e.setScoreOffset) * p
	}
	wins := expectedIndex(e.SetWins)
	return wins, wins - diff
}

func expectedIndex(v []float64) float64 {
	var sum float64
	for i, p := range v {
		sum += float64(i) * p
	}
	return sum
}

// Tally maps competitors, in seeding order, to their entries.
type Tally struct {
	order   []*Competitor
	entries map[*Competitor]*Entry

	// Ambiguous is the probability mass of joint outcomes that could not be
	// ranked and were left out before renormalising.
	Ambiguous float64
}

// New creates an empty tally with the given number of placement buckets.
func New(players []*Competitor, buckets int, opts ...Option) *Tally {
	t := &Tally{
		order:   slices.Clone(players),
		entries: make(map[*Competitor]*Entry, len(players)),
	}
	for _, p := range players {
		e := &Entry{Finishes: make([]float64, buckets)}
		for _, opt := range opts {
			opt(e)
		}
		t.entries[p] = e
	}
	return t
}

// Get returns the entry of p, or nil if p is not part of the tally.
func (t *Tally) Get(p *Competitor) *Entry { return t.entries[p] }

// Players returns the competitors in seeding order.
func (t *Tally) Players() []*Competitor { return t.order }

// Buckets returns the number of placement buckets.
func (t *Tally) Buckets() int {
	if len(t.order) == 0 {
		return 0
	}
	return len(t.entries[t.order[0]].Finishes)
}

// Scale divides every accumulated probability by by.
func (t *Tally) Scale(by float64) {
	if by == 0 || by == 1 {
		return
	}
	div := func(v []float64) {
		for i := range v {
			v[i] /= by
		}
	}
	divMap := func(m map[*Competitor]float64) {
		for k := range m {
			m[k] /= by
		}
	}
	for _, e := range t.entries {
		div(e.Finishes)
		div(e.MatchWins)
		div(e.SetScore)
		div(e.SetWins)
		div(e.Scores)
		divMap(e.Eliminators)
		divMap(e.Bumpers)
		divMap(e.Pairs)
	}
}

// Renormalise divides the finishes by the resolved mass and records the rest
// as ambiguous. Auxiliary statistics keep their unconditional values.
func (t *Tally) Renormalise(resolved float64) {
	t.Ambiguous = math.Max(0, 1-resolved)
	if resolved <= 0 || resolved == 1 {
		return
	}
	for _, e := range t.entries {
		for i := range e.Finishes {
			e.Finishes[i] /= resolved
		}
	}
}

// Sum returns the total probability over every bucket for p.
func (t *Tally) Sum(p *Competitor) float64 {
	return lo.Sum(t.entries[p].Finishes)
}

// BucketSum returns the total probability over every competitor for bucket i.
func (t *Tally) BucketSum(i int) float64 {
	return lo.SumBy(t.order, func(p *Competitor) float64 { return t.entries[p].Finishes[i] })
}

// Expected returns the expected bucket index for p.
func (t *Tally) Expected(p *Competitor) float64 {
	return expectedIndex(t.entries[p].Finishes)
}

// Top returns the probability that p finishes in one of the k best buckets.
func (t *Tally) Top(p *Competitor, k int) float64 {
	f := t.entries[p].Finishes
	k = min(k, len(f))
	return lo.Sum(f[len(f)-k:])
}

// Win returns the probability that p finishes in the best bucket.
func (t *Tally) Win(p *Competitor) float64 { return t.Top(p, 1) }

// Ranked returns the competitors ordered by probability of winning, then by
// expected bucket. Ties keep seeding order.
func (t *Tally) Ranked() []*Competitor {
	out := slices.Clone(t.order)
	slices.SortStableFunc(out, func(a, b *Competitor) int {
		if d := t.Win(b) - t.Win(a); d != 0 {
			return sign(d)
		}
		return sign(t.Expected(b) - t.Expected(a))
	})
	return out
}

// TotalVariation returns the largest total-variation distance between the
// finish distributions of any competitor present in both tallies.
func (t *Tally) TotalVariation(other *Tally) float64 {
	var worst float64
	for _, p := range t.order {
		o := other.Get(p)
		if o == nil {
			continue
		}
		var d float64
		for i, v := range t.entries[p].Finishes {
			d += math.Abs(v - o.Finishes[i])
		}
		worst = math.Max(worst, d/2)
	}
	return worst
}

func sign(d float64) int {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}
