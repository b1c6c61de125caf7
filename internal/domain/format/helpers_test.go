package format

import (
	"fmt"

	"github.com/okian/tourney/internal/domain/competitor"
	"github.com/okian/tourney/internal/domain/tally"
)

// strengthPlayers builds competitors whose single-game odds follow
// s/(s+s_opp). Odds are keyed by ID so copies behave like the original.
func strengthPlayers(strengths ...float64) []*Competitor {
	byID := make(map[string]float64, len(strengths))
	ps := make([]*Competitor, len(strengths))
	for i, s := range strengths {
		id := fmt.Sprintf("p%d", i)
		byID[id] = s
		ps[i] = &Competitor{ID: id, Name: id, Category: competitor.UnknownCategory}
	}
	for _, c := range ps {
		id := c.ID
		c.Beats = func(opp *Competitor) float64 {
			s, o := byID[id], byID[opp.ID]
			if s+o == 0 {
				return 0.5
			}
			return s / (s + o)
		}
	}
	return ps
}

func evenPlayers(n int) []*Competitor {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return strengthPlayers(s...)
}

func maxCompetitorError(t *tally.Tally) float64 {
	var worst float64
	for _, p := range t.Players() {
		worst = max(worst, abs(t.Sum(p)-1))
	}
	return worst
}

func maxBucketError(t *tally.Tally, out []int) float64 {
	var worst float64
	for i, size := range out {
		worst = max(worst, abs(t.BucketSum(i)-float64(size)))
	}
	return worst
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
