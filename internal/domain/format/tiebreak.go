package format

import (
	"context"
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/okian/tourney/internal/domain/tally"
	"github.com/okian/tourney/pkg/logger"
	"github.com/okian/tourney/pkg/metrics"
	"github.com/samber/lo"
)

// Criterion is one round robin tie-break rule.
type Criterion string

// Tie-break criteria. The intra variants only count matches played among the
// tied players.
const (
	MatchScore      Criterion = "mscore"
	SetScore        Criterion = "sscore"
	SetWins         Criterion = "swins"
	IntraMatchScore Criterion = "imscore"
	IntraSetScore   Criterion = "isscore"
	IntraSetWins    Criterion = "iswins"
	Replay          Criterion = "ireplay"
)

// DefaultTieBreaks is the usual order: matches, then set differential, then
// head to head, then a replay among the tied players.
var DefaultTieBreaks = []Criterion{MatchScore, SetScore, IntraMatchScore, IntraSetScore, Replay}

func (c Criterion) valid() bool {
	switch c {
	case MatchScore, SetScore, SetWins, IntraMatchScore, IntraSetScore, IntraSetWins, Replay:
		return true
	}
	return false
}

func (c Criterion) intra() bool {
	return c == IntraMatchScore || c == IntraSetScore || c == IntraSetWins
}

// placement is a share of a seat's finish in a parent bucket.
type placement struct {
	bucket int
	prob   float64
}

// table is the scratch state for one joint outcome, indexed by seat.
type table struct {
	outs                     []Outcome
	mscore, sscore, swins    []int
	imscore, isscore, iswins []int
	order                    []int
	spread                   [][]placement
}

func (tb *table) key(c Criterion, s int) int {
	switch c {
	case MatchScore:
		return tb.mscore[s]
	case SetScore:
		return tb.sscore[s]
	case SetWins:
		return tb.swins[s]
	case IntraMatchScore:
		return tb.imscore[s]
	case IntraSetScore:
		return tb.isscore[s]
	case IntraSetWins:
		return tb.iswins[s]
	}
	return 0
}

// subgroupCache memoises replay groups for one outermost computation, keyed
// by the set of outermost seats taking part.
type subgroupCache struct {
	groups map[string]*RRGroup
}

func newSubgroupCache() *subgroupCache {
	return &subgroupCache{groups: make(map[string]*RRGroup)}
}

type resolver struct {
	g   *RRGroup
	ctx context.Context
	co  computeOptions
	tb  table
}

func (f *RRGroup) resolver(ctx context.Context, co computeOptions) *resolver {
	n := len(f.players)
	return &resolver{
		g:   f,
		ctx: ctx,
		co:  computeOptions{runs: co.runs, forceExact: co.forceExact, forceMC: co.forceMC},
		tb: table{
			mscore:  make([]int, n),
			sscore:  make([]int, n),
			swins:   make([]int, n),
			imscore: make([]int, n),
			isscore: make([]int, n),
			iswins:  make([]int, n),
			order:   make([]int, n),
			spread:  make([][]placement, n),
		},
	}
}

// seats returns the winner and loser seats of o.
func (r *resolver) seats(o Outcome) (int, int) {
	pr := r.g.pairs[o.Match]
	if o.ScoreA > o.ScoreB {
		return pr[0], pr[1]
	}
	return pr[1], pr[0]
}

// score fills the full-table statistics for outs. The returned table is
// reused by the next call.
func (r *resolver) score(outs []Outcome) *table {
	tb := &r.tb
	tb.outs = outs
	clear(tb.mscore)
	clear(tb.sscore)
	clear(tb.swins)
	clear(tb.spread)
	for i := range tb.order {
		tb.order[i] = i
	}
	for _, o := range outs {
		w, l := r.seats(o)
		d := o.WinScore - o.LoseScore
		tb.mscore[w]++
		tb.sscore[w] += d
		tb.sscore[l] -= d
		tb.swins[w] += o.WinScore
		tb.swins[l] += o.LoseScore
	}
	return tb
}

// intra recomputes the head-to-head statistics among group.
func (r *resolver) intra(tb *table, group []int) {
	for _, s := range group {
		tb.imscore[s], tb.isscore[s], tb.iswins[s] = 0, 0, 0
	}
	for x, a := range group {
		for _, b := range group[x+1:] {
			o := tb.outs[r.g.pairIndex(min(a, b), max(a, b))]
			w, l := r.seats(o)
			d := o.WinScore - o.LoseScore
			tb.imscore[w]++
			tb.isscore[w] += d
			tb.isscore[l] -= d
			tb.iswins[w] += o.WinScore
			tb.iswins[l] += o.LoseScore
		}
	}
}

// credit adds one joint outcome of weight w to t and reports whether its
// ranking was resolved. Auxiliary statistics are credited either way.
func (r *resolver) credit(t *tally.Tally, outs []Outcome, w float64) bool {
	tb := r.score(outs)
	ok := r.breakTies(tb, tb.order, 0, r.g.tie)
	n := len(r.g.players)
	for s, p := range r.g.players {
		e := t.Get(p)
		e.MatchWins[tb.mscore[s]] += w
		e.AddSetScore(tb.sscore[s], w)
		e.SetWins[tb.swins[s]] += w
	}
	if !ok {
		return false
	}
	for pos, s := range tb.order {
		e := t.Get(r.g.players[s])
		if sp := tb.spread[s]; sp != nil {
			for _, pl := range sp {
				e.Finishes[pl.bucket] += pl.prob * w
			}
			continue
		}
		e.Finishes[n-1-pos] += w
	}
	return true
}

// breakTies sorts group, which starts at table position start, best first
// and reports whether every position was decided. Tied runs resume at the
// criterion that split them.
func (r *resolver) breakTies(tb *table, group []int, start int, crits []Criterion) bool {
	if len(group) <= 1 {
		return true
	}
	for i, c := range crits {
		if c == Replay {
			return r.replay(tb, group, start)
		}
		if c.intra() {
			r.intra(tb, group)
		}
		slices.SortStableFunc(group, func(a, b int) int { return tb.key(c, b) - tb.key(c, a) })
		if tb.key(c, group[0]) == tb.key(c, group[len(group)-1]) {
			continue
		}
		ok := true
		for from := 0; from < len(group); {
			to := from + 1
			for to < len(group) && tb.key(c, group[to]) == tb.key(c, group[from]) {
				to++
			}
			if to-from > 1 && !r.breakTies(tb, group[from:to], start+from, crits[i:]) {
				ok = false
			}
			from = to
		}
		return ok
	}
	return false
}

// replay settles group by a fresh round robin among the tied players.
func (r *resolver) replay(tb *table, group []int, start int) bool {
	metrics.RecordTieBreakReplay()
	k, n := len(group), len(r.g.players)
	if k == n {
		saved := r.g.saved
		if saved == nil {
			return false
		}
		for _, s := range group {
			e := saved.Get(r.g.players[s])
			if e == nil {
				return false
			}
			tb.spread[s] = spread(e.Finishes, 0)
		}
		return true
	}

	sub, seats := r.subgroup(group)
	if sub == nil || sub.Tally() == nil || sub.Tally().Ambiguous >= 1 {
		return false
	}
	for i, s := range seats {
		e := sub.Tally().Get(sub.players[i])
		tb.spread[s] = spread(e.Finishes, n-start-k)
	}
	return true
}

// spread maps sub-table finishes onto parent buckets starting at offset.
func spread(finishes []float64, offset int) []placement {
	out := make([]placement, 0, len(finishes))
	for f, p := range finishes {
		if p > 0 {
			out = append(out, placement{bucket: offset + f, prob: p})
		}
	}
	return out
}

// subgroup returns the computed replay group for group, and the parent seats
// in the subgroup's seat order.
func (r *resolver) subgroup(group []int) (*RRGroup, []int) {
	g := r.g
	seats := slices.Sorted(slices.Values(group))
	var key bitset.BitSet
	for _, s := range seats {
		key.Set(uint(g.roots[s]))
	}
	id := key.String()
	if sub, ok := g.cache.groups[id]; ok {
		metrics.RecordSubgroupCache(true)
		return sub, seats
	}
	metrics.RecordSubgroupCache(false)

	roots := lo.Map(seats, func(s int, _ int) int { return g.roots[s] })
	sub := newRRGroup(len(seats), g.num, g.tie, 1, roots, g.cache, g.subOptions())
	players := lo.Map(seats, func(s int, _ int) *Competitor { return g.players[s].Copy() })
	if err := sub.SetPlayers(players); err != nil {
		return nil, nil
	}
	if err := sub.compute(r.ctx, r.co); err != nil {
		g.opts.logger.Warn(r.ctx, "replay group failed",
			logger.String("group", id),
			logger.Error(err),
		)
		return nil, nil
	}
	g.cache.groups[id] = sub
	return sub, seats
}
