package format

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/okian/tourney/internal/domain/competitor"
	"github.com/okian/tourney/internal/domain/tally"
	"github.com/okian/tourney/pkg/logger"
	"github.com/okian/tourney/pkg/metrics"
	"gonum.org/v1/gonum/stat/combin"
)

// Competitor is the participant type seeded into formats.
type Competitor = competitor.Competitor

// exactBinomialLimit is the largest n for which combin.Binomial fits an int.
const exactBinomialLimit = 60

// Instance is a match result reduced to who won.
type Instance struct {
	Prob   float64
	Winner *Competitor
	Loser  *Competitor
	Match  Handle
}

// Outcome is a concrete final score.
type Outcome struct {
	Prob      float64
	ScoreA    int
	ScoreB    int
	Winner    *Competitor
	Loser     *Competitor
	WinScore  int
	LoseScore int
	Match     Handle
}

// Match is a first-to-num contest between two slots.
type Match struct {
	graph   *Graph
	handle  Handle
	num     int
	players [2]*Competitor
	result  [2]int
	byeAuto bool

	winners []Link
	losers  []Link
	deps    []Handle

	probs    [2]float64
	partial  bool
	outcomes []Outcome
	exact    bool
	tally    *tally.Tally

	instance *Instance
	outcome  *Outcome
}

// Handle returns the match's address in its graph.
func (m *Match) Handle() Handle { return m.handle }

// Num returns the number of games needed to win.
func (m *Match) Num() int { return m.num }

// Players returns both slots; either may be nil.
func (m *Match) Players() [2]*Competitor { return m.players }

// Result returns the running score.
func (m *Match) Result() (int, int) { return m.result[0], m.result[1] }

// Dependencies returns the matches that must be fixed before this one.
func (m *Match) Dependencies() []Handle { return m.deps }

// IsReady reports whether both slots are filled.
func (m *Match) IsReady() bool { return m.players[0] != nil && m.players[1] != nil }

// IsFixed reports whether one side has reached num wins.
func (m *Match) IsFixed() bool { return m.result[0] == m.num || m.result[1] == m.num }

// IsModified reports whether any game has been recorded.
func (m *Match) IsModified() bool { return m.result[0] != 0 || m.result[1] != 0 }

func (m *Match) hasBye() bool {
	return (m.players[0] != nil && m.players[0].Bye) || (m.players[1] != nil && m.players[1].Bye)
}

func (m *Match) modifiable() error {
	if !m.IsReady() {
		return ErrNotReady
	}
	for _, d := range m.deps {
		if !m.graph.Match(d).IsFixed() {
			return ErrDependencyUnmet
		}
	}
	if m.hasBye() {
		return ErrByeMatch
	}
	return nil
}

// CanModify reports whether Modify would accept a legal score.
func (m *Match) CanModify() bool { return m.modifiable() == nil }

// Modify records a real running score. Nothing changes when it is rejected.
func (m *Match) Modify(a, b int) error {
	err := m.modifiable()
	if err == nil && (a < 0 || b < 0 || a > m.num || b > m.num || (a == m.num && b == m.num)) {
		err = ErrIllegalScore
	}
	metrics.RecordModification(err == nil)
	if err != nil {
		m.graph.logger.Debug(context.Background(), "modification rejected",
			logger.Int("match", int(m.handle)),
			logger.Int("a", a),
			logger.Int("b", b),
			logger.Error(err),
		)
		return fmt.Errorf("match %d: %w", m.handle, err)
	}
	m.byeAuto = false
	m.set(a, b)
	return nil
}

// Clear resets the running score.
func (m *Match) Clear() error { return m.Modify(0, 0) }

// set stores a score and broadcasts the result when it is final.
func (m *Match) set(a, b int) {
	if m.result == [2]int{a, b} {
		return
	}
	m.result = [2]int{a, b}
	m.invalidate()
	m.graph.notify()
	if m.IsFixed() {
		m.Broadcast(m.fixedInstance())
	}
}

// SetPlayer places c into slot and resolves bye matches.
func (m *Match) SetPlayer(slot int, c *Competitor) {
	if m.players[slot] == c {
		return
	}
	m.players[slot] = c
	m.changed()
}

// SetPlayers places a and b into the two slots.
func (m *Match) SetPlayers(a, b *Competitor) {
	if m.players[0] == a && m.players[1] == b {
		return
	}
	m.players = [2]*Competitor{a, b}
	m.changed()
}

func (m *Match) changed() {
	m.invalidate()
	if m.byeAuto {
		m.byeAuto = false
		m.result = [2]int{}
	}
	m.graph.notify()
	m.fill()
}

// fill resolves a match against a bye to the maximum score for the other side.
func (m *Match) fill() {
	if !m.IsReady() {
		return
	}
	switch {
	case m.players[1].Bye:
		m.byeAuto = true
		m.set(m.num, 0)
	case m.players[0].Bye:
		m.byeAuto = true
		m.set(0, m.num)
	}
}

func (m *Match) invalidate() {
	m.partial = false
	m.exact = false
	m.instance = nil
	m.outcome = nil
}

func (m *Match) fixedInstance() Instance {
	w, l := m.players[0], m.players[1]
	if m.result[1] > m.result[0] {
		w, l = l, w
	}
	return Instance{Prob: 1, Winner: w, Loser: l, Match: m.handle}
}

// Winner returns the winner of a fixed match, or nil.
func (m *Match) Winner() *Competitor {
	if !m.IsFixed() {
		return nil
	}
	return m.fixedInstance().Winner
}

// binomial returns C(n, k), with C(n, 0) = 1 for every n and 0 when k > n.
func binomial(n, k int) float64 {
	switch {
	case k == 0:
		return 1
	case n < k || n < 0:
		return 0
	case n <= exactBinomialLimit:
		return float64(combin.Binomial(n, k))
	default:
		return combin.GeneralizedBinomial(float64(n), float64(k))
	}
}

// term is the probability that the side needing need more wins takes the
// match after the other side has added i more wins.
func term(p float64, need, i int) float64 {
	return binomial(need+i-1, i) * math.Pow(p, float64(need)) * math.Pow(1-p, float64(i))
}

// ComputePartial computes each side's probability of winning the match from
// the running score.
func (m *Match) ComputePartial() {
	if !m.IsReady() {
		return
	}
	if m.IsFixed() {
		w := m.fixedInstance().Winner
		m.probs = [2]float64{0, 0}
		m.probs[slices.Index(m.players[:], w)] = 1
		m.partial = true
		return
	}
	pa := m.players[0].ProbabilityOfBeating(m.players[1])
	sa, sb := m.result[0], m.result[1]
	var p0, p1 float64
	for i := 0; i < m.num-sb; i++ {
		p0 += term(pa, m.num-sa, i)
	}
	for i := 0; i < m.num-sa; i++ {
		p1 += term(1-pa, m.num-sb, i)
	}
	m.probs = [2]float64{p0, p1}
	m.partial = true
}

// ComputeExact enumerates every final score reachable from the running score
// and credits a two-bucket [loss, win] tally.
func (m *Match) ComputeExact() {
	if !m.IsReady() {
		return
	}
	a, b := m.players[0], m.players[1]
	m.tally = tally.New([]*Competitor{a, b}, 2)
	m.outcomes = m.outcomes[:0]
	sa, sb := m.result[0], m.result[1]

	if m.IsFixed() {
		inst := m.fixedInstance()
		m.outcomes = append(m.outcomes, Outcome{
			Prob: 1, ScoreA: sa, ScoreB: sb,
			Winner: inst.Winner, Loser: inst.Loser,
			WinScore: max(sa, sb), LoseScore: min(sa, sb),
			Match: m.handle,
		})
		m.tally.Get(inst.Winner).Finishes[1] = 1
		m.tally.Get(inst.Loser).Finishes[0] = 1
	} else {
		pa := a.ProbabilityOfBeating(b)
		for i := 0; i < m.num-sb; i++ {
			p := term(pa, m.num-sa, i)
			m.outcomes = append(m.outcomes, Outcome{
				Prob: p, ScoreA: m.num, ScoreB: sb + i,
				Winner: a, Loser: b, WinScore: m.num, LoseScore: sb + i,
				Match: m.handle,
			})
			m.tally.Get(a).Finishes[1] += p
			m.tally.Get(b).Finishes[0] += p
		}
		for i := 0; i < m.num-sa; i++ {
			p := term(1-pa, m.num-sb, i)
			m.outcomes = append(m.outcomes, Outcome{
				Prob: p, ScoreA: sa + i, ScoreB: m.num,
				Winner: b, Loser: a, WinScore: m.num, LoseScore: sa + i,
				Match: m.handle,
			})
			m.tally.Get(b).Finishes[1] += p
			m.tally.Get(a).Finishes[0] += p
		}
	}
	m.probs = [2]float64{m.tally.Get(a).Finishes[1], m.tally.Get(b).Finishes[1]}
	m.partial = true
	m.exact = true
}

// Probabilities returns each slot's probability of winning, computing them if needed.
func (m *Match) Probabilities() [2]float64 {
	if !m.partial {
		m.ComputePartial()
	}
	return m.probs
}

// Tally returns the [loss, win] tally of the last ComputeExact.
func (m *Match) Tally() *tally.Tally { return m.tally }

// Instances returns the winner/loser outcomes with their probabilities.
func (m *Match) Instances() []Instance {
	if m.IsFixed() {
		return []Instance{m.fixedInstance()}
	}
	p := m.Probabilities()
	return []Instance{
		{Prob: p[0], Winner: m.players[0], Loser: m.players[1], Match: m.handle},
		{Prob: p[1], Winner: m.players[1], Loser: m.players[0], Match: m.handle},
	}
}

// InstancesDetail returns every concrete final score, computing them if needed.
func (m *Match) InstancesDetail() []Outcome {
	if !m.exact {
		m.ComputeExact()
	}
	return m.outcomes
}

// RandomInstance draws a winner in proportion to its probability. The draw is
// remembered until the match changes unless fresh is set.
func (m *Match) RandomInstance(rng *rand.Rand, fresh bool) Instance {
	if !fresh && m.instance != nil {
		return *m.instance
	}
	insts := m.Instances()
	inst := insts[draw(rng, len(insts), func(i int) float64 { return insts[i].Prob })]
	m.instance = &inst
	return inst
}

// RandomOutcome draws a final score in proportion to its probability.
func (m *Match) RandomOutcome(rng *rand.Rand, fresh bool) Outcome {
	if !fresh && m.outcome != nil {
		return *m.outcome
	}
	outs := m.InstancesDetail()
	out := outs[draw(rng, len(outs), func(i int) float64 { return outs[i].Prob })]
	m.outcome = &out
	return out
}

// draw samples an index by inverse CDF. Rounding leftovers fall on the last index.
func draw(rng *rand.Rand, n int, prob func(int) float64) int {
	val := rng.Float64()
	for i := 0; i < n; i++ {
		p := prob(i)
		if val < p {
			return i
		}
		val -= p
	}
	return n - 1
}

// MedianSplit returns the outcome, ordered by score differential, that splits
// the probability mass closest to evenly.
func (m *Match) MedianSplit() Outcome {
	outs := slices.Clone(m.InstancesDetail())
	slices.SortStableFunc(outs, func(x, y Outcome) int {
		return (x.ScoreA - x.ScoreB) - (y.ScoreA - y.ScoreB)
	})
	var total float64
	for _, o := range outs {
		total += o.Prob
	}
	best, objective := 0, math.Inf(1)
	var left float64
	for i, o := range outs {
		right := total - left
		if v := -math.Min(left+o.Prob, right); v < objective {
			best, objective = i, v
		}
		left += o.Prob
	}
	return outs[best]
}

// Broadcast pushes inst's winner and loser into every linked slot.
func (m *Match) Broadcast(inst Instance) {
	for _, l := range m.winners {
		m.graph.Match(l.Target).SetPlayer(l.Slot, inst.Winner)
	}
	for _, l := range m.losers {
		m.graph.Match(l.Target).SetPlayer(l.Slot, inst.Loser)
	}
}
