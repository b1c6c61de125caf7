package format

import (
	"math/rand"

	"github.com/samber/lo"
)

// product calls fn with every element of the cartesian product of sets. The
// slice passed to fn is reused between calls.
func product[T any](sets [][]T, fn func([]T)) {
	combo := make([]T, len(sets))
	var rec func(i int)
	rec = func(i int) {
		if i == len(sets) {
			fn(combo)
			return
		}
		for _, v := range sets[i] {
			combo[i] = v
			rec(i + 1)
		}
	}
	rec(0)
}

// visitFunc is called after a level's instances are broadcast. path[l] holds
// the instances chosen at level l. Returning false stops the descent.
type visitFunc func(level int, path [][]Instance, prob float64) bool

// walker advances a graph level by level. With rng nil it enumerates every
// joint outcome of a level, otherwise it draws one instance per match and
// keeps the incoming weight.
type walker struct {
	graph  *Graph
	levels [][]Handle
	rng    *rand.Rand
	visit  visitFunc
	path   [][]Instance
}

func (w *walker) run(prob float64) {
	w.path = make([][]Instance, 0, len(w.levels))
	w.level(0, prob)
}

func (w *walker) level(l int, prob float64) {
	hs := w.levels[l]
	for _, h := range hs {
		w.graph.Match(h).ComputePartial()
	}
	if w.rng != nil {
		combo := lo.Map(hs, func(h Handle, _ int) Instance { return w.graph.Match(h).RandomInstance(w.rng, true) })
		w.step(l, combo, prob)
		return
	}
	sets := lo.Map(hs, func(h Handle, _ int) []Instance { return w.graph.Match(h).Instances() })
	product(sets, func(combo []Instance) {
		p := prob
		for _, inst := range combo {
			p *= inst.Prob
		}
		if p == 0 {
			return
		}
		w.step(l, combo, p)
	})
}

func (w *walker) step(l int, combo []Instance, prob float64) {
	for _, inst := range combo {
		w.graph.Match(inst.Match).Broadcast(inst)
	}
	w.path = append(w.path[:l], combo)
	if !w.visit(l, w.path, prob) {
		return
	}
	if l+1 < len(w.levels) {
		w.level(l+1, prob)
	}
}
