package rating

import (
	"math"
	"slices"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// likelihood is the log-likelihood of a batch of games as a function of the
// free parameters x = [overall, rel(played[0]), ..., rel(played[C-2])]. The
// last played category is pinned by the constraint that the played relative
// ratings keep summing to tot.
type likelihood struct {
	games  []Game
	local  []int
	played []int
	tot    float64
}

func newLikelihood(prior *State, games []Game) *likelihood {
	played := lo.Uniq(lo.Map(games, func(g Game, _ int) int { return g.OpponentCategory }))
	slices.Sort(played)
	local := lo.Map(games, func(g Game, _ int) int {
		i, _ := slices.BinarySearch(played, g.OpponentCategory)
		return i
	})
	return &likelihood{
		games:  games,
		local:  local,
		played: played,
		tot:    lo.SumBy(played, func(c int) float64 { return prior.Rating[c+1] }),
	}
}

func (l *likelihood) dim() int { return len(l.played) }

func (l *likelihood) start(prior *State) []float64 {
	x := make([]float64, l.dim())
	x[0] = prior.Rating[0]
	for i := 0; i < l.dim()-1; i++ {
		x[i+1] = prior.Rating[l.played[i]+1]
	}
	return x
}

// extend appends the pinned category to x.
func (l *likelihood) extend(x []float64) []float64 {
	ext := make([]float64, len(x)+1)
	copy(ext, x)
	ext[len(x)] = l.tot - floats.Sum(x[1:])
	return ext
}

// row writes d(strength of game j)/dx into dst.
func (l *likelihood) row(dst []float64, j int) {
	for i := range dst {
		dst[i] = 0
	}
	dst[0] = 1
	c := l.dim()
	if lc := l.local[j]; lc < c-1 {
		dst[lc+1] = 1
		return
	}
	for i := 1; i < c; i++ {
		dst[i] = -1
	}
}

func (l *likelihood) strength(ext []float64, j int) float64 {
	return ext[0] + ext[l.local[j]+1]
}

func (l *likelihood) scale(j int) float64 {
	d := l.games[j].OpponentDev
	return math.Sqrt(d*d + 1)
}

func (l *likelihood) logL(x []float64) float64 {
	ext := l.extend(x)
	var sum float64
	for j, g := range l.games {
		m, s := l.strength(ext, j), l.scale(j)
		sum += g.Wins*logCDF(m, g.OpponentRating, s) + g.Losses*logSurvival(m, g.OpponentRating, s)
	}
	return sum
}

// gradL writes sign * grad logL(x) into grad.
func (l *likelihood) gradL(grad, x []float64, sign float64) {
	ext := l.extend(x)
	row := make([]float64, len(x))
	for i := range grad {
		grad[i] = 0
	}
	for j, g := range l.games {
		m, s := l.strength(ext, j), l.scale(j)
		p := CDF(m, g.OpponentRating, s)
		w := 2 * slope / s * (g.Wins*(1-p) - g.Losses*p)
		l.row(row, j)
		floats.AddScaled(grad, sign*w, row)
	}
}

// curvature is the second derivative of game j's term with respect to its strength.
func (l *likelihood) curvature(ext []float64, j int) float64 {
	g := l.games[j]
	m, s := l.strength(ext, j), l.scale(j)
	return -(g.Wins + g.Losses) * 2 * slope / s * PDF(m, g.OpponentRating, s)
}

// hessL writes sign * Hessian of logL(x) into h.
func (l *likelihood) hessL(h *mat.SymDense, x []float64, sign float64) {
	ext := l.extend(x)
	n := len(x)
	row := make([]float64, n)
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			h.SetSym(a, b, 0)
		}
	}
	for j := range l.games {
		c := sign * l.curvature(ext, j)
		l.row(row, j)
		for a := 0; a < n; a++ {
			for b := a; b < n; b++ {
				h.SetSym(a, b, h.At(a, b)+c*row[a]*row[b])
			}
		}
	}
}

// posteriorDevs returns sqrt(-1/diag H) of the unconstrained Hessian over
// [overall, every played category], floored at minDev.
func (l *likelihood) posteriorDevs(x []float64, minDev float64) []float64 {
	ext := l.extend(x)
	diag := make([]float64, l.dim()+1)
	for j := range l.games {
		c := l.curvature(ext, j)
		diag[0] += c
		diag[l.local[j]+1] += c
	}
	return lo.Map(diag, func(d float64, _ int) float64 {
		if d >= 0 {
			return math.Inf(1)
		}
		return math.Max(math.Sqrt(-1/d), minDev)
	})
}
