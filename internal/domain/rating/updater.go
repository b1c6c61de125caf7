package rating

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/okian/tourney/pkg/logger"
	"github.com/okian/tourney/pkg/metrics"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Default updater configuration constants.
const (
	defaultCategories = 3
	defaultMinDev     = 0.04
	defaultMaxDev     = 0.6

	gradientThreshold = 1e-9
	convergeAbsolute  = 1e-12
	convergeWindow    = 50
	majorIterations   = 1000
	funcEvaluations   = 20000
)

// Method names one step of the optimizer cascade.
type Method string

// Cascade steps, fastest first.
const (
	Newton     Method = "newton"
	BFGS       Method = "bfgs"
	CMAES      Method = "cmaes"
	NelderMead Method = "nelder_mead"
)

// DefaultMethods is the cascade used unless WithMethods says otherwise.
var DefaultMethods = []Method{Newton, BFGS, CMAES, NelderMead}

func (m Method) optimizer() (optimize.Method, error) {
	switch m {
	case Newton:
		return &optimize.Newton{}, nil
	case BFGS:
		return &optimize.BFGS{}, nil
	case CMAES:
		return &optimize.CmaEsChol{}, nil
	case NelderMead:
		return &optimize.NelderMead{}, nil
	default:
		return nil, fmt.Errorf("rating: unknown method %q", string(m))
	}
}

// Game summarises the games played against one opponent. OpponentRating is
// the opponent's rating against the updated player's category.
type Game struct {
	OpponentRating   float64 `json:"opponent_rating"   koanf:"opponent_rating"`
	OpponentDev      float64 `json:"opponent_dev"      koanf:"opponent_dev"`
	OpponentCategory int     `json:"opponent_category" koanf:"opponent_category"`
	Wins             float64 `json:"wins"              koanf:"wins"`
	Losses           float64 `json:"losses"            koanf:"losses"`
}

func (g Game) valid(categories int) bool {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	return g.OpponentCategory >= 0 && g.OpponentCategory < categories &&
		finite(g.OpponentRating) && finite(g.OpponentDev) && g.OpponentDev >= 0 &&
		finite(g.Wins) && finite(g.Losses) && g.Wins >= 0 && g.Losses >= 0 &&
		g.Wins+g.Losses > 0
}

// Result of an update. When the update changed nothing, State is the prior
// pointer itself. Posterior and PosteriorDev hold the likelihood-only estimate
// for every index where Played is true.
type Result struct {
	State        *State
	Converged    bool
	Method       Method
	Posterior    []float64
	PosteriorDev []float64
	Played       []bool
	Err          error
}

// Updater computes MAP rating updates.
type Updater struct {
	categories int
	minDev     float64
	maxDev     float64
	methods    []Method
	logger     logger.Logger
}

// NewUpdater creates an updater with configuration options.
func NewUpdater(opts ...Option) *Updater {
	u := &Updater{
		categories: defaultCategories,
		minDev:     defaultMinDev,
		maxDev:     defaultMaxDev,
		methods:    DefaultMethods,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Update folds a batch of games into prior. It never fails hard: any problem
// leaves the prior in place and is reported through Result.
func (u *Updater) Update(ctx context.Context, prior *State, games []Game) Result {
	start := time.Now()
	elapsed := func() float64 { return float64(time.Since(start).Microseconds()) / 1000 }

	games = lo.Filter(games, func(g Game, _ int) bool { return g.valid(u.categories) })
	if len(games) == 0 {
		metrics.RecordRatingUpdate("skipped", elapsed())
		return Result{State: prior, Converged: true}
	}

	if !prior.Valid() || prior.Categories() != u.categories {
		u.logger.Warn(ctx, "rating prior rejected", logger.Int("categories", u.categories))
		metrics.RecordRatingUpdate("rejected", elapsed())
		return Result{State: prior, Err: ErrBadPrior}
	}

	lk := newLikelihood(prior, withPhantoms(prior, games))
	x, method, ok := u.maximize(ctx, lk, lk.start(prior))
	if !ok {
		u.logger.Warn(ctx, "rating update did not converge, keeping prior",
			logger.Int("games", len(games)),
			logger.Int("methods", len(u.methods)),
		)
		metrics.RecordRatingUpdate("failed", elapsed())
		return Result{State: prior, Err: ErrNoConvergence}
	}

	res := u.blend(prior, lk, x)
	res.Method = method
	metrics.RecordRatingUpdate("converged", elapsed())
	u.logger.Debug(ctx, "rating updated",
		logger.String("method", string(method)),
		logger.Float64("overall", res.State.Rating[0]),
		logger.Float64("dev", res.State.Dev[0]),
	)
	return res
}

// withPhantoms adds one won and one lost game against the player's own
// overall rating for every category with no wins or no losses, which keeps
// the maximum finite.
func withPhantoms(prior *State, games []Game) []Game {
	type record struct{ wins, losses float64 }
	byCat := make(map[int]*record)
	var order []int
	for _, g := range games {
		r, ok := byCat[g.OpponentCategory]
		if !ok {
			r = &record{}
			byCat[g.OpponentCategory] = r
			order = append(order, g.OpponentCategory)
		}
		r.wins += g.Wins
		r.losses += g.Losses
	}
	slices.Sort(order)

	out := slices.Clone(games)
	for _, c := range order {
		if r := byCat[c]; r.wins == 0 || r.losses == 0 {
			out = append(out, Game{
				OpponentRating:   prior.Rating[0],
				OpponentDev:      prior.Dev[0],
				OpponentCategory: c,
				Wins:             1,
				Losses:           1,
			})
		}
	}
	return out
}

func (u *Updater) maximize(ctx context.Context, lk *likelihood, x0 []float64) ([]float64, Method, bool) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return -lk.logL(x) },
		Grad: func(grad, x []float64) { lk.gradL(grad, x, -1) },
		Hess: func(h *mat.SymDense, x []float64) { lk.hessL(h, x, -1) },
	}
	for _, m := range u.methods {
		if err := ctx.Err(); err != nil {
			u.logger.Warn(ctx, "rating cascade interrupted", logger.Error(err))
			return nil, "", false
		}
		x, ok := u.attempt(ctx, problem, x0, m)
		metrics.RecordOptimizerAttempt(string(m), ok)
		if ok {
			return x, m, true
		}
	}
	return nil, "", false
}

func (u *Updater) attempt(ctx context.Context, problem optimize.Problem, x0 []float64, m Method) ([]float64, bool) {
	method, err := m.optimizer()
	if err != nil {
		u.logger.Warn(ctx, "skipping optimizer", logger.Error(err))
		return nil, false
	}
	settings := &optimize.Settings{
		GradientThreshold: gradientThreshold,
		MajorIterations:   majorIterations,
		FuncEvaluations:   funcEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   convergeAbsolute,
			Iterations: convergeWindow,
		},
	}
	res, err := optimize.Minimize(problem, slices.Clone(x0), settings, method)
	if err != nil || res == nil {
		u.logger.Debug(ctx, "optimizer failed", logger.String("method", string(m)), logger.Error(err))
		return nil, false
	}
	if !converged(res.Status) || math.IsNaN(res.F) || math.IsInf(res.F, 0) || !allFinite(res.X) {
		u.logger.Debug(ctx, "optimizer did not converge",
			logger.String("method", string(m)),
			logger.String("status", res.Status.String()),
		)
		return nil, false
	}
	return res.X, true
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence,
		optimize.StepConvergence, optimize.MethodConverge:
		return true
	default:
		return false
	}
}

func allFinite(x []float64) bool {
	return !lo.ContainsBy(x, func(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) })
}

// blend combines the likelihood estimate with the prior by precision weighting,
// restores the played-category sum, clamps deviations and recentres the
// category ratings on zero.
func (u *Updater) blend(prior *State, lk *likelihood, x []float64) Result {
	k := prior.Categories()
	rats := lk.extend(x)
	devs := lk.posteriorDevs(x, u.minDev)

	next := prior.Clone()
	res := Result{
		State:        next,
		Converged:    true,
		Posterior:    make([]float64, k+1),
		PosteriorDev: make([]float64, k+1),
		Played:       make([]bool, k+1),
	}

	idx := append([]int{0}, lo.Map(lk.played, func(c int, _ int) int { return c + 1 })...)
	for i, at := range idx {
		pl := 1 / (devs[i] * devs[i])
		pr := 1 / (prior.Dev[at] * prior.Dev[at])
		next.Dev[at] = 1 / math.Sqrt(pl+pr)
		next.Rating[at] = (rats[i]*pl + prior.Rating[at]*pr) / (pl + pr)
		res.Posterior[at], res.PosteriorDev[at], res.Played[at] = rats[i], devs[i], true
	}

	cats := idx[1:]
	m := (lo.SumBy(cats, func(at int) float64 { return next.Rating[at] }) - lk.tot) / float64(len(cats))
	for _, at := range cats {
		next.Rating[at] -= m
	}
	next.Rating[0] += m

	for i, d := range next.Dev {
		next.Dev[i] = math.Min(math.Max(d, u.minDev), u.maxDev)
	}

	mean := floats.Sum(next.Rating[1:]) / float64(k)
	for i := 1; i <= k; i++ {
		next.Rating[i] -= mean
	}
	next.Rating[0] += mean
	return res
}
