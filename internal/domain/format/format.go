// Package format implements tournament structures as graphs of best-of-N
// matches and computes the placement distribution of every competitor, either
// by enumerating every joint outcome or by Monte Carlo sampling.
package format

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/tourney/internal/domain/tally"
	"github.com/okian/tourney/pkg/logger"
	"github.com/okian/tourney/pkg/metrics"
)

// Kind names a tournament structure.
type Kind string

// Supported structures.
const (
	KindSingle    Kind = "single"
	KindSEBracket Kind = "sebracket"
	KindMSLGroup  Kind = "mslgroup"
	KindDEBracket Kind = "debracket"
	KindRRGroup   Kind = "rrgroup"
	KindTeamPL    Kind = "teampl"
	KindTeamAK    Kind = "teamak"
)

// Format is the contract shared by every tournament structure.
type Format interface {
	Kind() Kind
	// Schema returns the seed group sizes and the placement bucket sizes,
	// the last bucket being the winner.
	Schema() (in, out []int)
	Players() []*Competitor
	SetPlayers(players []*Competitor) error
	SetPlayer(i int, p *Competitor) error
	// Compute refreshes the tally. It does nothing when nothing changed since
	// the last call unless Override is given.
	Compute(ctx context.Context, opts ...ComputeOption) error
	Tally() *tally.Tally
	Match(key string) (*Match, error)
	Matches() []*Match
	IsFixed() bool
	IsModified() bool
	// SaveTally keeps the current tally as the reference for later replays.
	SaveTally()
	OriginalTally() *tally.Tally
}

// engine is implemented by each structure and driven by base.
type engine interface {
	fill()
	newTally() *tally.Tally
	useMonteCarlo() bool
	defaultRuns() int
	exact(ctx context.Context, t *tally.Tally, co computeOptions) error
	monteCarlo(ctx context.Context, t *tally.Tally, runs int, co computeOptions) error
}

// base holds what every structure shares: seeds, the match graph and the
// current tally.
type base struct {
	kind      Kind
	schemaIn  []int
	schemaOut []int
	players   []*Competitor
	graph     *Graph
	tally     *tally.Tally
	saved     *tally.Tally
	updated   bool
	opts      options
	eng       engine
}

func (b *base) init(kind Kind, in, out []int, eng engine, opts []Option) {
	b.kind = kind
	b.schemaIn = in
	b.schemaOut = out
	b.opts = newOptions(opts)
	b.eng = eng
	b.graph = newGraph(func() { b.updated = false }, b.opts.logger)
	size := 0
	for _, n := range in {
		size += n
	}
	b.players = make([]*Competitor, size)
}

// Kind returns the structure name.
func (b *base) Kind() Kind { return b.kind }

// Schema returns the input and output schema.
func (b *base) Schema() ([]int, []int) { return b.schemaIn, b.schemaOut }

// Players returns the seeds; unseeded slots are nil.
func (b *base) Players() []*Competitor { return b.players }

// Graph returns the match arena.
func (b *base) Graph() *Graph { return b.graph }

// Matches returns every match in creation order.
func (b *base) Matches() []*Match { return b.graph.Matches() }

// Tally returns the tally of the last successful Compute.
func (b *base) Tally() *tally.Tally { return b.tally }

// SaveTally keeps the current tally.
func (b *base) SaveTally() { b.saved = b.tally }

// OriginalTally returns the tally kept by SaveTally.
func (b *base) OriginalTally() *tally.Tally { return b.saved }

// IsFixed reports whether every match is decided.
func (b *base) IsFixed() bool { return b.graph.fixed() }

// IsModified reports whether any match has a recorded game.
func (b *base) IsModified() bool { return b.graph.modified() }

// SetPlayers seeds every slot at once.
func (b *base) SetPlayers(players []*Competitor) error {
	if len(players) != len(b.players) {
		return fmt.Errorf("%s takes %d players, got %d: %w", b.kind, len(b.players), len(players), ErrInvalidSize)
	}
	copy(b.players, players)
	b.updated = false
	b.eng.fill()
	return nil
}

// SetPlayer seeds slot i.
func (b *base) SetPlayer(i int, p *Competitor) error {
	if i < 0 || i >= len(b.players) {
		return fmt.Errorf("%s has no slot %d: %w", b.kind, i, ErrInvalidSize)
	}
	if b.players[i] == p {
		return nil
	}
	b.players[i] = p
	b.updated = false
	b.eng.fill()
	return nil
}

func (b *base) ready() bool {
	for _, p := range b.players {
		if p == nil {
			return false
		}
	}
	return len(b.players) > 0
}

// Compute refreshes the tally.
func (b *base) Compute(ctx context.Context, opts ...ComputeOption) error {
	var co computeOptions
	for _, opt := range opts {
		opt(&co)
	}
	return b.compute(ctx, co)
}

func (b *base) compute(ctx context.Context, co computeOptions) error {
	if !b.ready() {
		return fmt.Errorf("%s: %w", b.kind, ErrNotReady)
	}
	if b.updated && !co.override {
		return nil
	}

	start := time.Now()
	t := b.eng.newTally()
	mode := "exact"
	var err error
	if co.forceExact || (!co.forceMC && !b.eng.useMonteCarlo()) {
		err = b.eng.exact(ctx, t, co)
	} else {
		mode = "monte_carlo"
		err = b.eng.monteCarlo(ctx, t, b.runs(co), co)
	}
	if err != nil {
		metrics.RecordComputeAbort(string(b.kind))
		b.opts.logger.Warn(ctx, "computation aborted",
			logger.String("format", string(b.kind)),
			logger.Error(err),
		)
		return err
	}

	b.tally = t
	b.updated = true
	elapsed := time.Since(start)
	metrics.RecordComputation(string(b.kind), mode, float64(elapsed.Microseconds())/1000)
	b.opts.logger.Debug(ctx, "computed",
		logger.String("format", string(b.kind)),
		logger.String("mode", mode),
		logger.Int("players", len(b.players)),
		logger.Duration("elapsed", elapsed),
	)
	return nil
}

func (b *base) runs(co computeOptions) int {
	switch {
	case co.runs > 0:
		return co.runs
	case b.opts.runs > 0:
		return b.opts.runs
	default:
		return b.eng.defaultRuns()
	}
}

// sample calls step runs times with weight 1/runs, checking for cancellation
// between samples.
func (b *base) sample(ctx context.Context, runs int, step func(weight float64)) error {
	weight := 1 / float64(runs)
	for i := 0; i < runs; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s after %d of %d samples: %w: %w", b.kind, i, runs, ErrAborted, err)
		}
		step(weight)
		if (i+1)%b.opts.progress == 0 {
			b.opts.logger.Debug(ctx, "monte carlo progress",
				logger.String("format", string(b.kind)),
				logger.Int("done", i+1),
				logger.Int("runs", runs),
			)
		}
	}
	metrics.RecordMonteCarloSamples(string(b.kind), runs)
	return nil
}

// checkpoint reports cancellation during an exact enumeration.
func (b *base) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", b.kind, ErrAborted, err)
	}
	return nil
}
