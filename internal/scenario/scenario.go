// Package scenario reads tournament scenario files: the players with their
// ratings, the structure they play, the results known so far and any rating
// batches to apply.
//
// Files are YAML and loaded through koanf, the same way process
// configuration is.
package scenario

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/tourney/internal/domain/competitor"
	"github.com/okian/tourney/internal/domain/format"
	"github.com/okian/tourney/internal/domain/rating"
	"github.com/okian/tourney/pkg/logger"
	"github.com/samber/lo"
)

const defaultInitDev = 0.16

// Compute modes.
const (
	ModeAuto       = ""
	ModeExact      = "exact"
	ModeMonteCarlo = "monte_carlo"
)

// File is the on-disk layout of a scenario.
type File struct {
	Name    string       `koanf:"name"`
	Top     int          `koanf:"top"`
	Mode    string       `koanf:"mode"`
	Runs    int          `koanf:"runs"`
	Format  FormatSpec   `koanf:"format"`
	Players []PlayerSpec `koanf:"players"`
	Results []ResultSpec `koanf:"results"`
	Ratings []BatchSpec  `koanf:"ratings"`
}

// FormatSpec selects the structure. Its size always follows the player list.
type FormatSpec struct {
	Kind      string   `koanf:"kind"`
	Num       int      `koanf:"num"`
	Rounds    []int    `koanf:"rounds"`
	Tie       []string `koanf:"tie"`
	Threshold int      `koanf:"threshold"`
	Ace       []int    `koanf:"ace"`
}

// PlayerSpec is one seed. Rating and Dev hold either a single overall value
// or the full vector, overall first.
type PlayerSpec struct {
	ID       string    `koanf:"id"`
	Name     string    `koanf:"name"`
	Category string    `koanf:"category"`
	Rating   []float64 `koanf:"rating"`
	Dev      []float64 `koanf:"dev"`
	Bye      bool      `koanf:"bye"`
}

// ResultSpec is a real running score for the match named by Match.
type ResultSpec struct {
	Match string `koanf:"match"`
	Score []int  `koanf:"score"`
}

// BatchSpec is a set of games to fold into one player's rating.
type BatchSpec struct {
	Player string     `koanf:"player"`
	Games  []GameSpec `koanf:"games"`
}

// GameSpec is the record against one opponent. A named Opponent is looked up
// among the players; otherwise the opponent fields are taken as given.
type GameSpec struct {
	Opponent         string  `koanf:"opponent"`
	OpponentRating   float64 `koanf:"opponent_rating"`
	OpponentDev      float64 `koanf:"opponent_dev"`
	OpponentCategory string  `koanf:"opponent_category"`
	Wins             float64 `koanf:"wins"`
	Losses           float64 `koanf:"losses"`
}

// Scenario is a ready-to-compute tournament.
type Scenario struct {
	Name    string
	Top     int
	Format  format.Format
	Players []*competitor.Competitor
	Compute []format.ComputeOption
	Ratings []Batch
}

// Batch is a resolved rating batch.
type Batch struct {
	Player *competitor.Competitor
	Games  []rating.Game
}

// Loader turns scenario files into formats.
type Loader struct {
	categories []string
	initDev    float64
	formatOpts []format.Option
	logger     logger.Logger
}

// NewLoader creates a loader with configuration options.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		categories: []string{"P", "T", "Z"},
		initDev:    defaultInitDev,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadAll loads every path in order and stops at the first failure.
func (l *Loader) LoadAll(ctx context.Context, paths []string) ([]*Scenario, error) {
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := l.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Load reads and builds the scenario at path.
func (l *Loader) Load(ctx context.Context, path string) (*Scenario, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadScenario, path, err)
	}
	var f File
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadScenario, path, err)
	}
	if f.Name == "" {
		f.Name = path
	}
	return l.Build(ctx, f)
}

// Build validates f and assembles its format with the known results applied.
func (l *Loader) Build(ctx context.Context, f File) (*Scenario, error) { //nolint:gocritic // hugeParam: File mirrors the YAML document
	invalid := func(msg string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidScenario, f.Name, fmt.Sprintf(msg, args...))
	}

	players, err := l.players(f.Players, invalid)
	if err != nil {
		return nil, err
	}
	fm, err := l.format(f.Format, len(players))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidScenario, f.Name, err)
	}
	if err := fm.SetPlayers(players); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidScenario, f.Name, err)
	}

	for _, r := range f.Results {
		if len(r.Score) != 2 {
			return nil, invalid("match %q needs a score of two numbers", r.Match)
		}
		m, err := fm.Match(r.Match)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidScenario, f.Name, err)
		}
		if err := m.Modify(r.Score[0], r.Score[1]); err != nil {
			return nil, fmt.Errorf("%w: %s: match %q: %w", ErrInvalidScenario, f.Name, r.Match, err)
		}
	}

	compute, err := computeOptions(f.Mode, f.Runs)
	if err != nil {
		return nil, invalid("%v", err)
	}
	batches, err := l.batches(f.Ratings, players, invalid)
	if err != nil {
		return nil, err
	}

	top := f.Top
	if top < 1 {
		top = 1
	}
	l.logger.Debug(ctx, "scenario built",
		logger.String("name", f.Name),
		logger.String("format", string(fm.Kind())),
		logger.Int("players", len(players)),
		logger.Int("results", len(f.Results)),
		logger.Int("rating_batches", len(batches)),
	)
	return &Scenario{
		Name:    f.Name,
		Top:     top,
		Format:  fm,
		Players: players,
		Compute: compute,
		Ratings: batches,
	}, nil
}

func (l *Loader) category(name string) (int, bool) {
	if name == "" {
		return competitor.UnknownCategory, true
	}
	i := slices.Index(l.categories, name)
	return i, i >= 0
}

func (l *Loader) players(specs []PlayerSpec, invalid func(string, ...any) error) ([]*competitor.Competitor, error) {
	if len(specs) == 0 {
		return nil, invalid("no players")
	}
	seen := make(map[string]bool, len(specs))
	out := make([]*competitor.Competitor, 0, len(specs))
	for i, ps := range specs {
		if ps.Bye {
			out = append(out, competitor.NewBye())
			continue
		}
		if ps.Name == "" {
			return nil, invalid("player %d has no name", i)
		}
		if seen[ps.Name] {
			return nil, invalid("player %q listed twice", ps.Name)
		}
		seen[ps.Name] = true

		cat, ok := l.category(ps.Category)
		if !ok {
			return nil, invalid("player %q has unknown category %q", ps.Name, ps.Category)
		}
		state, err := l.state(ps.Rating, ps.Dev)
		if err != nil {
			return nil, invalid("player %q: %v", ps.Name, err)
		}
		id := ps.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, competitor.New(id, ps.Name, cat, state))
	}
	return out, nil
}

func (l *Loader) state(r, d []float64) (*rating.State, error) {
	k := len(l.categories)
	var s *rating.State
	switch len(r) {
	case 0:
		s = rating.NewState(k, 0, l.initDev)
	case 1:
		s = rating.NewState(k, r[0], l.initDev)
	case k + 1:
		s = rating.NewState(k, 0, l.initDev)
		copy(s.Rating, r)
	default:
		return nil, fmt.Errorf("rating needs 1 or %d values, got %d", k+1, len(r))
	}
	switch len(d) {
	case 0:
	case 1:
		s.Dev = lo.Times(k+1, func(int) float64 { return d[0] })
	case k + 1:
		copy(s.Dev, d)
	default:
		return nil, fmt.Errorf("dev needs 1 or %d values, got %d", k+1, len(d))
	}
	if !s.Valid() {
		return nil, fmt.Errorf("rating %v with dev %v is not usable", s.Rating, s.Dev)
	}
	return s, nil
}

func (l *Loader) format(spec FormatSpec, n int) (format.Format, error) {
	opts := l.formatOpts
	switch format.Kind(spec.Kind) {
	case format.KindSingle:
		return format.NewSingleMatch(spec.Num, opts...)
	case format.KindSEBracket:
		if len(spec.Rounds) > 0 {
			return format.NewSEBracket(spec.Rounds, opts...)
		}
		return format.NewSEBracketSized(n, spec.Num, opts...)
	case format.KindMSLGroup:
		return format.NewMSLGroup(spec.Num, opts...)
	case format.KindDEBracket:
		return format.NewDEBracket(n, spec.Num, opts...)
	case format.KindRRGroup:
		tie := format.DefaultTieBreaks
		if len(spec.Tie) > 0 {
			tie = lo.Map(spec.Tie, func(s string, _ int) format.Criterion { return format.Criterion(s) })
		}
		return format.NewRRGroup(n, spec.Num, tie, spec.Threshold, opts...)
	case format.KindTeamPL:
		if n%2 != 0 {
			return nil, fmt.Errorf("team match needs an even player list, got %d: %w", n, format.ErrInvalidSize)
		}
		f, err := format.NewTeamPL(spec.Num, n/2, opts...)
		if err != nil {
			return nil, err
		}
		if len(spec.Ace) == 2 {
			if err := f.SetAce(spec.Ace[0], spec.Ace[1]); err != nil {
				return nil, err
			}
		}
		return f, nil
	case format.KindTeamAK:
		if n%2 != 0 {
			return nil, fmt.Errorf("team match needs an even player list, got %d: %w", n, format.ErrInvalidSize)
		}
		return format.NewTeamAK(spec.Num, n/2, opts...)
	default:
		return nil, fmt.Errorf("unknown format kind %q", spec.Kind)
	}
}

func computeOptions(mode string, runs int) ([]format.ComputeOption, error) {
	var out []format.ComputeOption
	switch mode {
	case ModeAuto:
	case ModeExact:
		out = append(out, format.ForceExact())
	case ModeMonteCarlo:
		out = append(out, format.ForceMonteCarlo())
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if runs > 0 {
		out = append(out, format.WithRuns(runs))
	}
	return out, nil
}

func (l *Loader) batches(specs []BatchSpec, players []*competitor.Competitor, invalid func(string, ...any) error) ([]Batch, error) {
	byName := lo.Associate(lo.Reject(players, func(p *competitor.Competitor, _ int) bool { return p.Bye }),
		func(p *competitor.Competitor) (string, *competitor.Competitor) { return p.Name, p })

	out := make([]Batch, 0, len(specs))
	for _, bs := range specs {
		p, ok := byName[bs.Player]
		if !ok {
			return nil, invalid("rating batch for unknown player %q", bs.Player)
		}
		games := make([]rating.Game, 0, len(bs.Games))
		for _, gs := range bs.Games {
			g := rating.Game{Wins: gs.Wins, Losses: gs.Losses}
			if gs.Opponent != "" {
				opp, ok := byName[gs.Opponent]
				if !ok {
					return nil, invalid("%q played unknown opponent %q", bs.Player, gs.Opponent)
				}
				if opp.Category == competitor.UnknownCategory {
					return nil, invalid("opponent %q has no category", gs.Opponent)
				}
				g.OpponentRating = opp.State.Vs(p.Category)
				g.OpponentDev = math.Sqrt(opp.State.VarianceVs(p.Category))
				g.OpponentCategory = opp.Category
			} else {
				cat, ok := l.category(gs.OpponentCategory)
				if !ok || cat == competitor.UnknownCategory {
					return nil, invalid("%q played an opponent of unknown category %q", bs.Player, gs.OpponentCategory)
				}
				g.OpponentRating = gs.OpponentRating
				g.OpponentDev = gs.OpponentDev
				g.OpponentCategory = cat
			}
			games = append(games, g)
		}
		out = append(out, Batch{Player: p, Games: games})
	}
	return out, nil
}
