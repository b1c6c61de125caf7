package format

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFormatSums(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		make func() (Format, error)
		n    int
	}{
		{"single elimination", func() (Format, error) { return NewSEBracketSized(8, 2) }, 8},
		{"dual group", func() (Format, error) { return NewMSLGroup(2) }, 4},
		{"double elimination", func() (Format, error) { return NewDEBracket(8, 1) }, 8},
		{"round robin", func() (Format, error) { return NewRRGroup(4, 1, DefaultTieBreaks, 2, WithSeed(1)) }, 4},
		{"proleague", func() (Format, error) { return NewTeamPL(2, 4) }, 8},
		{"all-kill", func() (Format, error) { return NewTeamAK(1, 3) }, 6},
	}

	for _, tc := range cases {
		Convey("Given a computed "+tc.name, t, func() {
			f, err := tc.make()
			So(err, ShouldBeNil)
			strengths := make([]float64, tc.n)
			for i := range strengths {
				strengths[i] = float64(i%5 + 1)
			}
			So(f.SetPlayers(strengthPlayers(strengths...)), ShouldBeNil)
			So(f.Compute(ctx, ForceExact()), ShouldBeNil)

			Convey("Then every competitor's finishes sum to one", func() {
				So(maxCompetitorError(f.Tally()), ShouldBeLessThan, 1e-9)
			})

			Convey("Then every bucket holds its schema size", func() {
				_, out := f.Schema()
				So(maxBucketError(f.Tally(), out), ShouldBeLessThan, 1e-9)
			})
		})
	}
}

func TestFormatCompute(t *testing.T) {
	ctx := context.Background()

	Convey("Given an eight player bracket", t, func() {
		f, err := NewSEBracketSized(8, 2, WithSeed(42))
		So(err, ShouldBeNil)

		Convey("Then computing before seeding fails", func() {
			So(errors.Is(f.Compute(ctx), ErrNotReady), ShouldBeTrue)
			So(f.Tally(), ShouldBeNil)
		})

		Convey("When seeded and computed", func() {
			So(f.SetPlayers(strengthPlayers(5, 1, 2, 3, 4, 2, 1, 3)), ShouldBeNil)
			So(f.Compute(ctx), ShouldBeNil)
			first := f.Tally()

			Convey("Then an unchanged format is not recomputed", func() {
				So(f.Compute(ctx), ShouldBeNil)
				So(f.Tally(), ShouldPointTo, first)
			})

			Convey("Then Override recomputes anyway", func() {
				So(f.Compute(ctx, Override()), ShouldBeNil)
				So(f.Tally(), ShouldNotPointTo, first)
				So(f.Tally().TotalVariation(first), ShouldAlmostEqual, 0, 1e-12)
			})

			Convey("Then a modification triggers a new computation", func() {
				m, err := f.Match("1-1")
				So(err, ShouldBeNil)
				So(m.Modify(0, 2), ShouldBeNil)
				So(f.Compute(ctx), ShouldBeNil)
				So(f.Tally(), ShouldNotPointTo, first)
				So(f.Tally().Get(f.Players()[0]).Finishes[0], ShouldEqual, 1)
			})

			Convey("Then a cancelled context aborts sampling and keeps the old tally", func() {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				err := f.Compute(cctx, ForceMonteCarlo(), Override())
				So(errors.Is(err, ErrAborted), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(f.Tally(), ShouldPointTo, first)
			})

			Convey("Then unknown match keys are rejected", func() {
				_, err := f.Match("4-1")
				So(errors.Is(err, ErrNoSuchMatch), ShouldBeTrue)
				_, err = f.Match("final")
				So(errors.Is(err, ErrNoSuchMatch), ShouldBeTrue)
			})
		})
	})

	Convey("Given invalid sizes", t, func() {
		Convey("Then constructors refuse them", func() {
			_, err := NewSEBracketSized(6, 2)
			So(errors.Is(err, ErrInvalidSize), ShouldBeTrue)
			_, err = NewDEBracket(12, 2)
			So(errors.Is(err, ErrInvalidSize), ShouldBeTrue)
			_, err = NewRRGroup(1, 2, nil, 1)
			So(errors.Is(err, ErrInvalidSize), ShouldBeTrue)
			_, err = NewRRGroup(4, 2, []Criterion{"coinflip"}, 1)
			So(errors.Is(err, ErrInvalidSize), ShouldBeTrue)
			_, err = NewTeamPL(0, 3)
			So(errors.Is(err, ErrInvalidSize), ShouldBeTrue)
			f, _ := NewMSLGroup(1)
			So(errors.Is(f.SetPlayers(evenPlayers(3)), ErrInvalidSize), ShouldBeTrue)
		})
	})
}

func TestSingleElimination(t *testing.T) {
	ctx := context.Background()

	Convey("Given four players where three can never win a game", t, func() {
		f, _ := NewSEBracketSized(4, 3)
		ps := strengthPlayers(0, 0, 1, 0)
		So(f.SetPlayers(ps), ShouldBeNil)
		So(f.Compute(ctx), ShouldBeNil)

		Convey("Then the only winning player takes the bracket with certainty", func() {
			So(f.Tally().Win(ps[2]), ShouldEqual, 1)
			So(f.Tally().Get(ps[3]).Finishes[0], ShouldEqual, 1)
			So(f.Tally().Get(ps[3]).Eliminators[ps[2]], ShouldEqual, 1)
		})
	})

	Convey("Given an eight player bracket with one variable player", t, func() {
		win := func(s float64) float64 {
			f, _ := NewSEBracketSized(8, 2)
			ps := strengthPlayers(s, 1, 1, 1, 1, 1, 1, 1)
			So(f.SetPlayers(ps), ShouldBeNil)
			So(f.Compute(ctx), ShouldBeNil)
			return f.Tally().Win(ps[0])
		}

		Convey("Then the title odds grow with the single game odds", func() {
			prev := win(0.25)
			for _, s := range []float64{0.5, 1, 2, 4} {
				cur := win(s)
				So(cur, ShouldBeGreaterThan, prev)
				prev = cur
			}
			So(win(1), ShouldAlmostEqual, 0.125, 1e-12)
		})
	})

	Convey("Given exact and sampled computations of the same bracket", t, func() {
		f, _ := NewSEBracketSized(8, 2, WithSeed(42))
		So(f.SetPlayers(strengthPlayers(5, 1, 2, 3, 4, 2, 1, 3)), ShouldBeNil)
		So(f.Compute(ctx, ForceExact()), ShouldBeNil)
		exact := f.Tally()

		So(f.Compute(ctx, ForceMonteCarlo(), WithRuns(200), Override()), ShouldBeNil)
		small := f.Tally().TotalVariation(exact)
		So(f.Compute(ctx, ForceMonteCarlo(), WithRuns(50000), Override()), ShouldBeNil)
		large := f.Tally().TotalVariation(exact)

		Convey("Then sampling converges to the exact answer", func() {
			So(large, ShouldBeLessThan, 0.02)
			So(large, ShouldBeLessThan, small)
			So(maxCompetitorError(f.Tally()), ShouldBeLessThan, 1e-9)
		})
	})

	Convey("Given a bracket with per round lengths", t, func() {
		f, err := NewSEBracket([]int{1, 2, 3})
		So(err, ShouldBeNil)

		Convey("Then each round uses its own length", func() {
			So(f.Rounds(), ShouldEqual, 3)
			m, _ := f.Match("3-1")
			So(m.Num(), ShouldEqual, 3)
			_, out := f.Schema()
			So(out, ShouldResemble, []int{4, 2, 1, 1})
		})
	})
}

func TestDualGroup(t *testing.T) {
	Convey("Given a dual group of equal players", t, func() {
		f, _ := NewMSLGroup(2)
		ps := evenPlayers(4)
		So(f.SetPlayers(ps), ShouldBeNil)
		So(f.Compute(context.Background()), ShouldBeNil)

		Convey("Then every placement is equally likely", func() {
			for _, p := range ps {
				for _, v := range f.Tally().Get(p).Finishes {
					So(v, ShouldAlmostEqual, 0.25, 1e-12)
				}
			}
		})

		Convey("Then the advancing pairs are symmetric", func() {
			e0, e1 := f.Tally().Get(ps[0]), f.Tally().Get(ps[1])
			So(e0.Pairs[ps[1]], ShouldAlmostEqual, e1.Pairs[ps[0]], 1e-12)
			var sum float64
			for _, v := range e0.Pairs {
				sum += v
			}
			So(sum, ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("When the opening match is fixed", func() {
			m, _ := f.Match("first")
			So(m.Modify(2, 0), ShouldBeNil)
			So(f.Compute(context.Background()), ShouldBeNil)

			Convey("Then its loser cannot finish first", func() {
				So(f.Tally().Win(ps[1]), ShouldEqual, 0)
				So(f.Tally().Get(ps[0]).Finishes[0], ShouldEqual, 0)
			})
		})
	})
}

func TestDoubleElimination(t *testing.T) {
	Convey("Given an eight player double elimination bracket", t, func() {
		f, err := NewDEBracket(8, 1)
		So(err, ShouldBeNil)
		ps := evenPlayers(8)
		So(f.SetPlayers(ps), ShouldBeNil)

		Convey("Then the structure has a grand final with a reset", func() {
			_, out := f.Schema()
			So(out, ShouldResemble, []int{2, 2, 1, 1, 1, 1})
			_, err := f.Match("final")
			So(err, ShouldBeNil)
			reset, err := f.Match("reset")
			So(err, ShouldBeNil)
			So(reset.CanModify(), ShouldBeFalse)
		})

		Convey("Then equal players share the title evenly", func() {
			So(f.Compute(context.Background()), ShouldBeNil)
			for _, p := range ps {
				So(f.Tally().Win(p), ShouldAlmostEqual, 0.125, 1e-9)
			}
		})

		Convey("Then sampling stays close to enumeration", func() {
			So(f.Compute(context.Background(), ForceExact()), ShouldBeNil)
			exact := f.Tally()
			g, _ := NewDEBracket(8, 1, WithSeed(42))
			So(g.SetPlayers(ps), ShouldBeNil)
			So(g.Compute(context.Background(), ForceMonteCarlo(), WithRuns(50000)), ShouldBeNil)
			So(g.Tally().TotalVariation(exact), ShouldBeLessThan, 0.02)
		})
	})

	Convey("Given a decided four player bracket", t, func() {
		f, _ := NewDEBracket(4, 1)
		ps := strengthPlayers(1, 0, 0, 0)
		So(f.SetPlayers(ps), ShouldBeNil)
		So(f.Compute(context.Background()), ShouldBeNil)

		Convey("Then the unbeatable player wins without a reset", func() {
			So(f.Tally().Win(ps[0]), ShouldEqual, 1)
			So(maxCompetitorError(f.Tally()), ShouldBeLessThan, 1e-12)
		})
	})
}
