package types_test

import (
	"context"
	"testing"

	"github.com/okian/tourney/internal/domain/competitor"
	"github.com/okian/tourney/internal/domain/format"
	"github.com/okian/tourney/internal/domain/rating"
	types "github.com/okian/tourney/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func field(ratings ...float64) []*competitor.Competitor {
	names := []string{"Alpha", "Bravo", "Charlie", "Delta"}
	out := make([]*competitor.Competitor, len(ratings))
	for i, r := range ratings {
		out[i] = competitor.New(names[i], names[i], 0, rating.NewState(3, r, 0.1))
	}
	return out
}

func TestStandings(t *testing.T) {
	Convey("Given a computed four-player bracket", t, func() {
		f, err := format.NewSEBracketSized(4, 2)
		So(err, ShouldBeNil)
		So(f.SetPlayers(field(1, 0, 0, 0)), ShouldBeNil)
		So(f.Compute(context.Background()), ShouldBeNil)

		rows := types.Standings(f.Tally(), 2)

		Convey("Then the favourite is ranked first", func() {
			So(rows, ShouldHaveLength, 4)
			So(rows[0].Rank, ShouldEqual, 1)
			So(rows[0].ID, ShouldEqual, "Alpha")
			So(rows[0].Win, ShouldBeGreaterThan, rows[1].Win)
		})

		Convey("Then every row carries its own copy of the finishes", func() {
			for _, r := range rows {
				var sum float64
				for _, p := range r.Finishes {
					sum += p
				}
				So(sum, ShouldAlmostEqual, 1, 1e-9)
				So(r.Top, ShouldBeGreaterThanOrEqualTo, r.Win)
			}
			rows[0].Finishes[0] = 42
			So(f.Tally().Get(f.Players()[0]).Finishes[0], ShouldNotEqual, 42)
		})
	})

	Convey("Given no tally", t, func() {
		Convey("Then there are no standings", func() {
			So(types.Standings(nil, 1), ShouldBeNil)
		})
	})
}

func TestOutcomeLines(t *testing.T) {
	Convey("Given a four-player bracket with one semifinal played", t, func() {
		f, _ := format.NewSEBracketSized(4, 2)
		So(f.SetPlayers(field(0, 0, 0, 0)), ShouldBeNil)
		So(f.Compute(context.Background()), ShouldBeNil)

		Convey("Then both semifinals are offered before anything is played", func() {
			lines := types.OutcomeLines(f)
			So(lines, ShouldHaveLength, 2)
			So(lines[0].A, ShouldEqual, "Alpha")
			So(lines[0].B, ShouldEqual, "Bravo")
			So(lines[0].WinA, ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("When both semifinals are fixed", func() {
			for _, key := range []string{"1-1", "1-2"} {
				m, err := f.Match(key)
				So(err, ShouldBeNil)
				So(m.Modify(2, 0), ShouldBeNil)
			}
			So(f.Compute(context.Background()), ShouldBeNil)

			Convey("Then only the final remains", func() {
				lines := types.OutcomeLines(f)
				So(lines, ShouldHaveLength, 1)
				So(lines[0].A, ShouldEqual, "Alpha")
				So(lines[0].B, ShouldEqual, "Charlie")
			})
		})
	})
}
