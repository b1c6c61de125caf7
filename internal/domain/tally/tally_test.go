package tally

import (
	"testing"

	"github.com/okian/tourney/internal/domain/competitor"
	. "github.com/smartystreets/goconvey/convey"
)

func players(names ...string) []*Competitor {
	out := make([]*Competitor, len(names))
	for i, n := range names {
		out[i] = &competitor.Competitor{ID: n, Name: n}
	}
	return out
}

func TestTally(t *testing.T) {
	Convey("Given a two-bucket tally for two competitors", t, func() {
		ps := players("a", "b")
		tl := New(ps, 2, WithEliminators())
		tl.Get(ps[0]).Finishes[1] += 0.7
		tl.Get(ps[0]).Finishes[0] += 0.3
		tl.Get(ps[1]).Finishes[1] += 0.3
		tl.Get(ps[1]).Finishes[0] += 0.7
		tl.Get(ps[1]).Eliminators[ps[0]] += 0.7

		Convey("Then sums hold per competitor and per bucket", func() {
			So(tl.Sum(ps[0]), ShouldAlmostEqual, 1, 1e-12)
			So(tl.BucketSum(0), ShouldAlmostEqual, 1, 1e-12)
			So(tl.BucketSum(1), ShouldAlmostEqual, 1, 1e-12)
			So(tl.Buckets(), ShouldEqual, 2)
		})

		Convey("Then ranking follows the win probability", func() {
			So(tl.Ranked(), ShouldResemble, []*Competitor{ps[0], ps[1]})
			So(tl.Expected(ps[0]), ShouldAlmostEqual, 0.7, 1e-12)
			So(tl.Win(ps[1]), ShouldAlmostEqual, 0.3, 1e-12)
		})

		Convey("When scaled", func() {
			tl.Scale(0.5)

			Convey("Then every statistic is divided", func() {
				So(tl.Get(ps[0]).Finishes[1], ShouldAlmostEqual, 1.4, 1e-12)
				So(tl.Get(ps[1]).Eliminators[ps[0]], ShouldAlmostEqual, 1.4, 1e-12)
			})
		})

		Convey("When compared with a shifted tally", func() {
			other := New(ps, 2)
			other.Get(ps[0]).Finishes[1], other.Get(ps[0]).Finishes[0] = 0.6, 0.4
			other.Get(ps[1]).Finishes[1], other.Get(ps[1]).Finishes[0] = 0.4, 0.6

			Convey("Then the total variation is the shifted mass", func() {
				So(tl.TotalVariation(other), ShouldAlmostEqual, 0.1, 1e-12)
				So(tl.TotalVariation(tl), ShouldEqual, 0)
			})
		})
	})

	Convey("Given round-robin histograms", t, func() {
		ps := players("a", "b", "c")
		tl := New(ps, 3, WithRoundRobin(3, 2))
		e := tl.Get(ps[0])

		Convey("Then the differential histogram is offset", func() {
			So(e.SetScore, ShouldHaveLength, 9)
			So(e.SetScoreOffset(), ShouldEqual, 4)
			e.AddSetScore(-4, 0.25)
			e.AddSetScore(3, 0.75)
			So(e.SetScore[0], ShouldEqual, 0.25)
			So(e.SetScoreAt(3), ShouldEqual, 0.75)
			So(e.SetScoreAt(9), ShouldEqual, 0)
		})

		Convey("Then expected scores are read back", func() {
			e.MatchWins[2] = 1
			e.SetWins[4] = 1
			e.AddSetScore(3, 1)
			w, l := e.ExpectedMatchScore()
			So(w, ShouldEqual, 2)
			So(l, ShouldEqual, 0)
			sw, sl := e.ExpectedSetScore()
			So(sw, ShouldEqual, 4)
			So(sl, ShouldEqual, 1)
		})
	})
}

func TestRenormalise(t *testing.T) {
	Convey("Given a tally with a quarter of the mass unresolved", t, func() {
		ps := players("a", "b")
		tl := New(ps, 2, WithRoundRobin(2, 1))
		tl.Get(ps[0]).Finishes[1] = 0.75
		tl.Get(ps[1]).Finishes[0] = 0.75
		tl.Get(ps[0]).MatchWins[1] = 1

		Convey("When renormalised", func() {
			tl.Renormalise(0.75)

			Convey("Then finishes sum to one and the rest is ambiguous", func() {
				So(tl.Sum(ps[0]), ShouldAlmostEqual, 1, 1e-12)
				So(tl.Ambiguous, ShouldAlmostEqual, 0.25, 1e-12)
				So(tl.Get(ps[0]).MatchWins[1], ShouldEqual, 1)
			})
		})
	})
}
