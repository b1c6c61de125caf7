package competitor

import (
	"testing"

	"github.com/okian/tourney/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func TestProbabilityOfBeating(t *testing.T) {
	Convey("Given two rated competitors", t, func() {
		a := New("a", "Alpha", 0, rating.NewState(3, 0.5, 0.1))
		b := New("b", "Bravo", 1, rating.NewState(3, 0.0, 0.1))

		Convey("Then the stronger side is favoured and the pair sums to one", func() {
			p := a.ProbabilityOfBeating(b)
			So(p, ShouldBeGreaterThan, 0.5)
			So(p+b.ProbabilityOfBeating(a), ShouldAlmostEqual, 1, 1e-12)
		})

		Convey("Then the relative rating against the opponent's category counts", func() {
			before := a.ProbabilityOfBeating(b)
			a.State.Rating[2] = 0.3
			So(a.ProbabilityOfBeating(b), ShouldBeGreaterThan, before)
		})

		Convey("Then an unknown category falls back to the overall rating", func() {
			u := New("u", "Unknown", UnknownCategory, rating.NewState(3, 0.5, 0.1))
			a.State.Rating[2] = 0.3
			So(u.State.Vs(b.Category), ShouldEqual, 0.5)
			So(b.State.VarianceVs(u.Category), ShouldAlmostEqual, 0.01+3*0.01/9, 1e-12)
		})
	})

	Convey("Given a BYE", t, func() {
		a := New("a", "Alpha", 0, rating.NewState(3, -3, 0.1))
		bye := NewBye()

		Convey("Then the real competitor always wins", func() {
			So(a.ProbabilityOfBeating(bye), ShouldEqual, 1)
			So(bye.ProbabilityOfBeating(a), ShouldEqual, 0)
		})
	})

	Convey("Given an explicit probability function", t, func() {
		a := &Competitor{ID: "a", Name: "A", Beats: func(*Competitor) float64 { return 1.4 }}
		b := &Competitor{ID: "b", Name: "B"}

		Convey("Then it overrides ratings and is clamped", func() {
			So(a.ProbabilityOfBeating(b), ShouldEqual, 1)
			So(b.ProbabilityOfBeating(a), ShouldEqual, 0)
		})
	})

	Convey("Given a copy", t, func() {
		a := New("a", "Alpha", 2, rating.NewState(3, 0, 0.2))
		cp := a.Copy()

		Convey("Then it is a new value with the same identity", func() {
			So(cp, ShouldNotPointTo, a)
			So(cp.ID, ShouldEqual, a.ID)
			So(cp.State, ShouldPointTo, a.State)
		})
	})
}
