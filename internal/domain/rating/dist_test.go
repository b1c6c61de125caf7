package rating

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDistribution(t *testing.T) {
	Convey("Given the tanh win-probability curve", t, func() {
		Convey("Then it is centred and symmetric", func() {
			So(CDF(0, 0, 1), ShouldEqual, 0.5)
			So(CDF(0.3, 0, 1)+CDF(-0.3, 0, 1), ShouldAlmostEqual, 1, 1e-12)
			So(CDF(1, 1, 2), ShouldEqual, 0.5)
		})

		Convey("Then it increases with x", func() {
			So(CDF(0.2, 0, 1), ShouldBeGreaterThan, CDF(0.1, 0, 1))
		})

		Convey("Then the inverse round-trips", func() {
			for _, x := range []float64{-1.5, -0.2, 0, 0.4, 2} {
				So(InverseCDF(CDF(x, 0.1, 1.3), 0.1, 1.3), ShouldAlmostEqual, x, 1e-9)
			}
		})

		Convey("Then PDF is the derivative of CDF", func() {
			const h = 1e-6
			for _, x := range []float64{-1, 0, 0.7} {
				num := (CDF(x+h, 0, 1.2) - CDF(x-h, 0, 1.2)) / (2 * h)
				So(PDF(x, 0, 1.2), ShouldAlmostEqual, num, 1e-6)
			}
		})

		Convey("Then the log forms stay finite far in the tails", func() {
			So(math.IsInf(logCDF(-100, 0, 1), 0), ShouldBeFalse)
			So(math.IsInf(logSurvival(100, 0, 1), 0), ShouldBeFalse)
			So(logCDF(0.5, 0, 1), ShouldAlmostEqual, math.Log(CDF(0.5, 0, 1)), 1e-12)
			So(logSurvival(0.5, 0, 1), ShouldAlmostEqual, math.Log(1-CDF(0.5, 0, 1)), 1e-12)
		})
	})
}
