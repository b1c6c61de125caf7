package model

import (
	"errors"
	"testing"

	"github.com/okian/tourney/internal/domain/tally"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResult(t *testing.T) {
	Convey("Given job results", t, func() {
		Convey("Then a result with a tally and no error is OK", func() {
			So(Result{Tally: tally.New(nil, 2)}.OK(), ShouldBeTrue)
		})

		Convey("Then a failed or empty result is not", func() {
			So(Result{Err: errors.New("boom"), Tally: tally.New(nil, 2)}.OK(), ShouldBeFalse)
			So(Result{}.OK(), ShouldBeFalse)
		})
	})
}
