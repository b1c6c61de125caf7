package logger

import (
	"bytes"
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(Init(), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()

		Convey("Then Get returns a usable logger", func() {
			So(Get(), ShouldNotBeNil)
			So(func() { Get().Info(context.Background(), "test message", String("k", "v")) }, ShouldNotPanic)
		})

		Convey("And Named returns a usable logger", func() {
			named := Named("test")
			So(named, ShouldNotBeNil)
			So(func() { named.Info(context.Background(), "named message") }, ShouldNotPanic)
		})
	})
}

func TestLoggerWriter(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWriter(&buf), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			Get().With(String("format", "sebracket")).Info(ctx, "computed",
				Int("players", 8), Bool("exact", true), Duration("elapsed", time.Millisecond))

			Convey("Then the record carries every field", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "computed")
				So(out, ShouldContainSubstring, "format=sebracket")
				So(out, ShouldContainSubstring, "players=8")
				So(out, ShouldContainSubstring, "exact=true")
				So(out, ShouldContainSubstring, "source=")
			})
		})

		Convey("When the level is raised to error", func() {
			So(SetLevelString("error"), ShouldBeNil)
			defer func() { _ = SetLevelString("info") }()
			Get().Warn(ctx, "hidden")

			Convey("Then lower records are dropped", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
			})
		})

		Convey("When an unknown level is given", func() {
			Convey("Then it is rejected", func() {
				So(SetLevelString("loud"), ShouldNotBeNil)
			})
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Given the discard logger", t, func() {
		l := Nop()

		Convey("Then every method is safe", func() {
			So(func() {
				ctx := context.Background()
				l.Debug(ctx, "d")
				l.Info(ctx, "i")
				l.Warn(ctx, "w")
				l.Error(ctx, "e")
				l.Named("x").With(Float64("p", 0.5)).Info(ctx, "i")
			}, ShouldNotPanic)
		})
	})
}
