package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	service "github.com/okian/tourney/internal/app"
	"github.com/okian/tourney/internal/domain/competitor"
	"github.com/okian/tourney/internal/domain/format"
	"github.com/okian/tourney/internal/domain/rating"
	"github.com/okian/tourney/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func seeded(n int) []*competitor.Competitor {
	out := make([]*competitor.Competitor, n)
	for i := range out {
		id := fmt.Sprintf("p%d", i)
		out[i] = competitor.New(id, id, i%3, rating.NewState(3, float64(n-i)/10, 0.1))
	}
	return out
}

func bracket(n int) format.Format {
	f, err := format.NewSEBracketSized(n, 2, format.WithSeed(3))
	if err != nil {
		panic(err)
	}
	if err := f.SetPlayers(seeded(n)); err != nil {
		panic(err)
	}
	return f
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(16),
			service.WithLogger(logger.Get()),
			service.WithRatingOptions(rating.WithCategories(3)),
		)

		Convey("Then it reports its configuration and is not running", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 16)
		})

		Convey("Then submitting fails until it is started", func() {
			_, err := svc.Submit(context.Background(), service.Request{Name: "x", Format: bracket(4)})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When stopping the service", func() {
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Stop(ctx), ShouldBeNil)
			})

			Convey("Then it can be started again", func() {
				So(svc.Start(ctx), ShouldBeNil)
				id, err := svc.Submit(ctx, service.Request{Name: "again", Format: bracket(4)})
				So(err, ShouldBeNil)
				res, err := svc.Wait(ctx, id)
				So(err, ShouldBeNil)
				So(res.OK(), ShouldBeTrue)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a bracket is submitted", func() {
			f := bracket(8)
			id, err := svc.Submit(ctx, service.Request{Name: "cup", Format: f})
			So(err, ShouldBeNil)
			res, err := svc.Wait(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the result carries the tally", func() {
				So(res.OK(), ShouldBeTrue)
				So(res.Name, ShouldEqual, "cup")
				So(res.Kind, ShouldEqual, format.KindSEBracket)
				So(res.Tally, ShouldEqual, f.Tally())
			})

			Convey("Then standings rank the top seed first", func() {
				rows, err := svc.Standings(id, 2)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 8)
				So(rows[0].ID, ShouldEqual, "p0")
			})

			Convey("Then the job is counted and can be forgotten", func() {
				So(svc.GetStats()["completed"], ShouldEqual, 1)
				svc.Forget(id)
				_, err := svc.Wait(ctx, id)
				So(errors.Is(err, service.ErrUnknownJob), ShouldBeTrue)
			})
		})

		Convey("When an unseeded format is submitted", func() {
			f, _ := format.NewMSLGroup(2)
			id, err := svc.Submit(ctx, service.Request{Name: "empty", Format: f})
			So(err, ShouldBeNil)
			res, err := svc.Wait(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the failure is reported in the result", func() {
				So(errors.Is(res.Err, format.ErrNotReady), ShouldBeTrue)
				_, err := svc.Standings(id, 1)
				So(errors.Is(err, format.ErrNotReady), ShouldBeTrue)
				So(svc.GetStats()["failed"], ShouldEqual, 1)
			})
		})

		Convey("When waiting for an unknown job", func() {
			_, err := svc.Wait(ctx, "nope")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrUnknownJob), ShouldBeTrue)
			})
		})
	})
}

func TestService_RunBatch(t *testing.T) {
	Convey("Given a started service and several independent formats", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc := service.New(service.WithWorkerCount(3))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		group, _ := format.NewRRGroup(4, 2, format.DefaultTieBreaks, 2, format.WithSeed(5))
		So(group.SetPlayers(seeded(4)), ShouldBeNil)
		reqs := []service.Request{
			{Name: "cup", Format: bracket(8)},
			{Name: "group", Format: group},
			{Name: "semis", Format: bracket(4), Options: []format.ComputeOption{format.ForceMonteCarlo(), format.WithRuns(2000)}},
		}

		Convey("When the batch runs", func() {
			results, err := svc.RunBatch(ctx, reqs)
			So(err, ShouldBeNil)

			Convey("Then every format is computed in request order", func() {
				So(results, ShouldHaveLength, 3)
				for i, r := range results {
					So(r.Name, ShouldEqual, reqs[i].Name)
					So(r.OK(), ShouldBeTrue)
				}
			})
		})
	})
}

// gated holds Compute until release is closed.
type gated struct {
	format.Format
	release chan struct{}
}

func (g *gated) Compute(ctx context.Context, opts ...format.ComputeOption) error {
	<-g.release
	return g.Format.Compute(ctx, opts...)
}

func TestService_Busy(t *testing.T) {
	Convey("Given a format whose computation is held", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		g := &gated{Format: bracket(4), release: make(chan struct{})}
		id, err := svc.Submit(ctx, service.Request{Name: "held", Format: g})
		So(err, ShouldBeNil)

		Convey("When the same format is submitted again", func() {
			_, err := svc.Submit(ctx, service.Request{Name: "again", Format: g})

			Convey("Then it is refused until the first job finishes", func() {
				So(errors.Is(err, service.ErrBusy), ShouldBeTrue)
				_, err = svc.Standings(id, 1)
				So(errors.Is(err, service.ErrBusy), ShouldBeTrue)

				close(g.release)
				res, err := svc.Wait(ctx, id)
				So(err, ShouldBeNil)
				So(res.OK(), ShouldBeTrue)

				next, err := svc.Submit(ctx, service.Request{Name: "again", Format: g})
				So(err, ShouldBeNil)
				_, err = svc.Wait(ctx, next)
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestService_UpdateRating(t *testing.T) {
	Convey("Given a service and a prior", t, func() {
		svc := service.New(service.WithRatingOptions(rating.WithCategories(3)))
		prior := rating.NewState(3, 0, 0.3)

		Convey("When no games are played", func() {
			res := svc.UpdateRating(context.Background(), prior, nil)

			Convey("Then the prior comes back untouched", func() {
				So(res.State, ShouldPointTo, prior)
			})
		})

		Convey("When the player wins more than it loses", func() {
			res := svc.UpdateRating(context.Background(), prior, []rating.Game{
				{OpponentRating: 0, OpponentDev: 0.1, OpponentCategory: 1, Wins: 6, Losses: 2},
			})

			Convey("Then the overall rating rises", func() {
				So(res.Err, ShouldBeNil)
				So(res.State.Rating[0], ShouldBeGreaterThan, 0)
			})
		})
	})
}
