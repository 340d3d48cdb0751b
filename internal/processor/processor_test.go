package processor_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/pipeline"
	"pos-voice-relay/internal/processor"
	"pos-voice-relay/internal/types"
)

type fakeRunner struct {
	res    pipeline.Result
	err    error
	gotURL string
}

func (f *fakeRunner) Run(ctx context.Context, audioURL string) (pipeline.Result, error) {
	f.gotURL = audioURL
	return f.res, f.err
}

type update struct {
	id string
	m  types.Metrics
}

type fakeStore struct {
	err     error
	updates []update
}

func (f *fakeStore) UpdateMetrics(ctx context.Context, id string, m types.Metrics) error {
	f.updates = append(f.updates, update{id: id, m: m})
	return f.err
}

func TestProcessor_Process(t *testing.T) {
	Convey("Given the end-to-end scenario", t, func() {
		runner := &fakeRunner{res: pipeline.Result{
			Transcript: "buen servicio",
			Classification: types.Classification{
				Labels: []string{"Satisfacción del cliente", "Buena atención del personal"},
				Scores: []float64{0.9, 0.8},
			},
		}}
		store := &fakeStore{}
		p := processor.New(runner, store, logger.Discard(), nil)
		req := types.ClassifyRequest{AudioURL: "https://x/a.mp3", PuntoID: "42"}

		Convey("When processing", func() {
			out, err := p.Process(context.Background(), req)

			Convey("Then nps is 85 and the rest are 0", func() {
				So(err, ShouldBeNil)
				So(runner.gotURL, ShouldEqual, "https://x/a.mp3")
				So(out.Texto, ShouldEqual, "buen servicio")
				So(out.Clasificacion.Scores, ShouldResemble, []float64{0.9, 0.8})
				So(*out.Metricas, ShouldResemble, types.Metrics{NPS: 85})
			})

			Convey("And exactly one update is issued for id 42 with those fields", func() {
				So(store.updates, ShouldHaveLength, 1)
				So(store.updates[0].id, ShouldEqual, "42")
				So(store.updates[0].m, ShouldResemble, types.Metrics{NPS: 85, FillFoundRate: 0, DamageRate: 0, OutOfStock: 0})
			})
		})

		Convey("When the datastore update fails", func() {
			store.err = errors.New("connection reset")
			out, err := p.Process(context.Background(), req)

			Convey("Then the classification is still returned", func() {
				So(err, ShouldBeNil)
				So(out.Texto, ShouldEqual, "buen servicio")
				So(out.Metricas.NPS, ShouldEqual, 85)
			})
		})

		Convey("When no punto_id is given", func() {
			out, err := p.Process(context.Background(), types.ClassifyRequest{AudioURL: "https://x/a.mp3"})

			Convey("Then metrics are computed but not written", func() {
				So(err, ShouldBeNil)
				So(out.Metricas, ShouldNotBeNil)
				So(store.updates, ShouldBeEmpty)
			})
		})

		Convey("When the pipeline fails", func() {
			runner.err = &pipeline.StageError{Stage: pipeline.StageTranscribe, Err: errors.New("boom")}
			_, err := p.Process(context.Background(), req)

			Convey("Then the error is returned and nothing is written", func() {
				var se *pipeline.StageError
				So(errors.As(err, &se), ShouldBeTrue)
				So(store.updates, ShouldBeEmpty)
			})
		})
	})
}
