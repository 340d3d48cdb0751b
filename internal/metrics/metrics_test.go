package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"pos-voice-relay/internal/metrics"
)

func TestManager(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		m := metrics.NewManager(metrics.WithNamespace("test"))

		Convey("When recording pipeline stages", func() {
			m.ObserveStage("download", 10*time.Millisecond, nil)
			m.ObserveStage("classify", 20*time.Millisecond, errors.New("boom"))

			Convey("Then failures are counted per stage", func() {
				n, err := testutil.GatherAndCount(m.Registry(), "test_pipeline_stage_failures_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When recording loader items and store writes", func() {
			m.RecordLoaderItem("csv", metrics.OutcomeOK)
			m.RecordLoaderItem("csv", metrics.OutcomeError)
			m.RecordStoreWrite("upsert", nil)

			Convey("Then each label combination is a series", func() {
				n, err := testutil.GatherAndCount(m.Registry(), "test_loader_items_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})

		Convey("When scraping the handler", func() {
			m.ObserveHTTP("/healthz", http.MethodGet, http.StatusOK, time.Millisecond)
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			body, _ := io.ReadAll(rec.Body)

			Convey("Then the exposition contains the http counter", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, `test_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
			})
		})
	})

	Convey("Given custom histogram buckets", t, func() {
		m := metrics.NewManager(metrics.WithNamespace("bk"), metrics.WithHistogramBuckets([]float64{0.042, 7}))
		m.ObserveHTTP("/x", http.MethodPost, http.StatusOK, 10*time.Millisecond)

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		body, _ := io.ReadAll(rec.Body)

		Convey("Then the latency histogram uses them", func() {
			So(string(body), ShouldContainSubstring, `bk_http_request_duration_seconds_bucket{method="POST",route="/x",le="0.042"} 1`)
			So(string(body), ShouldContainSubstring, `bk_http_request_duration_seconds_bucket{method="POST",route="/x",le="7"} 1`)
			So(string(body), ShouldNotContainSubstring, `bk_http_request_duration_seconds_bucket{method="POST",route="/x",le="120"}`)
		})
	})

	Convey("A nil manager is a no-op", t, func() {
		var m *metrics.Manager
		So(func() {
			m.ObserveStage("download", time.Second, nil)
			m.RecordStoreWrite("upsert", nil)
			m.RecordLoaderItem("csv", metrics.OutcomeOK)
			m.ObserveHTTP("/", "GET", 200, time.Second)
		}, ShouldNotPanic)
	})
}
