package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/swipescore/internal/config"
	"github.com/okian/swipescore/pkg/logger"
	"github.com/okian/swipescore/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestNewService(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.WorkerCount = 2
		cfg.Scoring.TopN = 5

		convey.Convey("When the service is built", func() {
			svc, err := newService(ctx, cfg)

			convey.Convey("Then it carries the configured settings", func() {
				convey.So(err, convey.ShouldBeNil)
				stats := svc.GetStats()
				convey.So(stats["workerCount"], convey.ShouldEqual, 2)
				convey.So(stats["topN"], convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When the store backend is unknown", func() {
			cfg.Store.Backend = "cassandra"
			_, err := newService(ctx, cfg)

			convey.Convey("Then building fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the badger backend is selected", func() {
			cfg.Store.Backend = "badger"
			cfg.Store.BadgerPath = t.TempDir()
			svc, err := newService(ctx, cfg)

			convey.Convey("Then the service starts and stops cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.Start(ctx), convey.ShouldBeNil)
				convey.So(svc.Stop(ctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestNewHTTPServer(t *testing.T) {
	convey.Convey("Given a configured HTTP server", t, func() {
		ctx := context.Background()
		cfg := config.New()
		svc, err := newService(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)

		srv := newHTTPServer(ctx, cfg, svc)

		convey.Convey("Then it uses the configured address and timeouts", func() {
			convey.So(srv.Addr, convey.ShouldEqual, cfg.HTTP.Addr)
			convey.So(srv.ReadTimeout, convey.ShouldEqual, cfg.HTTP.ReadTimeout)
			convey.So(srv.WriteTimeout, convey.ShouldEqual, cfg.HTTP.WriteTimeout)
		})

		convey.Convey("Then its handler serves the API", func() {
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestServiceMetricsUpdater(t *testing.T) {
	convey.Convey("Given a fresh metrics manager and a service", t, func() {
		registry := prometheus.NewRegistry()
		prev := metrics.Global()
		convey.So(metrics.SetGlobal(metrics.NewManager(metrics.WithPrometheusRegistry(registry))), convey.ShouldBeNil)
		defer func() { _ = metrics.SetGlobal(prev) }()

		cfg := config.New()
		cfg.WorkerCount = 3
		cfg.QueueSize = 64
		svc, err := newService(context.Background(), cfg)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the gauges are refreshed", func() {
			updateServiceMetrics(svc)

			convey.Convey("Then they reflect the service stats", func() {
				expected := `
# HELP swipescore_worker_count Configured number of engagement workers
# TYPE swipescore_worker_count gauge
swipescore_worker_count 3
`
				err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "swipescore_worker_count")
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the updater's context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.Convey("Then it returns", func() {
				convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
			})
		})
	})
}
