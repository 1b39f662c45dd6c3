package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	_namespace       = "mainboard"
	_shutdownTimeout = 5 * time.Second
)

type counterDesc struct {
	desc  *prometheus.Desc
	value func(MetricsSnapshot) int64
}

// Collector exports a Metrics instance as Prometheus metrics.
// Values are read from a fresh Snapshot on every scrape.
type Collector struct {
	m        *Metrics
	counters []counterDesc
	gauges   []counterDesc
	avgLoad  *prometheus.Desc
	uptime   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func newDesc(subsystem, name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(_namespace, subsystem, name), help, nil, nil)
}

// NewCollector creates a collector over m.
func NewCollector(m *Metrics) *Collector {
	return &Collector{
		m: m,
		counters: []counterDesc{
			{newDesc("library", "loads_total", "Libraries mapped into the process."), func(s MetricsSnapshot) int64 { return s.LibraryLoads }},
			{newDesc("library", "load_failures_total", "Failed library open attempts."), func(s MetricsSnapshot) int64 { return s.LibraryLoadFailures }},
			{newDesc("library", "unloads_total", "Libraries unmapped from the process."), func(s MetricsSnapshot) int64 { return s.LibraryUnloads }},
			{newDesc("library", "unload_requests_total", "Unload requests received by class loaders."), func(s MetricsSnapshot) int64 { return s.UnloadRequests }},
			{newDesc("library", "unloads_deferred_total", "Unload requests vetoed by live instances."), func(s MetricsSnapshot) int64 { return s.UnloadsDeferred }},
			{newDesc("library", "counter_underflows_total", "Unbalanced unload requests clamped at zero."), func(s MetricsSnapshot) int64 { return s.CounterUnderflows }},
			{newDesc("instance", "created_total", "Objects constructed through class loaders."), func(s MetricsSnapshot) int64 { return s.InstancesCreated }},
			{newDesc("instance", "released_total", "Objects destroyed through class loaders."), func(s MetricsSnapshot) int64 { return s.InstancesReleased }},
			{newDesc("instance", "class_not_found_total", "Lookups for classes no library registered."), func(s MetricsSnapshot) int64 { return s.ClassNotFound }},
			{newDesc("component", "started_total", "Components initialized by the controller."), func(s MetricsSnapshot) int64 { return s.ComponentsStarted }},
			{newDesc("component", "failures_total", "Components that failed to initialize."), func(s MetricsSnapshot) int64 { return s.ComponentFailures }},
			{newDesc("timer", "ticks_total", "Timer component Proc calls."), func(s MetricsSnapshot) int64 { return s.TimerTicks }},
			{newDesc("timer", "tick_failures_total", "Timer component Proc calls that returned false."), func(s MetricsSnapshot) int64 { return s.TimerTickFailures }},
		},
		gauges: []counterDesc{
			{newDesc("library", "loaded", "Libraries currently mapped."), func(s MetricsSnapshot) int64 { return s.LoadedLibraries }},
			{newDesc("instance", "live", "Objects currently alive."), func(s MetricsSnapshot) int64 { return s.LiveInstances }},
		},
		avgLoad: newDesc("library", "load_seconds_avg", "Average library open time."),
		uptime:  newDesc("", "uptime_seconds", "Seconds since metrics start or reset."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.gauges {
		ch <- d.desc
	}
	ch <- c.avgLoad
	ch <- c.uptime
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.m.Snapshot()
	for _, d := range c.counters {
		ch <- prometheus.MustNewConstMetric(d.desc, prometheus.CounterValue, float64(d.value(snap)))
	}
	for _, d := range c.gauges {
		ch <- prometheus.MustNewConstMetric(d.desc, prometheus.GaugeValue, float64(d.value(snap)))
	}
	ch <- prometheus.MustNewConstMetric(c.avgLoad, prometheus.GaugeValue, c.m.AvgLoadLatency().Seconds())
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, c.m.Uptime().Seconds())
}

// Handler returns an HTTP handler exposing m plus the Go runtime collectors.
func Handler(m *Metrics) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(m),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Serve exposes m on addr under path until ctx is cancelled.
func Serve(ctx context.Context, addr, path string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle(path, Handler(m))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Str("path", path).Msg("메트릭 엔드포인트 시작")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), _shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
