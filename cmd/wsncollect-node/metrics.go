package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"wsncollect/pkg/collect"
	"wsncollect/pkg/config"
)

// snapshotFunc reads a consistent copy of a node's state, normally
// (*collect.Conn).Snapshot.
type snapshotFunc func(ctx context.Context) (collect.Snapshot, error)

type counterDesc struct {
	desc *prometheus.Desc
	get  func(collect.Stats) uint64
}

// collectCollector turns a Snapshot into Prometheus metrics at scrape time,
// so the node loop never touches the registry.
type collectCollector struct {
	snap    snapshotFunc
	timeout time.Duration
	log     *zap.Logger

	counters  []counterDesc
	metric    *prometheus.Desc
	seqn      *prometheus.Desc
	connected *prometheus.Desc
	neighbors *prometheus.Desc
}

func newCollectCollector(snap snapshotFunc, node string, log *zap.Logger) *collectCollector {
	labels := prometheus.Labels{"node": node}
	counter := func(name, help string, get func(collect.Stats) uint64) counterDesc {
		return counterDesc{desc: prometheus.NewDesc("wsncollect_"+name+"_total", help, nil, labels), get: get}
	}
	return &collectCollector{
		snap:    snap,
		timeout: time.Second,
		log:     log,
		counters: []counterDesc{
			counter("beacons_sent", "Beacons transmitted.", func(s collect.Stats) uint64 { return s.BeaconsSent }),
			counter("beacons_received", "Beacons heard on the beacon channel.", func(s collect.Stats) uint64 { return s.BeaconsReceived }),
			counter("beacons_dropped", "Beacons dropped for size or signal strength.", func(s collect.Stats) uint64 { return s.BeaconsDropped }),
			counter("beacons_accepted", "Beacons that updated the route.", func(s collect.Stats) uint64 { return s.BeaconsAccepted }),
			counter("parent_changes", "Times the parent changed.", func(s collect.Stats) uint64 { return s.ParentChanges }),
			counter("data_originated", "Data packets sent by this node.", func(s collect.Stats) uint64 { return s.DataOriginated }),
			counter("data_forwarded", "Data packets relayed toward the sink.", func(s collect.Stats) uint64 { return s.DataForwarded }),
			counter("data_delivered", "Data packets delivered at the sink.", func(s collect.Stats) uint64 { return s.DataDelivered }),
			counter("data_dropped", "Data packets dropped on receive.", func(s collect.Stats) uint64 { return s.DataDropped }),
			counter("send_failures", "Send calls that returned an error.", func(s collect.Stats) uint64 { return s.SendFailures }),
		},
		metric:    prometheus.NewDesc("wsncollect_route_metric", "Hop count to the sink; 65535 when disconnected.", nil, labels),
		seqn:      prometheus.NewDesc("wsncollect_route_seqn", "Last accepted beacon sequence number.", nil, labels),
		connected: prometheus.NewDesc("wsncollect_route_connected", "1 when the node has a route to the sink.", nil, labels),
		neighbors: prometheus.NewDesc("wsncollect_neighbors", "Entries in the neighbor table.", nil, labels),
	}
}

func (c *collectCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	ch <- c.metric
	ch <- c.seqn
	ch <- c.connected
	ch <- c.neighbors
}

func (c *collectCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	s, err := c.snap(ctx)
	if err != nil {
		c.log.Warn("metrics snapshot failed", zap.Error(err))
		return
	}
	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.get(s.Stats)))
	}
	connected := 0.0
	if s.State.Connected() {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(c.metric, prometheus.GaugeValue, float64(s.State.Metric))
	ch <- prometheus.MustNewConstMetric(c.seqn, prometheus.GaugeValue, float64(s.State.Seqn))
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected)
	ch <- prometheus.MustNewConstMetric(c.neighbors, prometheus.GaugeValue, float64(len(s.Neighbors)))
}

// metricsHandler serves col plus the Go runtime and process collectors
// from a private registry.
func metricsHandler(col prometheus.Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(col); err != nil {
		return nil, err
	}
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

// serveMetrics exposes the collector until ctx ends.
func serveMetrics(ctx context.Context, c config.MetricsConfig, col prometheus.Collector, log *zap.Logger) error {
	h, err := metricsHandler(col)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(c.Path, h)
	srv := &http.Server{Addr: c.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	go func() {
		log.Info("metrics listening", zap.String("listen", c.Listen), zap.String("path", c.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return nil
}
