package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wsncollect/pkg/collect"
	"wsncollect/pkg/config"
	"wsncollect/pkg/identity"
	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/observability"
	"wsncollect/pkg/protocol/codec"
	"wsncollect/pkg/radio"
	"wsncollect/pkg/radio/udp"
	"wsncollect/pkg/sched"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}
	if opts.Sink {
		cfg.Node.IsSink = true
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	addr, err := identity.Resolve(cfg.Node)
	if err != nil {
		logger.Error("failed to resolve link address", zap.Error(err))
		return 1
	}
	log := observability.NodeLogger(logger, addr.String(), cfg.Node.IsSink)
	log.Info("wsncollect-node started", zap.String("app", cfg.AppName))
	log.Debug("effective configuration", zap.Any("config", cfg))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The loop outlives sigCtx so shutdown can still run on it.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loop := sched.NewLoop(log)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(loopCtx)
	}()

	link, err := udp.Listen(loopCtx, addr, loop, udp.Options{
		Listen:    cfg.Radio.Listen,
		Neighbors: neighborsFrom(cfg.Radio.Neighbors),
		Log:       log,
	})
	if err != nil {
		log.Error("failed to start radio", zap.Error(err))
		return 1
	}
	defer func() { _ = link.Close() }()

	reg, err := codec.NewRegistry()
	if err != nil {
		log.Error("failed to init codecs", zap.Error(err))
		return 1
	}

	var (
		recv collect.RecvFunc
		app  *sinkApp
	)
	if cfg.Node.IsSink {
		app, err = newSinkApp(sigCtx, cfg.Export, reg, loop, log)
		if err != nil {
			log.Error("failed to start exporters", zap.Error(err))
			return 1
		}
		recv = app.onData
	}

	var conn *collect.Conn
	copts := collectOptions(cfg.Collect, log)
	callErr := loop.Call(sigCtx, func() {
		conn, err = collect.Open(link, loop, radio.Channel(cfg.Node.ChannelBase), cfg.Node.IsSink, recv, copts)
	})
	if callErr != nil || err != nil {
		log.Error("failed to open collection", zap.Error(err), zap.NamedError("call", callErr))
		return 1
	}

	if !cfg.Node.IsSink && cfg.App.SendInterval > 0 {
		src := newSource(conn, loop, reg.ByName(cfg.App.PayloadFormat), cfg.App.SendInterval, log)
		go src.run(sigCtx)
	}
	go reportStatus(sigCtx, conn, statusInterval(cfg.Collect.BeaconInterval), log)
	if cfg.Metrics.Enable {
		col := newCollectCollector(conn.Snapshot, addr.String(), log)
		if err := serveMetrics(sigCtx, cfg.Metrics, col, log); err != nil {
			log.Error("failed to start metrics", zap.Error(err))
			return 1
		}
	}

	log.Info("node is running; press Ctrl+C to exit")
	<-sigCtx.Done()
	log.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := loop.Call(shutCtx, func() { _ = conn.Close() }); err != nil {
		log.Warn("close timed out", zap.Error(err))
	}
	if app != nil {
		if err := app.Shutdown(shutCtx); err != nil {
			log.Warn("exporter close failed", zap.Error(err))
		}
	}
	stopLoop()
	<-loopDone
	return 0
}

func neighborsFrom(ns []config.NeighborConfig) []udp.Neighbor {
	out := make([]udp.Neighbor, 0, len(ns))
	for _, n := range ns {
		// validated by config.Load
		la := linkaddr.MustParse(n.LinkAddr)
		out = append(out, udp.Neighbor{Link: la, Address: n.Address, RSSI: n.RSSI, Loss: n.Loss})
	}
	return out
}

func collectOptions(c config.CollectConfig, log *zap.Logger) collect.Options {
	return collect.Options{
		RSSIThreshold:   c.RSSIThreshold,
		BeaconInterval:  c.BeaconInterval,
		StartupDelay:    c.StartupDelay,
		ForwardDelayMax: c.ForwardDelayMax,
		MaxNeighbors:    c.MaxNeighbors,
		BufferSize:      c.PacketSize,
		HeaderSpace:     c.HeaderSpace,
		Log:             log,
	}
}

func statusInterval(beacon time.Duration) time.Duration {
	if beacon < 10*time.Second {
		return 10 * time.Second
	}
	return beacon
}

// reportStatus periodically logs the routing state.
func reportStatus(ctx context.Context, c *collect.Conn, every time.Duration, log *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		qctx, cancel := context.WithTimeout(ctx, time.Second)
		s, err := c.Snapshot(qctx)
		cancel()
		if err != nil {
			continue
		}
		log.Info("status",
			zap.Stringer("route", s.State),
			zap.Int("neighbors", len(s.Neighbors)),
			zap.Uint64("beacons_sent", s.Stats.BeaconsSent),
			zap.Uint64("parent_changes", s.Stats.ParentChanges),
			zap.Uint64("data_forwarded", s.Stats.DataForwarded),
			zap.Uint64("data_delivered", s.Stats.DataDelivered),
			zap.Uint64("data_dropped", s.Stats.DataDropped),
		)
	}
}
