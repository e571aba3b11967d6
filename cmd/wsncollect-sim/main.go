// Command wsncollect-sim runs a whole collection network in-process on a
// virtual clock and prints the resulting tree and delivery statistics.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"wsncollect/pkg/collect"
	"wsncollect/pkg/config"
	"wsncollect/pkg/observability"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config file (collect and log sections are used)")
	kind := flag.String("topology", "grid", "topology: line|grid|random")
	nodes := flag.Int("nodes", 16, "number of nodes including the sink")
	rounds := flag.Int("rounds", 3, "tree-building rounds to simulate")
	seed := flag.Uint64("seed", 1, "random seed")
	loss := flag.Float64("loss", 0, "per-frame loss probability on every link")
	delay := flag.Duration("delay", 5*time.Millisecond, "per-hop propagation delay")
	send := flag.Duration("send", 10*time.Second, "interval between readings per node; 0 disables traffic")
	format := flag.String("format", "", "payload format: cbor|json|proto (default from config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to setup logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *format == "" {
		*format = cfg.App.PayloadFormat
	}
	p := params{
		Topology:     *kind,
		Nodes:        *nodes,
		Rounds:       *rounds,
		Seed:         *seed,
		Loss:         *loss,
		Delay:        *delay,
		SendInterval: *send,
		Format:       *format,
		Collect: collect.Options{
			RSSIThreshold:   cfg.Collect.RSSIThreshold,
			BeaconInterval:  cfg.Collect.BeaconInterval,
			StartupDelay:    cfg.Collect.StartupDelay,
			ForwardDelayMax: cfg.Collect.ForwardDelayMax,
			MaxNeighbors:    cfg.Collect.MaxNeighbors,
			BufferSize:      cfg.Collect.PacketSize,
			HeaderSpace:     cfg.Collect.HeaderSpace,
		},
	}
	res, err := simulate(p, logger)
	if err != nil {
		logger.Error("simulation failed", zap.Error(err))
		os.Exit(1)
	}
	if err := res.print(os.Stdout); err != nil {
		os.Exit(1)
	}
}
