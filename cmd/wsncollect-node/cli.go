package main

import "flag"

// Options holds CLI options for the node.
type Options struct {
	ConfigPath string
	// Sink forces the sink role regardless of node.is_sink.
	Sink bool
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
	fs := flag.NewFlagSet("wsncollect-node", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
	fs.BoolVar(&opts.Sink, "sink", false, "Run as the collection sink")
	_ = fs.Parse(args)
	return opts
}
