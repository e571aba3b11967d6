package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"wsncollect/pkg/collect"
)

func baseParams(kind string, n int) params {
	return params{
		Topology:     kind,
		Nodes:        n,
		Rounds:       2,
		Seed:         42,
		Delay:        5 * time.Millisecond,
		SendInterval: 10 * time.Second,
		Format:       "cbor",
		Collect: collect.Options{
			BeaconInterval:  60 * time.Second,
			StartupDelay:    time.Second,
			ForwardDelayMax: time.Second,
		},
	}
}

func TestSimulateLineDeliversEverything(t *testing.T) {
	res, err := simulate(baseParams("line", 5), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for i, n := range res.Nodes {
		if int(n.State.Metric) != n.Dist {
			t.Fatalf("node %d metric %d, shortest %d", i, n.State.Metric, n.Dist)
		}
		if i == 0 {
			continue
		}
		if n.State.Seqn != 1 {
			t.Fatalf("node %d seqn = %d", i, n.State.Seqn)
		}
		if p, _ := n.State.Parent.Get(); p != addrOf(i-1) {
			t.Fatalf("node %d parent = %s", i, n.State.Parent)
		}
		if n.Sent == 0 || n.Delivered != n.Sent {
			t.Fatalf("node %d sent %d delivered %d", i, n.Sent, n.Delivered)
		}
		if n.HopSum != n.Delivered*uint64(i) {
			t.Fatalf("node %d hop sum %d", i, n.HopSum)
		}
	}
}

func TestSimulateGridConvergesToShortestPaths(t *testing.T) {
	p := baseParams("grid", 16)
	p.SendInterval = 0
	res, err := simulate(p, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for i, n := range res.Nodes {
		if n.Dist < 0 {
			t.Fatalf("node %d unreachable in a grid", i)
		}
		if int(n.State.Metric) != n.Dist {
			t.Fatalf("node %d metric %d, shortest %d", i, n.State.Metric, n.Dist)
		}
	}
}

func TestSimulateIsDeterministic(t *testing.T) {
	p := baseParams("random", 25)
	p.Loss = 0.1
	a, err := simulate(p, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	b, _ := simulate(p, zaptest.NewLogger(t))
	var ba, bb bytes.Buffer
	_ = a.print(&ba)
	_ = b.print(&bb)
	if ba.String() != bb.String() {
		t.Fatalf("runs differ:\n%s\n%s", ba.String(), bb.String())
	}
	if !strings.Contains(ba.String(), "readings delivered") {
		t.Fatalf("summary missing:\n%s", ba.String())
	}
}

func TestSimulateRejectsBadParams(t *testing.T) {
	p := baseParams("line", 3)
	p.Rounds = 0
	if _, err := simulate(p, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for zero rounds")
	}
	p = baseParams("line", 3)
	p.Format = "xml"
	if _, err := simulate(p, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
