package main

import (
	"math/rand/v2"
	"testing"
)

func TestLineTopology(t *testing.T) {
	top, err := buildTopology("line", 4, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(top.edges) != 3 {
		t.Fatalf("edges = %d", len(top.edges))
	}
	want := []int{0, 1, 2, 3}
	for i, d := range top.hopDistances(-95) {
		if d != want[i] {
			t.Fatalf("dist[%d] = %d, want %d", i, d, want[i])
		}
	}
}

func TestGridTopologyDiagonals(t *testing.T) {
	top := gridTopology(9)
	// 12 orthogonal + 4 diagonal links on a 3x3 grid
	if len(top.edges) != 16 {
		t.Fatalf("edges = %d", len(top.edges))
	}
	// node 8 is two hops away via the diagonal chain 0-4-8
	if d := top.hopDistances(-95)[8]; d != 2 {
		t.Fatalf("dist to corner = %d", d)
	}
	// without diagonals it takes four
	if d := top.hopDistances(-90)[8]; d != 4 {
		t.Fatalf("dist without diagonals = %d", d)
	}
}

func TestRandomTopologyRespectsRange(t *testing.T) {
	top := randomTopology(40, rand.New(rand.NewPCG(3, 4)))
	for _, e := range top.edges {
		if e.rssi > -40 || e.rssi < -100 {
			t.Fatalf("rssi %d out of model range", e.rssi)
		}
	}
}

func TestBuildTopologyRejects(t *testing.T) {
	if _, err := buildTopology("ring", 5, nil); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := buildTopology("line", 1, nil); err == nil {
		t.Fatalf("expected error for single node")
	}
}
