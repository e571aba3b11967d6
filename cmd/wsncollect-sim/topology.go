package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	"wsncollect/pkg/linkaddr"
)

// edge is a symmetric radio link.
type edge struct {
	a, b int
	rssi int16
}

// topology is a set of n nodes; node 0 is the sink.
type topology struct {
	n     int
	edges []edge
}

func addrOf(i int) linkaddr.Addr { return linkaddr.FromUint16(uint16(i + 1)) }

func buildTopology(kind string, n int, rng *rand.Rand) (topology, error) {
	if n < 2 || n > 1000 {
		return topology{}, fmt.Errorf("node count %d out of range [2,1000]", n)
	}
	switch kind {
	case "line":
		return lineTopology(n), nil
	case "grid":
		return gridTopology(n), nil
	case "random":
		return randomTopology(n, rng), nil
	}
	return topology{}, fmt.Errorf("unknown topology %q", kind)
}

func lineTopology(n int) topology {
	t := topology{n: n}
	for i := 0; i+1 < n; i++ {
		t.edges = append(t.edges, edge{a: i, b: i + 1, rssi: -60})
	}
	return t
}

// gridTopology lays nodes row-major on a square grid. Orthogonal neighbors
// hear each other well; diagonal ones are marginal but usable.
func gridTopology(n int) topology {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	t := topology{n: n}
	at := func(r, c int) int { return r*side + c }
	for i := 0; i < n; i++ {
		r, c := i/side, i%side
		if c+1 < side && at(r, c+1) < n {
			t.edges = append(t.edges, edge{a: i, b: at(r, c+1), rssi: -60})
		}
		if at(r+1, c) < n {
			t.edges = append(t.edges, edge{a: i, b: at(r+1, c), rssi: -60})
		}
		if c+1 < side && at(r+1, c+1) < n {
			t.edges = append(t.edges, edge{a: i, b: at(r+1, c+1), rssi: -92})
		}
	}
	return t
}

// randomTopology scatters nodes in a unit square with the sink at the centre.
// RSSI falls off linearly with distance, reaching -100 dBm at the radio range,
// so the farthest links are heard but rejected by the beacon threshold.
func randomTopology(n int, rng *rand.Rand) topology {
	const radius = 0.3
	xs, ys := make([]float64, n), make([]float64, n)
	xs[0], ys[0] = 0.5, 0.5
	for i := 1; i < n; i++ {
		xs[i], ys[i] = rng.Float64(), rng.Float64()
	}
	t := topology{n: n}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Hypot(xs[i]-xs[j], ys[i]-ys[j])
			if d > radius {
				continue
			}
			t.edges = append(t.edges, edge{a: i, b: j, rssi: int16(-40 - 60*d/radius)})
		}
	}
	return t
}

// hopDistances is the BFS distance from the sink over links at or above
// threshold; -1 marks unreachable nodes.
func (t topology) hopDistances(threshold int16) []int {
	adj := make([][]int, t.n)
	for _, e := range t.edges {
		if e.rssi < threshold {
			continue
		}
		adj[e.a] = append(adj[e.a], e.b)
		adj[e.b] = append(adj[e.b], e.a)
	}
	dist := make([]int, t.n)
	for i := range dist {
		dist[i] = -1
	}
	dist[0] = 0
	queue := []int{0}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			if dist[v] < 0 {
				dist[v] = dist[u] + 1
				queue = append(queue, v)
			}
		}
	}
	return dist
}
