package collect

import (
	"fmt"

	"wsncollect/pkg/linkaddr"
)

// MetricInfinite is the metric of a node with no route to the sink.
const MetricInfinite = ^uint16(0)

// RoutingState is a node's position in the collection tree.
//
// Invariants: Metric == 0 iff IsSink; Parent is unset iff Metric ==
// MetricInfinite (the sink has neither parent nor infinite metric, which
// makes it the one exception: it is connected without a parent).
type RoutingState struct {
	Parent linkaddr.Optional
	Metric uint16
	// Seqn is the highest beacon round accepted; meaningful only when HasSeqn.
	Seqn    uint16
	HasSeqn bool
	IsSink  bool
}

func newRoutingState(isSink bool) RoutingState {
	if isSink {
		return RoutingState{Metric: 0, Seqn: 0, HasSeqn: true, IsSink: true}
	}
	return RoutingState{Metric: MetricInfinite}
}

// Connected reports whether data sent now has a next hop (or is the sink).
func (s RoutingState) Connected() bool {
	return s.IsSink || s.Parent.IsSet()
}

func (s RoutingState) String() string {
	seq := "none"
	if s.HasSeqn {
		seq = fmt.Sprint(s.Seqn)
	}
	metric := "inf"
	if s.Metric != MetricInfinite {
		metric = fmt.Sprint(s.Metric)
	}
	return fmt.Sprintf("parent=%s metric=%s seqn=%s sink=%t", s.Parent, metric, seq, s.IsSink)
}

// seqNewer reports whether a is a later round than b in 16-bit serial
// arithmetic: a is newer iff it lies within the half-space ahead of b.
func seqNewer(a, b uint16) bool {
	return int16(a-b) > 0
}

// verdict is the outcome of evaluating one beacon.
type verdict int

const (
	ignoreStale verdict = iota // carries no new information
	ignoreSink                 // the sink never takes a parent
	ignoreNoRoute              // sender has no usable path
	acceptNewRound
	acceptBetterPath
)

func (v verdict) accepted() bool { return v == acceptNewRound || v == acceptBetterPath }

func (v verdict) String() string {
	switch v {
	case ignoreSink:
		return "sink"
	case ignoreNoRoute:
		return "no-route"
	case acceptNewRound:
		return "new-round"
	case acceptBetterPath:
		return "better-path"
	default:
		return "stale"
	}
}

// evaluate applies the route update rules to a beacon that already passed
// the size and signal checks, mutating s when the beacon is accepted.
//
// A newer round always wins whatever its metric, which is what lets a
// stale tree be replaced. Within a round, a parent change needs a strictly
// shorter path; equal-cost moves would let peers chase each other.
func (s *RoutingState) evaluate(b Beacon, from linkaddr.Addr) verdict {
	if s.IsSink {
		return ignoreSink
	}
	// metric+1 must stay below infinity or the state would claim a parent
	// with an infinite metric.
	if b.Metric >= MetricInfinite-1 {
		return ignoreNoRoute
	}
	metric := b.Metric + 1
	switch {
	case !s.HasSeqn || seqNewer(b.Seqn, s.Seqn):
		s.adopt(from, metric, b.Seqn)
		return acceptNewRound
	case b.Seqn == s.Seqn && metric < s.Metric:
		s.adopt(from, metric, b.Seqn)
		return acceptBetterPath
	default:
		return ignoreStale
	}
}

func (s *RoutingState) adopt(parent linkaddr.Addr, metric, seqn uint16) {
	s.Parent = linkaddr.Some(parent)
	s.Metric = metric
	s.Seqn = seqn
	s.HasSeqn = true
}
