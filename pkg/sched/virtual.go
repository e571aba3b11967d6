package sched

import (
	"container/heap"
	"time"
)

// Virtual is a deterministic Scheduler driven by an explicit clock. Nothing
// runs until Drain or Advance is called. Many simulated nodes may share one
// Virtual; their callbacks are then serialized globally.
type Virtual struct {
	now    time.Time
	posted []func()
	timers vtHeap
	seq    uint64
}

// NewVirtual starts the clock at start.
func NewVirtual(start time.Time) *Virtual {
	v := &Virtual{now: start}
	heap.Init(&v.timers)
	return v
}

func (v *Virtual) Now() time.Time { return v.now }

func (v *Virtual) Post(fn func()) { v.posted = append(v.posted, fn) }

func (v *Virtual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	v.seq++
	t := &vTimer{at: v.now.Add(d), seq: v.seq, fn: fn}
	heap.Push(&v.timers, t)
	return t
}

// Drain runs posted callbacks, including ones posted while draining, without
// moving the clock. It returns how many ran.
func (v *Virtual) Drain() int {
	n := 0
	for len(v.posted) > 0 {
		fn := v.posted[0]
		v.posted[0] = nil
		v.posted = v.posted[1:]
		fn()
		n++
	}
	return n
}

// Advance moves the clock forward by d, firing every timer that expires on
// the way in expiry order and draining posted work after each one.
func (v *Virtual) Advance(d time.Duration) {
	target := v.now.Add(d)
	v.Drain()
	for v.timers.Len() > 0 {
		next := v.timers[0]
		if next.at.After(target) {
			break
		}
		heap.Pop(&v.timers)
		if next.stopped {
			continue
		}
		if next.at.After(v.now) {
			v.now = next.at
		}
		next.stopped = true
		next.fn()
		v.Drain()
	}
	v.now = target
}

// Pending is the number of armed timers, including stopped ones not yet reaped.
func (v *Virtual) Pending() int { return v.timers.Len() }

type vTimer struct {
	at      time.Time
	seq     uint64
	fn      func()
	stopped bool
	idx     int
}

func (t *vTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type vtHeap []*vTimer

func (h vtHeap) Len() int { return len(h) }
func (h vtHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h vtHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].idx = i
	h[j].idx = j
}
func (h *vtHeap) Push(x any) {
	t := x.(*vTimer)
	t.idx = len(*h)
	*h = append(*h, t)
}
func (h *vtHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
