// Package sched provides the cooperative, single-threaded execution model the
// radio handlers and protocol timers of one node run on.
//
// Every callback handed to a Scheduler runs to completion before the next one
// starts, so state owned by a node needs no locking as long as it is only
// touched from scheduled callbacks.
package sched

import "time"

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer; false means it already ran or was stopped.
	Stop() bool
}

// Scheduler serializes callbacks for one node (or, in simulation, for a whole
// network sharing one virtual clock).
type Scheduler interface {
	// Post queues fn to run after the callbacks already queued.
	Post(fn func())
	// AfterFunc queues fn to run once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
	// Now is the scheduler's clock.
	Now() time.Time
}

// Slot holds at most one pending timer. Arming it replaces whatever was
// pending, so two users of the same slot never stack callbacks.
type Slot struct {
	s   Scheduler
	cur *slotTimer
}

type slotTimer struct {
	t     Timer
	fired bool
}

// NewSlot returns an empty slot bound to s.
func NewSlot(s Scheduler) *Slot { return &Slot{s: s} }

// Set cancels the pending callback (if any) and arms fn after d.
func (sl *Slot) Set(d time.Duration, fn func()) {
	sl.Stop()
	st := &slotTimer{}
	st.t = sl.s.AfterFunc(d, func() {
		st.fired = true
		if sl.cur == st {
			sl.cur = nil
		}
		fn()
	})
	sl.cur = st
}

// Stop cancels the pending callback. It reports whether one was pending.
func (sl *Slot) Stop() bool {
	if sl.cur == nil {
		return false
	}
	st := sl.cur
	sl.cur = nil
	return st.t.Stop()
}

// Pending reports whether a callback is armed and has not fired yet.
func (sl *Slot) Pending() bool { return sl.cur != nil && !sl.cur.fired }
