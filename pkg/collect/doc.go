// Package collect implements tree-based data collection toward a single sink.
//
// The sink periodically broadcasts a beacon carrying a sequence number and a
// path metric of zero. Every other node adopts as parent the sender of the
// freshest (higher sequence number) or, within the same round, strictly
// shorter path it hears, and rebroadcasts its own beacon after a small random
// delay so the tree grows outward. Data sent by any node is prefixed with the
// originator's address and a hop counter and unicast parent by parent to the
// sink, which strips the header and hands the payload to the application.
//
// Two adjacent channels are used: the base channel carries beacons over
// broadcast and base+1 carries data over unicast. Delivery is best effort:
// no retransmissions, no acknowledgements, no ordering.
//
// A Conn is driven entirely by its sched.Scheduler. Radio handlers and
// timers run there, and Send, State, Stats and Neighbors must be called
// from there too.
package collect
