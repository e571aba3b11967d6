// Package radio defines the best-effort link-layer primitives the collection
// protocol is built on, and carries two implementations:
//
//   - mem: an in-process shared medium with per-link signal strength and loss,
//     used by tests and the simulator
//   - udp: radio emulation over UDP datagrams between configured neighbors
//
// Key concepts:
//   - Link: a node's attachment to the medium, identified by its link address
//   - Channel: a logical channel number; a primitive only hears frames sent on
//     the channel it was opened on
//   - Broadcast: send to every neighbor in range, annotated with sender and RSSI
//   - Unicast: send to one addressed neighbor
//
// Handlers are always invoked on the node's sched.Scheduler.
package radio
