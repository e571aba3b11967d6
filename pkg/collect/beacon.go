package collect

import (
	"time"

	"go.uber.org/zap"

	"wsncollect/pkg/linkaddr"
)

// sendBeacon broadcasts the current (seqn, metric).
func (c *Conn) sendBeacon() {
	b := Beacon{Seqn: c.state.Seqn, Metric: c.state.Metric}
	raw, _ := b.MarshalBinary()
	if err := c.buf.CopyFrom(raw); err != nil {
		c.log.Error("beacon does not fit packet buffer", zap.Error(err))
		return
	}
	c.log.Debug("sending beacon", zap.Uint16("seqn", b.Seqn), zap.Uint16("metric", b.Metric))
	if err := c.bc.Send(c.buf.Bytes()); err != nil {
		c.log.Warn("beacon send failed", zap.Error(err))
		return
	}
	c.stats.BeaconsSent++
}

// beaconTimer fires for both the sink's periodic rebuild and a node's
// triggered update. Only the sink re-arms itself, moving to the next round.
func (c *Conn) beaconTimer() {
	if c.closed {
		return
	}
	c.sendBeacon()
	if c.state.IsSink {
		c.state.Seqn++
		c.beacon.Set(c.opts.BeaconInterval, c.beaconTimer)
	}
}

func (c *Conn) onBeacon(payload []byte, from linkaddr.Addr, rssi int16) {
	if c.closed {
		return
	}
	c.stats.BeaconsReceived++
	var b Beacon
	if err := b.UnmarshalBinary(payload); err != nil {
		c.stats.BeaconsDropped++
		c.log.Debug("drop beacon", zap.Stringer("from", from), zap.Int("len", len(payload)), zap.Error(err))
		return
	}
	c.log.Debug("recv beacon",
		zap.Stringer("from", from),
		zap.Uint16("seqn", b.Seqn),
		zap.Uint16("metric", b.Metric),
		zap.Int16("rssi", rssi))
	if rssi < c.opts.RSSIThreshold {
		c.stats.BeaconsDropped++
		c.log.Debug("drop weak beacon", zap.Stringer("from", from), zap.Int16("rssi", rssi), zap.Int16("threshold", c.opts.RSSIThreshold))
		return
	}
	c.nbrs.heard(from, b, rssi, c.s.Now())

	prev := c.state.Parent
	v := c.state.evaluate(b, from)
	if !v.accepted() {
		return
	}
	c.stats.BeaconsAccepted++
	if prev != c.state.Parent {
		c.stats.ParentChanges++
	}
	c.log.Info("route updated",
		zap.String("reason", v.String()),
		zap.Stringer("parent", from),
		zap.Uint16("metric", c.state.Metric),
		zap.Uint16("seqn", c.state.Seqn))
	c.beacon.Set(c.forwardDelay(), c.beaconTimer)
}

// forwardDelay spreads rebroadcasts of neighbors that accepted the same
// beacon over [0, ForwardDelayMax).
func (c *Conn) forwardDelay() time.Duration {
	if c.opts.ForwardDelayMax <= 0 {
		return 0
	}
	return time.Duration(c.opts.Rand.Int64N(int64(c.opts.ForwardDelayMax)))
}
