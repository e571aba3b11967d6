package collect

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/packetbuf"
)

// MaxHops is the largest hop count a packet can carry; a packet that
// arrives with it is dropped instead of wrapping the counter.
const MaxHops = ^uint8(0)

// Send places payload in the packet buffer, prefixes a data header naming
// this node as source with zero hops, and unicasts it to the parent.
//
// On a forwarder it fails with ErrNotConnected when there is no parent and
// with ErrNoHeaderSpace when the header does not fit; neither is retried
// here. A nil error means the radio accepted the frame, not that the sink
// got it. The sink never returns ErrNotConnected: it has no parent by
// definition, so its own payload goes straight to recv with zero hops.
// ErrPayloadTooLarge and ErrClosed apply to every role.
func (c *Conn) Send(payload []byte) error {
	if err := c.send(payload); err != nil {
		c.stats.SendFailures++
		return err
	}
	return nil
}

func (c *Conn) send(payload []byte) error {
	if c.closed {
		return ErrClosed
	}
	if c.state.IsSink {
		c.stats.DataOriginated++
		c.stats.DataDelivered++
		if c.recv != nil {
			c.recv(c.addr, 0, payload)
		}
		return nil
	}
	parent, ok := c.state.Parent.Get()
	if !ok {
		return ErrNotConnected
	}
	if err := c.buf.CopyFrom(payload); err != nil {
		if errors.Is(err, packetbuf.ErrOverflow) {
			return fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
		}
		return err
	}
	if !c.buf.HdrAlloc(DataHeaderSize) {
		return ErrNoHeaderSpace
	}
	DataHeader{Source: c.addr, Hops: 0}.Put(c.buf.Hdr())
	c.log.Debug("send data", zap.Stringer("parent", parent), zap.Int("len", len(payload)))
	if err := c.uc.Send(c.buf.Bytes(), parent); err != nil {
		return err
	}
	c.stats.DataOriginated++
	return nil
}

func (c *Conn) onData(payload []byte, from linkaddr.Addr) {
	if c.closed {
		return
	}
	if len(payload) < DataHeaderSize {
		c.stats.DataDropped++
		c.log.Debug("drop short data packet", zap.Stringer("from", from), zap.Int("len", len(payload)))
		return
	}
	if err := c.buf.CopyFrom(payload); err != nil {
		c.stats.DataDropped++
		c.log.Debug("drop oversized data packet", zap.Stringer("from", from), zap.Error(err))
		return
	}
	hdr, _ := ParseDataHeader(c.buf.Data())
	if hdr.Hops == MaxHops {
		c.stats.DataDropped++
		c.log.Warn("drop data packet at hop limit", zap.Stringer("source", hdr.Source), zap.Stringer("from", from))
		return
	}
	hdr.Hops++

	if c.state.IsSink {
		c.buf.HdrReduce(DataHeaderSize)
		c.stats.DataDelivered++
		c.log.Debug("deliver data", zap.Stringer("source", hdr.Source), zap.Uint8("hops", hdr.Hops), zap.Int("len", c.buf.DataLen()))
		if c.recv != nil {
			c.recv(hdr.Source, hdr.Hops, c.buf.Data())
		}
		return
	}

	hdr.Put(c.buf.Data())
	parent, ok := c.state.Parent.Get()
	if !ok {
		c.stats.DataDropped++
		c.log.Debug("drop data packet, no parent", zap.Stringer("source", hdr.Source))
		return
	}
	if err := c.uc.Send(c.buf.Bytes(), parent); err != nil {
		c.stats.DataDropped++
		c.log.Warn("relay failed", zap.Stringer("source", hdr.Source), zap.Stringer("parent", parent), zap.Error(err))
		return
	}
	c.stats.DataForwarded++
}
