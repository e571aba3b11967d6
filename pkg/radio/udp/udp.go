// Package udp emulates a radio over UDP datagrams. Each node binds one socket
// and knows its neighbors (UDP endpoint, link address, RSSI, loss); broadcast
// fans out to every neighbor and unicast goes to one. Frames from nodes not in
// the neighbor table are out of range and dropped.
package udp

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"

	"go.uber.org/zap"

	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/radio"
	"wsncollect/pkg/sched"
)

// Neighbor is a node in radio range.
type Neighbor struct {
	Link    linkaddr.Addr
	Address string  // host:port of its socket
	RSSI    int16   // dBm reported for frames heard from it
	Loss    float64 // probability of dropping a frame heard from it
}

// Options configure a Link.
type Options struct {
	Listen    string
	Neighbors []Neighbor
	Rand      *rand.Rand
	Log       *zap.Logger
}

type neighbor struct {
	Neighbor
	raddr *net.UDPAddr
}

// Link is a UDP-backed radio attachment.
type Link struct {
	addr  linkaddr.Addr
	s     sched.Scheduler
	conn  *net.UDPConn
	log   *zap.Logger
	rng   *rand.Rand
	nbrs  map[linkaddr.Addr]*neighbor
	order []*neighbor

	mu     sync.Mutex
	bcast  map[radio.Channel]radio.BroadcastHandler
	ucast  map[radio.Channel]radio.UnicastHandler
	closed chan struct{}
	once   sync.Once
}

// Listen binds the socket and starts the read loop. The link closes when ctx
// is done.
func Listen(ctx context.Context, addr linkaddr.Addr, s sched.Scheduler, opts Options) (*Link, error) {
	if opts.Log == nil {
		opts.Log = zap.L()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(addr.Uint16()), 0x5743))
	}
	l := &Link{
		addr:   addr,
		s:      s,
		log:    opts.Log.Named("udp").With(zap.Stringer("node", addr)),
		rng:    opts.Rand,
		nbrs:   make(map[linkaddr.Addr]*neighbor),
		bcast:  make(map[radio.Channel]radio.BroadcastHandler),
		ucast:  make(map[radio.Channel]radio.UnicastHandler),
		closed: make(chan struct{}),
	}
	for _, n := range opts.Neighbors {
		raddr, err := net.ResolveUDPAddr("udp", n.Address)
		if err != nil {
			return nil, fmt.Errorf("resolve neighbor %s: %w", n.Link, err)
		}
		nb := &neighbor{Neighbor: n, raddr: raddr}
		l.nbrs[n.Link] = nb
		l.order = append(l.order, nb)
	}
	laddr, err := net.ResolveUDPAddr("udp", opts.Listen)
	if err != nil {
		return nil, err
	}
	c, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	l.conn = c
	go l.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.closed:
		}
	}()
	l.log.Info("udp radio listening", zap.String("listen", c.LocalAddr().String()), zap.Int("neighbors", len(l.order)))
	return l, nil
}

func (l *Link) Addr() linkaddr.Addr { return l.addr }

// LocalAddr is the bound UDP endpoint.
func (l *Link) LocalAddr() net.Addr { return l.conn.LocalAddr() }

// AddNeighbor adds or replaces a neighbor after Listen, e.g. once a peer's
// ephemeral port is known.
func (l *Link) AddNeighbor(n Neighbor) error {
	raddr, err := net.ResolveUDPAddr("udp", n.Address)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	nb := &neighbor{Neighbor: n, raddr: raddr}
	if _, ok := l.nbrs[n.Link]; ok {
		for i, o := range l.order {
			if o.Link == n.Link {
				l.order[i] = nb
			}
		}
	} else {
		l.order = append(l.order, nb)
	}
	l.nbrs[n.Link] = nb
	return nil
}

func (l *Link) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closed)
		err = l.conn.Close()
	})
	return err
}

func (l *Link) OpenBroadcast(ch radio.Channel, h radio.BroadcastHandler) (radio.Broadcast, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bcast[ch]; ok {
		return nil, radio.ErrChannelInUse
	}
	l.bcast[ch] = h
	return &bcastConn{l: l, ch: ch}, nil
}

func (l *Link) OpenUnicast(ch radio.Channel, h radio.UnicastHandler) (radio.Unicast, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ucast[ch]; ok {
		return nil, radio.ErrChannelInUse
	}
	l.ucast[ch] = h
	return &ucastConn{l: l, ch: ch}, nil
}

func (l *Link) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

func (l *Link) write(f *frame, to *neighbor) error {
	_, err := l.conn.WriteToUDP(f.marshal(), to.raddr)
	return err
}

func (l *Link) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if l.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Warn("udp read failed", zap.Error(err))
			continue
		}
		var f frame
		if err := f.unmarshal(buf[:n]); err != nil {
			l.log.Debug("drop malformed frame", zap.Error(err))
			continue
		}
		l.mu.Lock()
		nb := l.nbrs[f.src]
		lost := nb != nil && nb.Loss > 0 && l.rng.Float64() < nb.Loss
		l.mu.Unlock()
		if nb == nil || lost {
			continue
		}
		if f.kind == kindUnicast && f.dst != l.addr {
			continue
		}
		payload := append([]byte(nil), f.payload...)
		src, ch, rssi, kind := f.src, f.channel, nb.RSSI, f.kind
		l.s.Post(func() { l.dispatch(kind, ch, src, rssi, payload) })
	}
}

func (l *Link) dispatch(kind uint8, ch radio.Channel, src linkaddr.Addr, rssi int16, payload []byte) {
	l.mu.Lock()
	bh := l.bcast[ch]
	uh := l.ucast[ch]
	l.mu.Unlock()
	switch kind {
	case kindBroadcast:
		if bh != nil {
			bh(payload, src, rssi)
		}
	case kindUnicast:
		if uh != nil {
			uh(payload, src)
		}
	}
}

type bcastConn struct {
	l  *Link
	ch radio.Channel
}

func (c *bcastConn) Channel() radio.Channel { return c.ch }

// Send writes one datagram per neighbor; the first write error is returned
// after all neighbors were tried.
func (c *bcastConn) Send(payload []byte) error {
	if c.l.isClosed() {
		return radio.ErrClosed
	}
	if err := radio.CheckFrame(payload); err != nil {
		return err
	}
	f := &frame{kind: kindBroadcast, channel: c.ch, src: c.l.addr, dst: linkaddr.Broadcast, payload: payload}
	c.l.mu.Lock()
	targets := append([]*neighbor(nil), c.l.order...)
	c.l.mu.Unlock()
	var first error
	for _, nb := range targets {
		if err := c.l.write(f, nb); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *bcastConn) Close() error {
	c.l.mu.Lock()
	delete(c.l.bcast, c.ch)
	c.l.mu.Unlock()
	return nil
}

type ucastConn struct {
	l  *Link
	ch radio.Channel
}

func (c *ucastConn) Channel() radio.Channel { return c.ch }

func (c *ucastConn) Send(payload []byte, to linkaddr.Addr) error {
	if c.l.isClosed() {
		return radio.ErrClosed
	}
	if err := radio.CheckFrame(payload); err != nil {
		return err
	}
	c.l.mu.Lock()
	nb := c.l.nbrs[to]
	c.l.mu.Unlock()
	if nb == nil {
		return fmt.Errorf("%w: %s", radio.ErrUnknownNeighbor, to)
	}
	return c.l.write(&frame{kind: kindUnicast, channel: c.ch, src: c.l.addr, dst: to, payload: payload}, nb)
}

func (c *ucastConn) Close() error {
	c.l.mu.Lock()
	delete(c.l.ucast, c.ch)
	c.l.mu.Unlock()
	return nil
}
