// Package mem is an in-process radio medium. Nodes attach with an address and
// a scheduler; directed links carry a fixed RSSI and an optional loss rate.
// Useful for tests and as the medium of the simulator.
package mem

import (
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/radio"
	"wsncollect/pkg/sched"
)

// LinkParams describe one direction of a link.
type LinkParams struct {
	RSSI int16   // dBm reported to the receiver
	Loss float64 // probability in [0,1) that a frame is lost
}

// Options tune the medium.
type Options struct {
	// Delay is the propagation delay; zero delivers on the next Drain.
	Delay time.Duration
	// Rand drives loss decisions; nil uses a fixed seed.
	Rand *rand.Rand
	Log  *zap.Logger
}

// Medium connects attached links.
type Medium struct {
	mu    sync.Mutex
	opts  Options
	nodes map[linkaddr.Addr]*Link
	links map[edge]LinkParams
	tx    map[linkaddr.Addr]uint64
	rx    map[edge]uint64
	log   *zap.Logger
}

type edge struct{ from, to linkaddr.Addr }

func New(opts Options) *Medium {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	if opts.Log == nil {
		opts.Log = zap.L()
	}
	return &Medium{
		opts:  opts,
		nodes: make(map[linkaddr.Addr]*Link),
		links: make(map[edge]LinkParams),
		tx:    make(map[linkaddr.Addr]uint64),
		rx:    make(map[edge]uint64),
		log:   opts.Log.Named("mem"),
	}
}

// Attach registers a node; its handlers run on s.
func (m *Medium) Attach(addr linkaddr.Addr, s sched.Scheduler) (*Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[addr]; ok {
		return nil, errors.New("mem: address already attached")
	}
	l := &Link{
		m:     m,
		addr:  addr,
		s:     s,
		bcast: make(map[radio.Channel]radio.BroadcastHandler),
		ucast: make(map[radio.Channel]radio.UnicastHandler),
	}
	m.nodes[addr] = l
	return l, nil
}

// Connect links a and b in both directions with the same RSSI and no loss.
func (m *Medium) Connect(a, b linkaddr.Addr, rssi int16) {
	m.SetLink(a, b, LinkParams{RSSI: rssi})
	m.SetLink(b, a, LinkParams{RSSI: rssi})
}

// SetLink sets the directed link from -> to.
func (m *Medium) SetLink(from, to linkaddr.Addr, p LinkParams) {
	m.mu.Lock()
	m.links[edge{from, to}] = p
	m.mu.Unlock()
}

// Disconnect removes both directions between a and b.
func (m *Medium) Disconnect(a, b linkaddr.Addr) {
	m.mu.Lock()
	delete(m.links, edge{a, b})
	delete(m.links, edge{b, a})
	m.mu.Unlock()
}

// Neighbors lists the nodes that hear from, sorted.
func (m *Medium) Neighbors(from linkaddr.Addr) []linkaddr.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []linkaddr.Addr
	for e := range m.links {
		if e.from == from {
			out = append(out, e.to)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Uint16() < out[j].Uint16() })
	return out
}

// TxCount is the number of frames addr put on the medium.
func (m *Medium) TxCount(addr linkaddr.Addr) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx[addr]
}

// RxCount is the number of frames from -> to that survived loss.
func (m *Medium) RxCount(from, to linkaddr.Addr) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx[edge{from, to}]
}

type delivery struct {
	to   *Link
	rssi int16
}

// route decides, under the lock, which receivers get a frame. dst nil means broadcast.
func (m *Medium) route(from linkaddr.Addr, dst *linkaddr.Addr) ([]delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dst != nil {
		if _, ok := m.links[edge{from, *dst}]; !ok {
			return nil, radio.ErrUnknownNeighbor
		}
	}
	m.tx[from]++
	var cand []edge
	for e := range m.links {
		if e.from != from || (dst != nil && e.to != *dst) {
			continue
		}
		cand = append(cand, e)
	}
	// map order is random; loss draws and delivery order must not be
	sort.Slice(cand, func(i, j int) bool { return cand[i].to.Uint16() < cand[j].to.Uint16() })
	var out []delivery
	for _, e := range cand {
		n := m.nodes[e.to]
		if n == nil {
			continue
		}
		p := m.links[e]
		if p.Loss > 0 && m.opts.Rand.Float64() < p.Loss {
			continue
		}
		m.rx[e]++
		out = append(out, delivery{to: n, rssi: p.RSSI})
	}
	return out, nil
}

func (m *Medium) deliver(d delivery, fn func()) {
	if m.opts.Delay > 0 {
		d.to.s.AfterFunc(m.opts.Delay, fn)
		return
	}
	d.to.s.Post(fn)
}

// Link is a node attached to a Medium.
type Link struct {
	m     *Medium
	addr  linkaddr.Addr
	s     sched.Scheduler
	mu    sync.Mutex
	bcast map[radio.Channel]radio.BroadcastHandler
	ucast map[radio.Channel]radio.UnicastHandler
}

func (l *Link) Addr() linkaddr.Addr { return l.addr }

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

func (l *Link) broadcastHandler(ch radio.Channel) radio.BroadcastHandler {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bcast[ch]
}

func (l *Link) unicastHandler(ch radio.Channel) radio.UnicastHandler {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ucast[ch]
}

type bcastConn struct {
	l      *Link
	ch     radio.Channel
	closed bool
}

func (c *bcastConn) Channel() radio.Channel { return c.ch }

func (c *bcastConn) Send(payload []byte) error {
	if c.closed {
		return radio.ErrClosed
	}
	if err := radio.CheckFrame(payload); err != nil {
		return err
	}
	ds, _ := c.l.m.route(c.l.addr, nil)
	from := c.l.addr
	for _, d := range ds {
		d := d
		frame := append([]byte(nil), payload...)
		c.l.m.deliver(d, func() {
			if h := d.to.broadcastHandler(c.ch); h != nil {
				h(frame, from, d.rssi)
			}
		})
	}
	return nil
}

func (c *bcastConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.l.mu.Lock()
	delete(c.l.bcast, c.ch)
	c.l.mu.Unlock()
	return nil
}

type ucastConn struct {
	l      *Link
	ch     radio.Channel
	closed bool
}

func (c *ucastConn) Channel() radio.Channel { return c.ch }

func (c *ucastConn) Send(payload []byte, to linkaddr.Addr) error {
	if c.closed {
		return radio.ErrClosed
	}
	if err := radio.CheckFrame(payload); err != nil {
		return err
	}
	ds, err := c.l.m.route(c.l.addr, &to)
	if err != nil {
		c.l.m.log.Debug("unicast to unknown neighbor", zap.Stringer("from", c.l.addr), zap.Stringer("to", to))
		return err
	}
	from := c.l.addr
	for _, d := range ds {
		d := d
		frame := append([]byte(nil), payload...)
		c.l.m.deliver(d, func() {
			if h := d.to.unicastHandler(c.ch); h != nil {
				h(frame, from)
			}
		})
	}
	return nil
}

func (c *ucastConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.l.mu.Lock()
	delete(c.l.ucast, c.ch)
	c.l.mu.Unlock()
	return nil
}
