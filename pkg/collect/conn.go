package collect

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/packetbuf"
	"wsncollect/pkg/radio"
	"wsncollect/pkg/sched"
)

// Defaults match a duty-cycled 802.15.4 deployment.
const (
	DefaultRSSIThreshold   = -95 // dBm; weaker beacons are ignored
	DefaultBeaconInterval  = 60 * time.Second
	DefaultStartupDelay    = time.Second
	DefaultForwardDelayMax = time.Second
	DefaultMaxNeighbors    = 32
)

// RecvFunc is invoked on the sink for every delivered packet. payload aliases
// the packet buffer and is only valid during the call.
type RecvFunc func(source linkaddr.Addr, hops uint8, payload []byte)

// Options tune a Conn. Zero values take the defaults above.
type Options struct {
	// RSSIThreshold is the weakest signal, in dBm, a beacon may have to be
	// considered. 0 selects the default, so a 0 dBm threshold cannot be
	// expressed; config.Load rejects non-negative values.
	RSSIThreshold int16
	// BeaconInterval is the sink's period between tree rebuilds.
	BeaconInterval time.Duration
	// StartupDelay is the wait before the sink's first beacon.
	StartupDelay time.Duration
	// ForwardDelayMax bounds the random delay before rebroadcasting an
	// accepted beacon. A negative value rebroadcasts without delay.
	ForwardDelayMax time.Duration
	// MaxNeighbors bounds the neighbor table.
	MaxNeighbors int
	// BufferSize and HeaderSpace size the packet buffer.
	BufferSize  int
	HeaderSpace int
	Rand        *rand.Rand
	Log         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.RSSIThreshold == 0 {
		o.RSSIThreshold = DefaultRSSIThreshold
	}
	if o.BeaconInterval <= 0 {
		o.BeaconInterval = DefaultBeaconInterval
	}
	if o.StartupDelay <= 0 {
		o.StartupDelay = DefaultStartupDelay
	}
	if o.ForwardDelayMax < 0 {
		o.ForwardDelayMax = 0
	} else if o.ForwardDelayMax == 0 {
		o.ForwardDelayMax = DefaultForwardDelayMax
	}
	if o.MaxNeighbors <= 0 {
		o.MaxNeighbors = DefaultMaxNeighbors
	}
	if o.BufferSize <= 0 {
		o.BufferSize = packetbuf.DefaultSize
	}
	if o.HeaderSpace <= 0 {
		o.HeaderSpace = packetbuf.DefaultHeaderSpace
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Log == nil {
		o.Log = zap.L()
	}
	return o
}

// Stats counts protocol events since Open.
type Stats struct {
	BeaconsSent     uint64
	BeaconsReceived uint64
	BeaconsDropped  uint64 // wrong size or weak signal
	BeaconsAccepted uint64
	ParentChanges   uint64
	DataOriginated  uint64
	DataForwarded   uint64
	DataDelivered   uint64
	DataDropped     uint64 // malformed, hop limit, or no parent on relay
	SendFailures    uint64 // Send returned an error
}

// Conn is one node's collection endpoint.
type Conn struct {
	addr   linkaddr.Addr
	s      sched.Scheduler
	bc     radio.Broadcast
	uc     radio.Unicast
	recv   RecvFunc
	opts   Options
	log    *zap.Logger
	state  RoutingState
	beacon *sched.Slot // sink rebuild and triggered updates share this slot
	buf    *packetbuf.Buffer
	nbrs   *neighborTable
	stats  Stats
	closed bool
}

// Open starts the collection protocol on link: beacons on base, data on
// base+1. A sink arms its first beacon after StartupDelay; other nodes wait
// passively for one. recv is only invoked on the sink and may be nil
// elsewhere. Open must run on s.
//
// Unlike a bare radio stack that starts silently deaf, Open reports a
// channel that cannot be opened (in use, link closed) as an error and
// releases whatever it already opened; the node is unusable in that case.
func Open(link radio.Link, s sched.Scheduler, base radio.Channel, isSink bool, recv RecvFunc, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	c := &Conn{
		addr:   link.Addr(),
		s:      s,
		recv:   recv,
		opts:   opts,
		log:    opts.Log.Named("collect").With(zap.Stringer("node", link.Addr())),
		state:  newRoutingState(isSink),
		beacon: sched.NewSlot(s),
		buf:    packetbuf.New(opts.BufferSize, opts.HeaderSpace),
	}
	nbrs, err := newNeighborTable(opts.MaxNeighbors)
	if err != nil {
		return nil, fmt.Errorf("neighbor table: %w", err)
	}
	c.nbrs = nbrs
	bc, err := link.OpenBroadcast(base, c.onBeacon)
	if err != nil {
		return nil, fmt.Errorf("open beacon channel %d: %w", base, err)
	}
	uc, err := link.OpenUnicast(base+1, c.onData)
	if err != nil {
		_ = bc.Close()
		return nil, fmt.Errorf("open data channel %d: %w", base+1, err)
	}
	c.bc, c.uc = bc, uc

	if isSink {
		c.beacon.Set(opts.StartupDelay, c.beaconTimer)
	}
	c.log.Info("collect opened",
		zap.Bool("sink", isSink),
		zap.Uint16("beacon_channel", uint16(base)),
		zap.Uint16("data_channel", uint16(base+1)),
		zap.Int16("rssi_threshold", opts.RSSIThreshold))
	return c, nil
}

// Addr is this node's link address.
func (c *Conn) Addr() linkaddr.Addr { return c.addr }

// State returns a copy of the routing state.
func (c *Conn) State() RoutingState { return c.state }

// Stats returns a copy of the counters.
func (c *Conn) Stats() Stats { return c.stats }

// Neighbors lists the nodes heard beaconing, most recently heard first.
func (c *Conn) Neighbors() []Neighbor { return c.nbrs.list() }

// BeaconPending reports whether a beacon transmission is scheduled.
func (c *Conn) BeaconPending() bool { return c.beacon.Pending() }

// Snapshot is a consistent copy of a Conn's observable state.
type Snapshot struct {
	Addr      linkaddr.Addr
	State     RoutingState
	Stats     Stats
	Neighbors []Neighbor
}

// Snapshot copies the state on the scheduler goroutine, so it may be called
// from anywhere while the scheduler is running.
func (c *Conn) Snapshot(ctx context.Context) (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	c.s.Post(func() {
		ch <- Snapshot{Addr: c.addr, State: c.state, Stats: c.stats, Neighbors: c.nbrs.list()}
	})
	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Close cancels the pending beacon and closes both channels.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.beacon.Stop()
	err1 := c.bc.Close()
	err2 := c.uc.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
