package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"wsncollect/pkg/collect"
	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/protocol/codec"
	"wsncollect/pkg/radio"
	"wsncollect/pkg/radio/mem"
	"wsncollect/pkg/sched"
	"wsncollect/pkg/sensor"
)

const simChannel radio.Channel = 0xAA

type params struct {
	Topology     string
	Nodes        int
	Rounds       int
	Seed         uint64
	Loss         float64
	Delay        time.Duration
	SendInterval time.Duration
	Format       string
	Collect      collect.Options
}

type nodeResult struct {
	Addr      linkaddr.Addr
	State     collect.RoutingState
	Dist      int
	Sent      uint64 // Send accepted
	Refused   uint64 // Send failed, typically not connected
	Delivered uint64
	HopSum    uint64
}

type result struct {
	Nodes    []nodeResult
	Elapsed  time.Duration
	Frames   uint64
	Rejected uint64 // undecodable payloads at the sink
}

// simulate runs the whole network on one virtual clock; it is deterministic
// for a given seed.
func simulate(p params, log *zap.Logger) (result, error) {
	rng := rand.New(rand.NewPCG(p.Seed, 0x5349))
	top, err := buildTopology(p.Topology, p.Nodes, rng)
	if err != nil {
		return result{}, err
	}
	reg, err := codec.NewRegistry()
	if err != nil {
		return result{}, err
	}
	cd := reg.ByName(p.Format)
	if cd == nil {
		return result{}, fmt.Errorf("unknown payload format %q", p.Format)
	}

	v := sched.NewVirtual(time.Unix(0, 0).UTC())
	m := mem.New(mem.Options{Delay: p.Delay, Rand: rand.New(rand.NewPCG(p.Seed, 0x4d45)), Log: log})
	for _, e := range top.edges {
		lp := mem.LinkParams{RSSI: e.rssi, Loss: p.Loss}
		m.SetLink(addrOf(e.a), addrOf(e.b), lp)
		m.SetLink(addrOf(e.b), addrOf(e.a), lp)
	}

	res := result{Nodes: make([]nodeResult, top.n)}
	index := make(map[linkaddr.Addr]int, top.n)
	for i := range res.Nodes {
		res.Nodes[i].Addr = addrOf(i)
		index[addrOf(i)] = i
	}
	recv := func(src linkaddr.Addr, hops uint8, payload []byte) {
		if _, _, err := sensor.Decode(reg, payload); err != nil {
			res.Rejected++
			return
		}
		if i, ok := index[src]; ok {
			res.Nodes[i].Delivered++
			res.Nodes[i].HopSum += uint64(hops)
		}
	}

	opts := p.Collect
	if opts.StartupDelay <= 0 {
		opts.StartupDelay = collect.DefaultStartupDelay
	}
	if opts.BeaconInterval <= 0 {
		opts.BeaconInterval = collect.DefaultBeaconInterval
	}
	if p.Rounds < 1 {
		return result{}, fmt.Errorf("rounds must be at least 1, got %d", p.Rounds)
	}
	// the last round gets half an interval to settle
	res.Elapsed = opts.StartupDelay + time.Duration(p.Rounds-1)*opts.BeaconInterval + opts.BeaconInterval/2
	// sources go quiet one second before the end so nothing is left in flight
	quiet := v.Now().Add(res.Elapsed - time.Second)

	conns := make([]*collect.Conn, top.n)
	for i := range conns {
		l, err := m.Attach(addrOf(i), v)
		if err != nil {
			return result{}, err
		}
		o := opts
		o.Rand = rand.New(rand.NewPCG(p.Seed, uint64(i)))
		o.Log = log.With(zap.Stringer("node", addrOf(i)))
		var r collect.RecvFunc
		if i == 0 {
			r = recv
		}
		c, err := collect.Open(l, v, simChannel, i == 0, r, o)
		if err != nil {
			return result{}, fmt.Errorf("open %s: %w", addrOf(i), err)
		}
		conns[i] = c
	}

	if p.SendInterval > 0 {
		for i := 1; i < top.n; i++ {
			startSource(v, conns[i], cd, p.SendInterval, quiet, rng, &res.Nodes[i])
		}
	}

	v.Advance(res.Elapsed)

	dist := top.hopDistances(rssiThreshold(opts))
	var errs []error
	for i, c := range conns {
		res.Nodes[i].State = c.State()
		res.Nodes[i].Dist = dist[i]
		res.Frames += m.TxCount(addrOf(i))
		errs = append(errs, c.Close())
	}
	return res, errors.Join(errs...)
}

func rssiThreshold(o collect.Options) int16 {
	if o.RSSIThreshold == 0 {
		return collect.DefaultRSSIThreshold
	}
	return o.RSSIThreshold
}

// startSource sends one reading per interval from c until the quiet time,
// starting at a random offset so sources do not fire in lockstep.
func startSource(v *sched.Virtual, c *collect.Conn, cd codec.Codec, every time.Duration, quiet time.Time, rng *rand.Rand, nr *nodeResult) {
	sampler := sensor.NewSampler(20, rand.New(rand.NewPCG(uint64(c.Addr().Uint16()), 1)))
	var tick func()
	tick = func() {
		if !v.Now().Before(quiet) {
			return
		}
		p, err := sensor.Encode(cd, sampler.Next(v.Now()))
		if err == nil {
			err = c.Send(p)
		}
		if err != nil {
			nr.Refused++
		} else {
			nr.Sent++
		}
		v.AfterFunc(every, tick)
	}
	v.AfterFunc(time.Duration(rng.Int64N(int64(every)))+1, tick)
}

func (r result) print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tPARENT\tMETRIC\tSHORTEST\tSEQN\tSENT\tREFUSED\tDELIVERED\tAVG HOPS")
	var sent, delivered uint64
	for _, n := range r.Nodes {
		avg := "-"
		if n.Delivered > 0 {
			avg = fmt.Sprintf("%.2f", float64(n.HopSum)/float64(n.Delivered))
		}
		metric := "inf"
		if n.State.Metric != collect.MetricInfinite {
			metric = fmt.Sprint(n.State.Metric)
		}
		shortest := "-"
		if n.Dist >= 0 {
			shortest = fmt.Sprint(n.Dist)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			n.Addr, n.State.Parent, metric, shortest, n.State.Seqn, n.Sent, n.Refused, n.Delivered, avg)
		sent += n.Sent
		delivered += n.Delivered
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	ratio := 0.0
	if sent > 0 {
		ratio = float64(delivered) / float64(sent)
	}
	_, err := fmt.Fprintf(w, "\nsimulated %s: %d frames on air, %d/%d readings delivered (%.1f%%), %d rejected\n",
		r.Elapsed, r.Frames, delivered, sent, 100*ratio, r.Rejected)
	return err
}
