package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"wsncollect/pkg/collect"
	"wsncollect/pkg/protocol/codec"
	"wsncollect/pkg/sched"
	"wsncollect/pkg/sensor"
)

// source periodically samples and sends a reading toward the sink.
type source struct {
	conn     *collect.Conn
	loop     *sched.Loop
	codec    codec.Codec
	interval time.Duration
	sampler  *sensor.Sampler
	rng      *rand.Rand
	log      *zap.Logger
}

func newSource(conn *collect.Conn, loop *sched.Loop, c codec.Codec, interval time.Duration, log *zap.Logger) *source {
	seed := uint64(conn.Addr().Uint16())
	return &source{
		conn:     conn,
		loop:     loop,
		codec:    c,
		interval: interval,
		sampler:  sensor.NewSampler(20, rand.New(rand.NewPCG(seed, 1))),
		rng:      rand.New(rand.NewPCG(seed, 2)),
		log:      log.Named("app"),
	}
}

// jitter spreads sends over [0.75, 1.25) of the interval so nodes drift apart.
func (s *source) jitter() time.Duration {
	return s.interval*3/4 + time.Duration(s.rng.Int64N(int64(s.interval)/2+1))
}

func (s *source) run(ctx context.Context) {
	for {
		t := time.NewTimer(s.jitter())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		s.sendOne(ctx)
	}
}

func (s *source) sendOne(ctx context.Context) {
	r := s.sampler.Next(time.Now())
	p, err := sensor.Encode(s.codec, r)
	if err != nil {
		s.log.Error("encode reading", zap.Error(err))
		return
	}
	var sendErr error
	if err := s.loop.Call(ctx, func() { sendErr = s.conn.Send(p) }); err != nil {
		return
	}
	switch {
	case sendErr == nil:
		s.log.Debug("reading sent", zap.Uint32("seq", r.Seq), zap.Int("bytes", len(p)))
	case errors.Is(sendErr, collect.ErrNotConnected):
		s.log.Debug("no route to sink yet", zap.Uint32("seq", r.Seq))
	default:
		s.log.Warn("send failed", zap.Uint32("seq", r.Seq), zap.Error(sendErr))
	}
}
