package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"wsncollect/pkg/config"
	"wsncollect/pkg/export"
	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/protocol/codec"
	"wsncollect/pkg/sched"
	"wsncollect/pkg/sensor"
)

// sinkApp decodes delivered payloads and hands them to the exporters.
type sinkApp struct {
	reg *codec.Registry
	s   sched.Scheduler
	q   *export.Queue
	log *zap.Logger
}

func newSinkApp(ctx context.Context, c config.ExportConfig, reg *codec.Registry, s sched.Scheduler, log *zap.Logger) (*sinkApp, error) {
	var exps export.Multi
	fail := func(err error) (*sinkApp, error) {
		return nil, errors.Join(err, exps.Close())
	}
	if c.Redis.Enable {
		r, err := export.NewRedis(ctx, c.Redis)
		if err != nil {
			return fail(err)
		}
		exps = append(exps, r)
	}
	if c.NATS.Enable {
		n, err := export.NewNATS(c.NATS)
		if err != nil {
			return fail(err)
		}
		exps = append(exps, n)
	}
	if c.MQTT.Enable {
		m, err := export.NewMQTT(c.MQTT)
		if err != nil {
			return fail(err)
		}
		exps = append(exps, m)
	}
	if c.Log || len(exps) == 0 {
		exps = append(exps, export.NewLog(log))
	}
	return &sinkApp{
		reg: reg,
		s:   s,
		q:   export.NewQueue(exps, 256, log),
		log: log,
	}, nil
}

// onData runs on the scheduler for every packet reaching the sink.
func (a *sinkApp) onData(source linkaddr.Addr, hops uint8, payload []byte) {
	r, c, err := sensor.Decode(a.reg, payload)
	if err != nil {
		a.log.Warn("undecodable payload", zap.Stringer("source", source), zap.Uint8("hops", hops), zap.Error(err))
		return
	}
	a.q.Push(export.Delivery{
		Source:     source,
		Hops:       hops,
		Format:     c.Name(),
		Reading:    r,
		ReceivedAt: a.s.Now(),
	})
}

// Shutdown flushes pending readings, giving up when ctx ends.
func (a *sinkApp) Shutdown(ctx context.Context) error { return a.q.Shutdown(ctx) }
