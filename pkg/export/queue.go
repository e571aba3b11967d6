package export

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Queue decouples the node's event loop from exporter I/O: Push never blocks
// and a single worker exports in arrival order. When the buffer is full the
// delivery is dropped and counted.
type Queue struct {
	ctx     context.Context
	cancel  context.CancelFunc
	exp     Exporter
	log     *zap.Logger
	ch      chan Delivery
	wg      sync.WaitGroup
	mu      sync.Mutex
	dropped uint64
	closed  bool
}

// NewQueue starts the worker. Exports run under a context owned by the
// queue, which stays live until Shutdown gives up on the flush.
func NewQueue(exp Exporter, size int, log *zap.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{ctx: ctx, cancel: cancel, exp: exp, log: log.Named("export"), ch: make(chan Delivery, size)}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Push enqueues d, reporting false if it was dropped.
func (q *Queue) Push(d Delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.dropped++
		return false
	}
	select {
	case q.ch <- d:
		return true
	default:
		q.dropped++
		q.log.Warn("export queue full, dropping", zap.Stringer("source", d.Source), zap.Uint32("seq", d.Reading.Seq))
		return false
	}
}

// Dropped returns the number of deliveries discarded so far.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close flushes pending deliveries, stops the worker and closes the exporter.
func (q *Queue) Close() error { return q.Shutdown(context.Background()) }

// Shutdown stops accepting deliveries and waits for the pending ones to be
// exported. If ctx ends first, in-flight exports are cancelled and the rest
// are discarded.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		q.cancel()
		<-done
	}
	q.cancel()
	return errors.Join(err, q.exp.Close())
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for d := range q.ch {
		if q.ctx.Err() != nil {
			q.mu.Lock()
			q.dropped++
			q.mu.Unlock()
			continue
		}
		if err := q.exp.Export(q.ctx, d); err != nil {
			q.log.Warn("export failed", zap.Stringer("source", d.Source), zap.Error(err))
		}
	}
}
