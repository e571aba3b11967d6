package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/sensor"
)

func sampleDelivery() Delivery {
	return Delivery{
		Source:     linkaddr.MustParse("03:00"),
		Hops:       2,
		Format:     "cbor",
		Reading:    sensor.Reading{Seq: 9, Value: 20.25, TakenAt: time.Unix(1000, 0)},
		ReceivedAt: time.Unix(1001, 0),
	}
}

func TestMarshalRecord(t *testing.T) {
	b, err := Marshal(sampleDelivery())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["source"] != "03:00" || m["hops"].(float64) != 2 || m["seq"].(float64) != 9 {
		t.Fatalf("record = %v", m)
	}
	if m["taken_at"] != "1970-01-01T00:16:40Z" {
		t.Fatalf("taken_at = %v", m["taken_at"])
	}
}

func TestLogExporter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := NewLog(zap.New(core))
	if err := e.Export(context.Background(), sampleDelivery()); err != nil {
		t.Fatalf("export: %v", err)
	}
	entries := logs.FilterMessage("reading delivered").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if f := entries[0].ContextMap(); f["source"] != "03:00" || f["hops"] != uint8(2) {
		t.Fatalf("fields = %v", f)
	}
}

type fakeRedis struct {
	channel string
	msg     any
	closed  bool
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel, f.msg = channel, message
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisPublishesJSON(t *testing.T) {
	f := &fakeRedis{}
	r := &Redis{rdb: f, channel: "readings"}
	if err := r.Export(context.Background(), sampleDelivery()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if f.channel != "readings" {
		t.Fatalf("channel = %q", f.channel)
	}
	want, _ := Marshal(sampleDelivery())
	if string(f.msg.([]byte)) != string(want) {
		t.Fatalf("msg = %s", f.msg)
	}
	_ = r.Close()
	if !f.closed {
		t.Fatalf("client not closed")
	}
}

type fakeNATS struct {
	msgs    []*nats.Msg
	drained bool
}

func (f *fakeNATS) PublishMsg(m *nats.Msg) error {
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeNATS) Drain() error {
	f.drained = true
	return nil
}

func TestNATSHeaders(t *testing.T) {
	f := &fakeNATS{}
	n := &NATS{nc: f, subject: "wsn.readings"}
	if err := n.Export(context.Background(), sampleDelivery()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(f.msgs) != 1 {
		t.Fatalf("published %d", len(f.msgs))
	}
	m := f.msgs[0]
	if m.Subject != "wsn.readings" || m.Header.Get("Device-ID") != "03:00" || m.Header.Get("Seq") != "9" || m.Header.Get("Hops") != "2" {
		t.Fatalf("msg = %+v", m)
	}
	_ = n.Close()
	if !f.drained {
		t.Fatalf("conn not drained")
	}
}

// doneToken is an already-completed MQTT token.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type fakeMQTT struct {
	topic        string
	qos          byte
	payload      interface{}
	err          error
	disconnected bool
}

func (f *fakeMQTT) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	f.topic, f.qos, f.payload = topic, qos, payload
	return doneToken{err: f.err}
}

func (f *fakeMQTT) Disconnect(uint) { f.disconnected = true }

func TestMQTTPublishesPerSourceTopic(t *testing.T) {
	f := &fakeMQTT{}
	m := &MQTT{client: f, topic: "wsn/readings", qos: 1}
	if err := m.Export(context.Background(), sampleDelivery()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if f.topic != "wsn/readings/03:00" || f.qos != 1 {
		t.Fatalf("topic=%q qos=%d", f.topic, f.qos)
	}
	want, _ := Marshal(sampleDelivery())
	if string(f.payload.([]byte)) != string(want) {
		t.Fatalf("payload = %s", f.payload)
	}
	f.err = errors.New("not authorized")
	if err := m.Export(context.Background(), sampleDelivery()); err == nil || !strings.Contains(err.Error(), "not authorized") {
		t.Fatalf("err = %v", err)
	}
	_ = m.Close()
	if !f.disconnected {
		t.Fatalf("client not disconnected")
	}
}

type recorder struct {
	mu      sync.Mutex
	got     []Delivery
	ctxErrs []error
	err     error
	closed  bool
}

func (r *recorder) Export(ctx context.Context, d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, d)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return r.err
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{}, &recorder{err: boom}
	m := Multi{a, b}
	err := m.Export(context.Background(), sampleDelivery())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("fan-out incomplete")
	}
	_ = m.Close()
	if !a.closed || !b.closed {
		t.Fatalf("not all closed")
	}
}

func TestQueueFlushesInOrderOnClose(t *testing.T) {
	r := &recorder{}
	q := NewQueue(r, 16, zaptest.NewLogger(t))
	for i := uint32(1); i <= 5; i++ {
		d := sampleDelivery()
		d.Reading.Seq = i
		if !q.Push(d) {
			t.Fatalf("push %d dropped", i)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(r.got) != 5 {
		t.Fatalf("exported %d", len(r.got))
	}
	for i, d := range r.got {
		if d.Reading.Seq != uint32(i+1) {
			t.Fatalf("order: %d at %d", d.Reading.Seq, i)
		}
	}
	if q.Push(sampleDelivery()) || q.Dropped() != 1 {
		t.Fatalf("push after close accepted")
	}
	if !r.closed {
		t.Fatalf("exporter not closed")
	}
}

type blocking struct {
	release chan struct{}
}

func (b *blocking) Export(context.Context, Delivery) error {
	<-b.release
	return nil
}

func (b *blocking) Close() error { return nil }

func TestQueueDropsWhenFull(t *testing.T) {
	b := &blocking{release: make(chan struct{})}
	q := NewQueue(b, 1, zaptest.NewLogger(t))
	accepted := 0
	for i := 0; i < 4; i++ {
		if q.Push(sampleDelivery()) {
			accepted++
		}
	}
	// one may be held by the worker, one buffered
	if accepted < 1 || accepted > 2 || q.Dropped() != uint64(4-accepted) {
		t.Fatalf("accepted=%d dropped=%d", accepted, q.Dropped())
	}
	close(b.release)
	_ = q.Close()
}

func TestQueueFlushOutlivesCallerContext(t *testing.T) {
	r := &recorder{}
	// the node cancels its run context before closing the exporters
	runCtx, cancel := context.WithCancel(context.Background())
	q := NewQueue(r, 16, zaptest.NewLogger(t))
	for i := uint32(1); i <= 3; i++ {
		d := sampleDelivery()
		d.Reading.Seq = i
		q.Push(d)
	}
	cancel()
	<-runCtx.Done()
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(r.got) != 3 {
		t.Fatalf("exported %d, want 3", len(r.got))
	}
	for i, err := range r.ctxErrs {
		if err != nil {
			t.Fatalf("export %d ran with a dead context: %v", i, err)
		}
	}
}

type stuck struct{ started chan struct{} }

func (s *stuck) Export(ctx context.Context, _ Delivery) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stuck) Close() error { return nil }

func TestQueueShutdownGivesUpAfterDeadline(t *testing.T) {
	s := &stuck{started: make(chan struct{}, 1)}
	q := NewQueue(s, 4, zaptest.NewLogger(t))
	q.Push(sampleDelivery())
	q.Push(sampleDelivery())
	<-s.started
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("shutdown err = %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d, want the queued delivery discarded", q.Dropped())
	}
}
