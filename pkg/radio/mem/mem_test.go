package mem

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/radio"
	"wsncollect/pkg/sched"
)

var (
	addrA = linkaddr.MustParse("01:00")
	addrB = linkaddr.MustParse("02:00")
	addrC = linkaddr.MustParse("03:00")
)

func TestBroadcastReachesOnlyNeighborsOnChannel(t *testing.T) {
	v := sched.NewVirtual(time.Unix(0, 0))
	m := New(Options{Log: zaptest.NewLogger(t)})
	a, _ := m.Attach(addrA, v)
	b, _ := m.Attach(addrB, v)
	c, _ := m.Attach(addrC, v)
	m.Connect(addrA, addrB, -70)

	type rx struct {
		from linkaddr.Addr
		rssi int16
		data string
	}
	var atB, atC []rx
	if _, err := b.OpenBroadcast(10, func(p []byte, from linkaddr.Addr, rssi int16) {
		atB = append(atB, rx{from, rssi, string(p)})
	}); err != nil {
		t.Fatalf("open b: %v", err)
	}
	_, _ = b.OpenBroadcast(11, func([]byte, linkaddr.Addr, int16) { t.Fatalf("wrong channel delivered") })
	_, _ = c.OpenBroadcast(10, func(p []byte, from linkaddr.Addr, rssi int16) {
		atC = append(atC, rx{from, rssi, string(p)})
	})

	bc, _ := a.OpenBroadcast(10, nil)
	if err := bc.Send([]byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	v.Drain()
	if len(atB) != 1 || atB[0] != (rx{addrA, -70, "hello"}) {
		t.Fatalf("b got %+v", atB)
	}
	if len(atC) != 0 {
		t.Fatalf("c is out of range but got %+v", atC)
	}
	if m.TxCount(addrA) != 1 || m.RxCount(addrA, addrB) != 1 {
		t.Fatalf("counters tx=%d rx=%d", m.TxCount(addrA), m.RxCount(addrA, addrB))
	}
}

func TestUnicastUnknownNeighbor(t *testing.T) {
	v := sched.NewVirtual(time.Unix(0, 0))
	m := New(Options{Log: zaptest.NewLogger(t)})
	a, _ := m.Attach(addrA, v)
	b, _ := m.Attach(addrB, v)
	m.Connect(addrA, addrB, -60)

	var got []string
	_, _ = b.OpenUnicast(11, func(p []byte, from linkaddr.Addr) {
		if from != addrA {
			t.Fatalf("from = %v", from)
		}
		got = append(got, string(p))
	})
	uc, _ := a.OpenUnicast(11, nil)
	if err := uc.Send([]byte("x"), addrC); !errors.Is(err, radio.ErrUnknownNeighbor) {
		t.Fatalf("err = %v, want ErrUnknownNeighbor", err)
	}
	if err := uc.Send([]byte("y"), addrB); err != nil {
		t.Fatalf("send: %v", err)
	}
	v.Drain()
	if len(got) != 1 || got[0] != "y" {
		t.Fatalf("got %v", got)
	}
}

func TestChannelInUseAndClose(t *testing.T) {
	v := sched.NewVirtual(time.Unix(0, 0))
	m := New(Options{Log: zaptest.NewLogger(t)})
	a, _ := m.Attach(addrA, v)
	if _, err := m.Attach(addrA, v); err == nil {
		t.Fatalf("double attach must fail")
	}
	bc, _ := a.OpenBroadcast(1, nil)
	if _, err := a.OpenBroadcast(1, nil); !errors.Is(err, radio.ErrChannelInUse) {
		t.Fatalf("err = %v", err)
	}
	_ = bc.Close()
	if err := bc.Send([]byte("z")); !errors.Is(err, radio.ErrClosed) {
		t.Fatalf("send after close: %v", err)
	}
	if _, err := a.OpenBroadcast(1, nil); err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
}

func TestLossDropsFrames(t *testing.T) {
	v := sched.NewVirtual(time.Unix(0, 0))
	m := New(Options{Log: zaptest.NewLogger(t)})
	a, _ := m.Attach(addrA, v)
	b, _ := m.Attach(addrB, v)
	m.SetLink(addrA, addrB, LinkParams{RSSI: -80, Loss: 0.999999})
	n := 0
	_, _ = b.OpenBroadcast(1, func([]byte, linkaddr.Addr, int16) { n++ })
	bc, _ := a.OpenBroadcast(1, nil)
	for i := 0; i < 50; i++ {
		_ = bc.Send([]byte{byte(i)})
	}
	v.Drain()
	if n != 0 {
		t.Fatalf("lossy link delivered %d frames", n)
	}
	if got := m.Neighbors(addrA); len(got) != 1 || got[0] != addrB {
		t.Fatalf("neighbors = %v", got)
	}
}
