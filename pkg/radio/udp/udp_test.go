package udp

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/sched"
)

type bcastRx struct {
	payload string
	from    linkaddr.Addr
	rssi    int16
}

func TestLoopbackBroadcastAndUnicast(t *testing.T) {
	log := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopA, loopB := sched.NewLoop(log), sched.NewLoop(log)
	go func() { _ = loopA.Run(ctx) }()
	go func() { _ = loopB.Run(ctx) }()

	addrA, addrB := linkaddr.MustParse("00:01"), linkaddr.MustParse("00:02")
	a, err := Listen(ctx, addrA, loopA, Options{Listen: "127.0.0.1:0", Log: log})
	if err != nil {
		t.Fatalf("listen a: %v", err)
	}
	b, err := Listen(ctx, addrB, loopB, Options{Listen: "127.0.0.1:0", Log: log})
	if err != nil {
		t.Fatalf("listen b: %v", err)
	}
	if err := a.AddNeighbor(Neighbor{Link: addrB, Address: b.LocalAddr().String(), RSSI: -50}); err != nil {
		t.Fatalf("add neighbor: %v", err)
	}
	if err := b.AddNeighbor(Neighbor{Link: addrA, Address: a.LocalAddr().String(), RSSI: -77}); err != nil {
		t.Fatalf("add neighbor: %v", err)
	}

	bcast := make(chan bcastRx, 1)
	ucast := make(chan string, 1)
	if _, err := b.OpenBroadcast(5, func(p []byte, from linkaddr.Addr, rssi int16) {
		bcast <- bcastRx{string(p), from, rssi}
	}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := b.OpenUnicast(6, func(p []byte, from linkaddr.Addr) { ucast <- string(p) }); err != nil {
		t.Fatalf("open: %v", err)
	}

	bc, _ := a.OpenBroadcast(5, nil)
	uc, _ := a.OpenUnicast(6, nil)
	if err := bc.Send([]byte("beacon")); err != nil {
		t.Fatalf("bcast send: %v", err)
	}
	select {
	case got := <-bcast:
		if got != (bcastRx{"beacon", addrA, -77}) {
			t.Fatalf("broadcast rx = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast not received")
	}
	if err := uc.Send([]byte("data"), addrB); err != nil {
		t.Fatalf("ucast send: %v", err)
	}
	select {
	case got := <-ucast:
		if got != "data" {
			t.Fatalf("unicast rx = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("unicast not received")
	}
	if err := uc.Send([]byte("data"), linkaddr.MustParse("00:09")); err == nil {
		t.Fatalf("unicast to unknown neighbor must fail")
	}
}
