package udp

import (
	"bytes"
	"testing"

	"wsncollect/pkg/linkaddr"
)

func TestFrameEncodeDecode(t *testing.T) {
	f := frame{
		kind:    kindUnicast,
		channel: 0x0a0b,
		src:     linkaddr.MustParse("01:02"),
		dst:     linkaddr.MustParse("03:04"),
		payload: []byte("data"),
	}
	b := f.marshal()
	if len(b) != frameHeaderSize+4 {
		t.Fatalf("frame size = %d", len(b))
	}
	if b[4] != 0x0a || b[5] != 0x0b {
		t.Fatalf("channel must be big-endian: % x", b[4:6])
	}
	var d frame
	if err := d.unmarshal(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.kind != f.kind || d.channel != f.channel || d.src != f.src || d.dst != f.dst || !bytes.Equal(d.payload, f.payload) {
		t.Fatalf("frames differ: %#v vs %#v", d, f)
	}
}

func TestFrameRejectsGarbage(t *testing.T) {
	var f frame
	if err := f.unmarshal([]byte{1, 2, 3}); err == nil {
		t.Fatalf("short frame accepted")
	}
	good := (&frame{kind: kindBroadcast}).marshal()
	bad := append([]byte(nil), good...)
	bad[0] = 0
	if err := f.unmarshal(bad); err == nil {
		t.Fatalf("bad magic accepted")
	}
	bad = append([]byte(nil), good...)
	bad[3] = 9
	if err := f.unmarshal(bad); err == nil {
		t.Fatalf("bad kind accepted")
	}
}
