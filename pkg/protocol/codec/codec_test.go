package codec

import (
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

type sample struct {
	N uint32 `json:"n" cbor:"1,keyasint"`
	S string `json:"s" cbor:"2,keyasint"`
}

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	for _, name := range []string{"cbor", "json", "proto"} {
		c := r.ByName(name)
		if c == nil {
			t.Fatalf("missing codec %q", name)
		}
		if r.ByID(c.ID()) != c {
			t.Fatalf("ID lookup mismatch for %q", name)
		}
	}
	if r.ByName("xml") != nil || r.ByID(0) != nil {
		t.Fatalf("unexpected codec for unknown key")
	}
}

func TestJSONCodec(t *testing.T) {
	c := JSON()
	b, err := c.Marshal(sample{N: 1, S: "x"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out sample
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.N != 1 || out.S != "x" {
		t.Fatalf("roundtrip mismatch: %#v", out)
	}
}

func TestCBORCodecIsCompactAndDeterministic(t *testing.T) {
	c, err := CBOR()
	if err != nil {
		t.Fatalf("new cbor: %v", err)
	}
	in := sample{N: 42, S: "t"}
	a, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, _ := c.Marshal(in)
	if string(a) != string(b) {
		t.Fatalf("encoding not deterministic")
	}
	// map(2){1: 42, 2: "t"}
	want := []byte{0xa2, 0x01, 0x18, 0x2a, 0x02, 0x61, 't'}
	if string(a) != string(want) {
		t.Fatalf("encoding = % x, want % x", a, want)
	}
	var out sample
	if err := c.Unmarshal(a, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("roundtrip mismatch: %#v", out)
	}
}

func TestProtoCodec(t *testing.T) {
	c := Proto()
	s, err := structpb.NewStruct(map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	b, err := c.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out structpb.Struct
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Fields["k"].GetStringValue() != "v" {
		t.Fatalf("roundtrip mismatch")
	}
	if _, err := c.Marshal(sample{}); err == nil {
		t.Fatalf("expected error for non-proto value")
	}
}
