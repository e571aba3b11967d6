package linkaddr

import "testing"

func TestParseForms(t *testing.T) {
	want := Addr{0x01, 0x02}
	for _, s := range []string{"01:02", "0102", "1.2", " 01:02 "} {
		a, err := Parse(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if a != want {
			t.Fatalf("parse %q = %v, want %v", s, a, want)
		}
	}
	for _, s := range []string{"", "1:2:3", "zz:01", "300.1", "010203"} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("parse %q: expected error", s)
		}
	}
}

func TestStringAndUint16(t *testing.T) {
	a := FromUint16(0xab01)
	if a.String() != "ab:01" {
		t.Fatalf("string = %q", a.String())
	}
	if a.Uint16() != 0xab01 {
		t.Fatalf("uint16 = %#x", a.Uint16())
	}
	var b Addr
	if err := b.UnmarshalText([]byte("ab:01")); err != nil || b != a {
		t.Fatalf("unmarshal text: %v %v", b, err)
	}
}

func TestOptionalZeroIsUnset(t *testing.T) {
	var o Optional
	if o.IsSet() {
		t.Fatalf("zero optional must be unset")
	}
	if _, ok := o.Get(); ok {
		t.Fatalf("zero optional Get must report unset")
	}
	s := Some(Addr{})
	if a, ok := s.Get(); !ok || a != (Addr{}) {
		t.Fatalf("Some(00:00) must be set, got %v %v", a, ok)
	}
	if None().String() != "unset" || s.String() != "00:00" {
		t.Fatalf("string forms: %q %q", None().String(), s.String())
	}
}
