// Package linkaddr holds the 2-byte link-layer address used by the radio
// primitives and the collection protocol.
package linkaddr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Size is the on-air length of an address.
const Size = 2

// Addr is a stable per-node link-layer address, printed as "01:02".
type Addr [Size]byte

// Broadcast is never assigned to a node; frames addressed to it reach every neighbor.
var Broadcast = Addr{0xff, 0xff}

var errBadAddr = errors.New("linkaddr: invalid address")

// Parse accepts "01:02", "0102" or "1.2" (decimal bytes, as printed by Rime tools).
func Parse(s string) (Addr, error) {
	var a Addr
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		var b0, b1 uint
		if _, err := fmt.Sscanf(s, "%d.%d", &b0, &b1); err != nil || b0 > 0xff || b1 > 0xff {
			return a, fmt.Errorf("%w: %q", errBadAddr, s)
		}
		a[0], a[1] = byte(b0), byte(b1)
		return a, nil
	}
	raw := strings.ReplaceAll(s, ":", "")
	if len(raw) != 2*Size {
		return a, fmt.Errorf("%w: %q", errBadAddr, s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("%w: %q", errBadAddr, s)
	}
	copy(a[:], b)
	return a, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Addr {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromUint16 builds an address from its big-endian numeric form.
func FromUint16(v uint16) Addr { return Addr{byte(v >> 8), byte(v)} }

// Uint16 is the big-endian numeric form of a.
func (a Addr) Uint16() uint16 { return uint16(a[0])<<8 | uint16(a[1]) }

func (a Addr) String() string { return fmt.Sprintf("%02x:%02x", a[0], a[1]) }

// MarshalText lets addresses appear as map keys and strings in JSON/YAML.
func (a Addr) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Addr) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Optional is an address that may be unset. The zero value is unset, which
// keeps "no parent" distinct from any real address, including 00:00.
type Optional struct {
	addr Addr
	set  bool
}

// Some wraps a as a set Optional.
func Some(a Addr) Optional { return Optional{addr: a, set: true} }

// None returns an unset Optional.
func None() Optional { return Optional{} }

// Get returns the address and whether it is set.
func (o Optional) Get() (Addr, bool) { return o.addr, o.set }

func (o Optional) IsSet() bool { return o.set }

func (o Optional) String() string {
	if !o.set {
		return "unset"
	}
	return o.addr.String()
}
