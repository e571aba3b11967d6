package collect

import (
	"encoding/binary"

	"wsncollect/pkg/linkaddr"
)

// Wire layouts, network byte order.
//
// Beacon (broadcast, base channel):
//
//	0 ..1  Seqn   u16
//	2 ..3  Metric u16
//
// Data header (unicast, base+1 channel), followed by the payload:
//
//	0 ..1  Source link address
//	2      Hops   u8
const (
	BeaconSize     = 4
	DataHeaderSize = linkaddr.Size + 1
)

// Beacon advertises the sender's tree round and path cost.
type Beacon struct {
	Seqn   uint16
	Metric uint16
}

// MarshalBinary encodes the beacon to its 4-byte form.
func (b Beacon) MarshalBinary() ([]byte, error) {
	buf := make([]byte, BeaconSize)
	binary.BigEndian.PutUint16(buf[0:2], b.Seqn)
	binary.BigEndian.PutUint16(buf[2:4], b.Metric)
	return buf, nil
}

// UnmarshalBinary requires exactly BeaconSize bytes.
func (b *Beacon) UnmarshalBinary(buf []byte) error {
	if len(buf) != BeaconSize {
		return ErrBeaconSize
	}
	b.Seqn = binary.BigEndian.Uint16(buf[0:2])
	b.Metric = binary.BigEndian.Uint16(buf[2:4])
	return nil
}

// DataHeader travels in front of every payload on its way to the sink.
type DataHeader struct {
	Source linkaddr.Addr
	Hops   uint8
}

// Put writes the header into the first DataHeaderSize bytes of buf.
func (h DataHeader) Put(buf []byte) {
	copy(buf[0:linkaddr.Size], h.Source[:])
	buf[linkaddr.Size] = h.Hops
}

// ParseDataHeader reads a header from the front of buf.
func ParseDataHeader(buf []byte) (DataHeader, error) {
	var h DataHeader
	if len(buf) < DataHeaderSize {
		return h, ErrShortData
	}
	copy(h.Source[:], buf[0:linkaddr.Size])
	h.Hops = buf[linkaddr.Size]
	return h, nil
}
