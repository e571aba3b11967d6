package udp

import (
	"encoding/binary"
	"errors"

	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/radio"
)

// Frame layout on the UDP wire (network byte order):
//
//	0  ..1   Magic   'W''C'
//	2        Version u8
//	3        Kind    u8 (0 broadcast, 1 unicast)
//	4  ..5   Channel u16
//	6  ..7   Source  link address
//	8  ..9   Dest    link address (ff:ff for broadcast)
//	10 ..    Payload
const (
	frameHeaderSize = 10
	frameMagic      = uint16(0x5743) // 'W''C'
	frameVersion    = 1
)

const (
	kindBroadcast uint8 = 0
	kindUnicast   uint8 = 1
)

type frame struct {
	kind    uint8
	channel radio.Channel
	src     linkaddr.Addr
	dst     linkaddr.Addr
	payload []byte
}

func (f *frame) marshal() []byte {
	buf := make([]byte, frameHeaderSize+len(f.payload))
	binary.BigEndian.PutUint16(buf[0:2], frameMagic)
	buf[2] = frameVersion
	buf[3] = f.kind
	binary.BigEndian.PutUint16(buf[4:6], uint16(f.channel))
	copy(buf[6:8], f.src[:])
	copy(buf[8:10], f.dst[:])
	copy(buf[10:], f.payload)
	return buf
}

// unmarshal aliases payload into buf.
func (f *frame) unmarshal(buf []byte) error {
	if len(buf) < frameHeaderSize {
		return errors.New("short frame")
	}
	if binary.BigEndian.Uint16(buf[0:2]) != frameMagic {
		return errors.New("bad magic")
	}
	if buf[2] != frameVersion {
		return errors.New("unsupported version")
	}
	f.kind = buf[3]
	if f.kind != kindBroadcast && f.kind != kindUnicast {
		return errors.New("bad kind")
	}
	f.channel = radio.Channel(binary.BigEndian.Uint16(buf[4:6]))
	copy(f.src[:], buf[6:8])
	copy(f.dst[:], buf[8:10])
	f.payload = buf[10:]
	return nil
}
