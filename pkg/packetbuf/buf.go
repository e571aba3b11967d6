// Package packetbuf is the per-node scratch buffer a packet is assembled in
// before transmission and parsed from after reception.
//
// The buffer reserves head room in front of the data so protocol layers can
// prepend headers without copying the payload. Contents are only meaningful
// within the handler that filled them.
package packetbuf

import (
	"errors"
	"fmt"
)

const (
	// DefaultSize bounds header plus data, matching a 802.15.4-class frame.
	DefaultSize = 128
	// DefaultHeaderSpace is the head room available for prepended headers.
	DefaultHeaderSpace = 48
)

// ErrOverflow is returned when data does not fit the buffer.
var ErrOverflow = errors.New("packetbuf: overflow")

// Buffer holds one packet: [ head room | header | data ].
type Buffer struct {
	b      []byte
	size   int
	hdr    int // start of allocated header
	data   int // start of data
	datlen int
}

// New allocates a buffer holding at most size bytes of header plus data,
// with hdrSpace bytes of head room.
func New(size, hdrSpace int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	if hdrSpace < 0 {
		hdrSpace = 0
	}
	pb := &Buffer{b: make([]byte, hdrSpace+size), size: size}
	pb.Clear()
	return pb
}

// Clear drops header and data.
func (pb *Buffer) Clear() {
	pb.hdr = len(pb.b) - pb.size
	pb.data = pb.hdr
	pb.datlen = 0
}

// CopyFrom clears the buffer and copies p in as data.
func (pb *Buffer) CopyFrom(p []byte) error {
	pb.Clear()
	if len(p) > pb.size {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrOverflow, len(p), pb.size)
	}
	pb.datlen = copy(pb.b[pb.data:], p)
	return nil
}

// HdrAlloc extends the header by n bytes in front of what is already there.
// It reports false when the head room or the total size would be exceeded.
func (pb *Buffer) HdrAlloc(n int) bool {
	if n < 0 || pb.hdr-n < 0 || pb.TotalLen()+n > pb.size {
		return false
	}
	pb.hdr -= n
	return true
}

// HdrReduce strips n bytes from the front of the data, which is how a
// received header is removed before the payload goes up the stack. Any
// allocated header is dropped with them.
func (pb *Buffer) HdrReduce(n int) bool {
	if n < 0 || n > pb.datlen {
		return false
	}
	pb.data += n
	pb.datlen -= n
	pb.hdr = pb.data
	return true
}

// Hdr is the allocated header region, writable in place.
func (pb *Buffer) Hdr() []byte { return pb.b[pb.hdr:pb.data] }

// Data is the data region, writable in place.
func (pb *Buffer) Data() []byte { return pb.b[pb.data : pb.data+pb.datlen] }

func (pb *Buffer) DataLen() int { return pb.datlen }

func (pb *Buffer) HdrLen() int { return pb.data - pb.hdr }

// TotalLen is header plus data.
func (pb *Buffer) TotalLen() int { return pb.HdrLen() + pb.datlen }

// Bytes is header followed by data, the frame as it goes on air. It aliases
// the buffer.
func (pb *Buffer) Bytes() []byte { return pb.b[pb.hdr : pb.data+pb.datlen] }
