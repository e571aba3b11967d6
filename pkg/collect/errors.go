package collect

import "errors"

var (
	// ErrNotConnected is returned by Send while the node has no parent.
	// Retrying immediately is pointless; wait for the next beacon round.
	ErrNotConnected = errors.New("collect: not connected")
	// ErrNoHeaderSpace is returned by Send when the packet buffer cannot
	// take the data header in front of the payload.
	ErrNoHeaderSpace = errors.New("collect: no header space")
	// ErrPayloadTooLarge is returned by Send when the payload alone exceeds
	// the packet buffer.
	ErrPayloadTooLarge = errors.New("collect: payload too large")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("collect: closed")

	// ErrBeaconSize marks a broadcast whose length is not BeaconSize.
	ErrBeaconSize = errors.New("collect: beacon of wrong size")
	// ErrShortData marks a unicast shorter than DataHeaderSize.
	ErrShortData = errors.New("collect: data packet too short")
)
