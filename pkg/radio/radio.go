package radio

import (
	"errors"
	"fmt"

	"wsncollect/pkg/linkaddr"
)

// Channel identifies a logical channel on the shared medium.
type Channel uint16

var (
	// ErrClosed is returned by Send on a closed primitive.
	ErrClosed = errors.New("radio: closed")
	// ErrUnknownNeighbor is returned by unicast when the destination is not reachable.
	ErrUnknownNeighbor = errors.New("radio: unknown neighbor")
	// ErrChannelInUse is returned when a channel is already open on a link.
	ErrChannelInUse = errors.New("radio: channel in use")
	// ErrFrameTooLarge is returned when a payload exceeds the medium's frame size.
	ErrFrameTooLarge = errors.New("radio: frame too large")
)

// MaxFrame is the largest payload any implementation must carry.
const MaxFrame = 128

// BroadcastHandler receives a broadcast frame together with the sender's
// address and the signal strength of this reception in dBm. The payload is
// only valid during the call.
type BroadcastHandler func(payload []byte, from linkaddr.Addr, rssi int16)

// UnicastHandler receives a unicast frame addressed to this node. The payload
// is only valid during the call.
type UnicastHandler func(payload []byte, from linkaddr.Addr)

// Broadcast sends to every neighbor in range. Delivery is best effort.
type Broadcast interface {
	Channel() Channel
	Send(payload []byte) error
	Close() error
}

// Unicast sends to a single neighbor. A nil error means the frame was handed
// to the medium, not that it arrived.
type Unicast interface {
	Channel() Channel
	Send(payload []byte, to linkaddr.Addr) error
	Close() error
}

// Link is one node's attachment to the medium.
type Link interface {
	Addr() linkaddr.Addr
	OpenBroadcast(ch Channel, h BroadcastHandler) (Broadcast, error)
	OpenUnicast(ch Channel, h UnicastHandler) (Unicast, error)
}

// CheckFrame validates a payload length against MaxFrame.
func CheckFrame(p []byte) error {
	if len(p) > MaxFrame {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(p), MaxFrame)
	}
	return nil
}
