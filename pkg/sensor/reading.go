// Package sensor defines the demo readings nodes send up the collection tree
// and their self-describing payload encoding.
package sensor

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"wsncollect/pkg/protocol/codec"
)

var (
	ErrEmptyPayload  = errors.New("empty payload")
	ErrUnknownFormat = errors.New("unknown payload format")
)

// Reading is one sample taken by a node.
type Reading struct {
	Seq     uint32    `json:"seq"`
	Value   float64   `json:"value"`
	TakenAt time.Time `json:"taken_at"`
}

// wire is the compact form used by the CBOR and JSON codecs.
type wire struct {
	Seq     uint32  `json:"seq" cbor:"1,keyasint"`
	Value   float64 `json:"v" cbor:"2,keyasint"`
	TakenAt int64   `json:"t" cbor:"3,keyasint"`
}

// Encode writes the codec's one-byte ID followed by the encoded reading.
func Encode(c codec.Codec, r Reading) ([]byte, error) {
	var v any = wire{Seq: r.Seq, Value: r.Value, TakenAt: r.TakenAt.UnixMilli()}
	if c.ID() == codec.IDProto {
		s, err := structpb.NewStruct(map[string]any{
			"seq": float64(r.Seq),
			"v":   r.Value,
			"t":   float64(r.TakenAt.UnixMilli()),
		})
		if err != nil {
			return nil, err
		}
		v = s
	}
	body, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode reading: %w", err)
	}
	return append([]byte{byte(c.ID())}, body...), nil
}

// Decode reads a payload produced by Encode, picking the codec from its tag.
func Decode(reg *codec.Registry, p []byte) (Reading, codec.Codec, error) {
	if len(p) == 0 {
		return Reading{}, nil, ErrEmptyPayload
	}
	c := reg.ByID(codec.ID(p[0]))
	if c == nil {
		return Reading{}, nil, fmt.Errorf("%w: 0x%02x", ErrUnknownFormat, p[0])
	}
	body := p[1:]
	if c.ID() == codec.IDProto {
		var s structpb.Struct
		if err := c.Unmarshal(body, &s); err != nil {
			return Reading{}, c, fmt.Errorf("decode reading: %w", err)
		}
		f := s.GetFields()
		return Reading{
			Seq:     uint32(f["seq"].GetNumberValue()),
			Value:   f["v"].GetNumberValue(),
			TakenAt: time.UnixMilli(int64(f["t"].GetNumberValue())),
		}, c, nil
	}
	var w wire
	if err := c.Unmarshal(body, &w); err != nil {
		return Reading{}, c, fmt.Errorf("decode reading: %w", err)
	}
	return Reading{Seq: w.Seq, Value: w.Value, TakenAt: time.UnixMilli(w.TakenAt)}, c, nil
}

// Sampler produces a slow random walk, standing in for a temperature sensor.
type Sampler struct {
	seq   uint32
	value float64
	rng   *rand.Rand
}

// NewSampler starts the walk at base.
func NewSampler(base float64, rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{value: base, rng: rng}
}

// Next returns the following reading stamped with now.
func (s *Sampler) Next(now time.Time) Reading {
	s.seq++
	s.value += (s.rng.Float64() - 0.5) / 2
	return Reading{Seq: s.seq, Value: s.value, TakenAt: now}
}
