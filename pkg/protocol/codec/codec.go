// Package codec provides the payload encodings a node can put inside a
// collection data packet. Each codec has a one-byte ID so the sink can decode
// payloads from nodes configured with different formats.
package codec

import "fmt"

// ID is the one-byte format tag written ahead of an encoded payload.
type ID byte

const (
	IDCBOR  ID = 1
	IDJSON  ID = 2
	IDProto ID = 3
)

// Codec defines a simple interface for marshaling typed messages.
// Implementations should be deterministic and safe for cross-node exchange.
type Codec interface {
	ID() ID
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps format names and IDs to codecs.
type Registry struct {
	byName map[string]Codec
	byID   map[ID]Codec
}

// NewRegistry constructs a registry preloaded with CBOR, JSON and Protobuf.
func NewRegistry() (*Registry, error) {
	r := &Registry{byName: make(map[string]Codec), byID: make(map[ID]Codec)}
	cb, err := CBOR()
	if err != nil {
		return nil, fmt.Errorf("cbor codec: %w", err)
	}
	r.Register(cb)
	r.Register(JSON())
	r.Register(Proto())
	return r, nil
}

// Register adds a codec, replacing any with the same name or ID.
func (r *Registry) Register(c Codec) {
	r.byName[c.Name()] = c
	r.byID[c.ID()] = c
}

// ByName returns a codec by config name ("cbor", "json", "proto"), or nil.
func (r *Registry) ByName(name string) Codec { return r.byName[name] }

// ByID returns a codec by wire tag, or nil.
func (r *Registry) ByID(id ID) Codec { return r.byID[id] }
