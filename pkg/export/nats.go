package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"

	"wsncollect/pkg/config"
)

// natsConn is the part of *nats.Conn used here.
type natsConn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// NATS publishes deliveries on a subject, with provenance in message headers.
type NATS struct {
	nc      natsConn
	subject string
}

// NewNATS connects to the configured server.
func NewNATS(c config.NATSExportConfig) (*NATS, error) {
	nc, err := nats.Connect(c.URL, nats.Name("wsncollect-sink"))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", c.URL, err)
	}
	return &NATS{nc: nc, subject: c.Subject}, nil
}

func (n *NATS) Export(_ context.Context, d Delivery) error {
	data, err := Marshal(d)
	if err != nil {
		return err
	}
	m := nats.NewMsg(n.subject)
	m.Header.Set("Device-ID", d.Source.String())
	m.Header.Set("Seq", strconv.FormatUint(uint64(d.Reading.Seq), 10))
	m.Header.Set("Hops", strconv.Itoa(int(d.Hops)))
	m.Header.Set("Content-Type", "application/json")
	m.Data = data
	if err := n.nc.PublishMsg(m); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (n *NATS) Close() error { return n.nc.Drain() }
