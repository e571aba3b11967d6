// Package export publishes readings delivered at the sink to the outside world.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wsncollect/pkg/linkaddr"
	"wsncollect/pkg/sensor"
)

// Delivery is one data packet handed to the sink's application.
type Delivery struct {
	Source     linkaddr.Addr
	Hops       uint8
	Format     string
	Reading    sensor.Reading
	ReceivedAt time.Time
}

// Exporter publishes deliveries. Export may block on I/O.
type Exporter interface {
	Export(ctx context.Context, d Delivery) error
	Close() error
}

type record struct {
	Source     string    `json:"source"`
	Hops       uint8     `json:"hops"`
	Format     string    `json:"format"`
	Seq        uint32    `json:"seq"`
	Value      float64   `json:"value"`
	TakenAt    time.Time `json:"taken_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// Marshal renders d as the JSON document published by network exporters.
func Marshal(d Delivery) ([]byte, error) {
	return json.Marshal(record{
		Source:     d.Source.String(),
		Hops:       d.Hops,
		Format:     d.Format,
		Seq:        d.Reading.Seq,
		Value:      d.Reading.Value,
		TakenAt:    d.Reading.TakenAt.UTC(),
		ReceivedAt: d.ReceivedAt.UTC(),
	})
}

// Multi fans a delivery out to every exporter and joins their errors.
type Multi []Exporter

func (m Multi) Export(ctx context.Context, d Delivery) error {
	var errs []error
	for _, e := range m {
		if err := e.Export(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, e := range m {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
