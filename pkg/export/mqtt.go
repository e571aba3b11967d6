package export

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"wsncollect/pkg/config"
)

// publishTimeout bounds how long one MQTT publish may wait for its ack.
const publishTimeout = 2 * time.Second

// mqttClient is the part of mqtt.Client used here.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes deliveries as JSON on <topic>/<source>.
type MQTT struct {
	client mqttClient
	topic  string
	qos    byte
}

// NewMQTT connects to the broker. A last-will message marks the sink offline
// on <topic>/status if the connection drops.
func NewMQTT(c config.MQTTExportConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetClientID(c.ClientID).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	opts.SetWill(c.Topic+"/status", "offline", 1, true)

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(5 * time.Second) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: timeout", c.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", c.Broker, err)
	}
	return &MQTT{client: client, topic: c.Topic, qos: c.QoS}, nil
}

func (m *MQTT) Export(ctx context.Context, d Delivery) error {
	msg, err := Marshal(d)
	if err != nil {
		return err
	}
	tok := m.client.Publish(m.topic+"/"+d.Source.String(), m.qos, false, msg)
	t := time.NewTimer(publishTimeout)
	defer t.Stop()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return fmt.Errorf("mqtt publish: no ack after %s", publishTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
