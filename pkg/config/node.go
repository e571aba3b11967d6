package config

import "time"

// NodeConfig describes this node's place in the network.
type NodeConfig struct {
	// Address is the link address ("01:02"); empty derives one from the hostname.
	Address string `mapstructure:"address"`
	// IsSink makes this node the root of the collection tree.
	IsSink bool `mapstructure:"is_sink"`
	// ChannelBase is the beacon channel; data uses ChannelBase+1.
	ChannelBase uint16 `mapstructure:"channel_base"`
}

// CollectConfig tunes the collection protocol.
type CollectConfig struct {
	RSSIThreshold   int16         `mapstructure:"rssi_threshold"`
	BeaconInterval  time.Duration `mapstructure:"beacon_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	ForwardDelayMax time.Duration `mapstructure:"forward_delay_max"`
	MaxNeighbors    int           `mapstructure:"max_neighbors"`
	PacketSize      int           `mapstructure:"packet_size"`
	HeaderSpace     int           `mapstructure:"header_space"`
}

// AppConfig drives the demo application on top of the collection tree.
type AppConfig struct {
	// SendInterval is the mean period between readings sent by non-sink nodes; 0 disables sending.
	SendInterval time.Duration `mapstructure:"send_interval"`
	// PayloadFormat: cbor, json or proto
	PayloadFormat string `mapstructure:"payload_format"`
}
