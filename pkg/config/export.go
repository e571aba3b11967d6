package config

// ExportConfig selects where the sink publishes delivered readings.
type ExportConfig struct {
	// Log writes every delivery to the logger.
	Log   bool              `mapstructure:"log"`
	Redis RedisExportConfig `mapstructure:"redis"`
	NATS  NATSExportConfig  `mapstructure:"nats"`
	MQTT  MQTTExportConfig  `mapstructure:"mqtt"`
}

// RedisExportConfig publishes readings on a Redis pub/sub channel.
type RedisExportConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	Channel  string `mapstructure:"channel"`
}

// NATSExportConfig publishes readings on a NATS subject.
type NATSExportConfig struct {
	Enable  bool   `mapstructure:"enable"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// MQTTExportConfig publishes readings on <topic>/<source> at a broker.
type MQTTExportConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

// MetricsConfig exposes protocol counters for Prometheus.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Listen string `mapstructure:"listen"`
	Path   string `mapstructure:"path"`
}
