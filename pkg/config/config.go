// Package config provides YAML-based configuration loading for wsncollect.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"wsncollect/pkg/linkaddr"
)

// Config is the root application configuration.
type Config struct {
	// AppName optional logical name of the node/application
	AppName string `mapstructure:"app_name"`

	// Node holds identity and role in the collection tree
	Node NodeConfig `mapstructure:"node"`

	// Collect tunes the collection protocol
	Collect CollectConfig `mapstructure:"collect"`

	// Radio selects and configures the emulated radio
	Radio RadioConfig `mapstructure:"radio"`

	// App drives the demo traffic generator and payload format
	App AppConfig `mapstructure:"app"`

	// Export configures where the sink publishes delivered readings
	Export ExportConfig `mapstructure:"export"`

	// Metrics serves protocol counters over HTTP for Prometheus
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		AppName: "wsncollect-node",
		Node: NodeConfig{
			ChannelBase: 0xAA,
		},
		Collect: CollectConfig{
			RSSIThreshold:   -95,
			BeaconInterval:  60 * time.Second,
			StartupDelay:    time.Second,
			ForwardDelayMax: time.Second,
			MaxNeighbors:    32,
			PacketSize:      128,
			HeaderSpace:     48,
		},
		Radio: RadioConfig{
			Kind:   "udp",
			Listen: ":7770",
		},
		App: AppConfig{
			SendInterval:  30 * time.Second,
			PayloadFormat: "cbor",
		},
		Export: ExportConfig{
			Redis: RedisExportConfig{Channel: "wsncollect.readings"},
			NATS:  NATSExportConfig{URL: "nats://127.0.0.1:4222", Subject: "wsncollect.readings"},
			MQTT:  MQTTExportConfig{Broker: "tcp://127.0.0.1:1883", ClientID: "wsncollect-sink", Topic: "wsncollect/readings", QoS: 1},
		},
		Metrics: MetricsConfig{Listen: ":9470", Path: "/metrics"},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/wsncollect.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// A .env file in the working directory is loaded first when present.
// Environment variables use the prefix WSNCOLLECT and `.`/`-` are replaced with `_`.
// Example: WSNCOLLECT_NODE_IS_SINK=true
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WSNCOLLECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("app_name", cfg.AppName)
	v.SetDefault("node.address", cfg.Node.Address)
	v.SetDefault("node.is_sink", cfg.Node.IsSink)
	v.SetDefault("node.channel_base", cfg.Node.ChannelBase)
	v.SetDefault("collect.rssi_threshold", cfg.Collect.RSSIThreshold)
	v.SetDefault("collect.beacon_interval", cfg.Collect.BeaconInterval)
	v.SetDefault("collect.startup_delay", cfg.Collect.StartupDelay)
	v.SetDefault("collect.forward_delay_max", cfg.Collect.ForwardDelayMax)
	v.SetDefault("collect.max_neighbors", cfg.Collect.MaxNeighbors)
	v.SetDefault("collect.packet_size", cfg.Collect.PacketSize)
	v.SetDefault("collect.header_space", cfg.Collect.HeaderSpace)
	v.SetDefault("radio.kind", cfg.Radio.Kind)
	v.SetDefault("radio.listen", cfg.Radio.Listen)
	v.SetDefault("radio.neighbors", cfg.Radio.Neighbors)
	v.SetDefault("app.send_interval", cfg.App.SendInterval)
	v.SetDefault("app.payload_format", cfg.App.PayloadFormat)
	v.SetDefault("export.log", cfg.Export.Log)
	v.SetDefault("export.redis.enable", cfg.Export.Redis.Enable)
	v.SetDefault("export.redis.addr", cfg.Export.Redis.Addr)
	v.SetDefault("export.redis.password", cfg.Export.Redis.Password)
	v.SetDefault("export.redis.channel", cfg.Export.Redis.Channel)
	v.SetDefault("export.nats.enable", cfg.Export.NATS.Enable)
	v.SetDefault("export.nats.url", cfg.Export.NATS.URL)
	v.SetDefault("export.nats.subject", cfg.Export.NATS.Subject)
	v.SetDefault("export.mqtt.enable", cfg.Export.MQTT.Enable)
	v.SetDefault("export.mqtt.broker", cfg.Export.MQTT.Broker)
	v.SetDefault("export.mqtt.client_id", cfg.Export.MQTT.ClientID)
	v.SetDefault("export.mqtt.topic", cfg.Export.MQTT.Topic)
	v.SetDefault("export.mqtt.qos", cfg.Export.MQTT.QoS)
	v.SetDefault("metrics.enable", cfg.Metrics.Enable)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	// Choose config file
	if path == "" {
		// Allow override via env var
		if envPath := os.Getenv("WSNCOLLECT_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `wsncollect`
		v.SetConfigName("wsncollect")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".wsncollect"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}
	if s := strings.TrimSpace(c.Node.Address); s != "" {
		if _, err := linkaddr.Parse(s); err != nil {
			return fmt.Errorf("invalid node.address: %w", err)
		}
	}
	if c.Collect.BeaconInterval <= 0 || c.Collect.StartupDelay <= 0 {
		return errors.New("collect.beacon_interval and collect.startup_delay must be positive")
	}
	if c.Collect.ForwardDelayMax < 0 {
		return errors.New("collect.forward_delay_max must not be negative")
	}
	// 0 would be read as "use the default" by the protocol; real thresholds are negative dBm
	if c.Collect.RSSIThreshold >= 0 {
		return fmt.Errorf("collect.rssi_threshold must be negative dBm, got %d", c.Collect.RSSIThreshold)
	}
	if c.Collect.PacketSize <= 0 || c.Collect.PacketSize > 1024 {
		return fmt.Errorf("invalid collect.packet_size: %d", c.Collect.PacketSize)
	}
	c.Radio.Kind = strings.ToLower(strings.TrimSpace(c.Radio.Kind))
	if c.Radio.Kind != "udp" {
		return fmt.Errorf("unsupported radio.kind: %q", c.Radio.Kind)
	}
	for i, n := range c.Radio.Neighbors {
		if _, err := linkaddr.Parse(n.LinkAddr); err != nil {
			return fmt.Errorf("radio.neighbors[%d]: %w", i, err)
		}
		if strings.TrimSpace(n.Address) == "" {
			return fmt.Errorf("radio.neighbors[%d]: empty address", i)
		}
		if n.Loss < 0 || n.Loss >= 1 {
			return fmt.Errorf("radio.neighbors[%d]: loss must be in [0,1)", i)
		}
	}
	c.App.PayloadFormat = strings.ToLower(strings.TrimSpace(c.App.PayloadFormat))
	switch c.App.PayloadFormat {
	case "cbor", "json", "proto":
	default:
		return fmt.Errorf("invalid app.payload_format: %q", c.App.PayloadFormat)
	}
	if c.Export.Redis.Enable && strings.TrimSpace(c.Export.Redis.Addr) == "" {
		return errors.New("export.redis.addr is required when redis export is enabled")
	}
	if c.Export.NATS.Enable && (c.Export.NATS.URL == "" || c.Export.NATS.Subject == "") {
		return errors.New("export.nats.url and export.nats.subject are required when nats export is enabled")
	}
	if c.Export.MQTT.Enable {
		if c.Export.MQTT.Broker == "" || c.Export.MQTT.Topic == "" {
			return errors.New("export.mqtt.broker and export.mqtt.topic are required when mqtt export is enabled")
		}
		if c.Export.MQTT.QoS > 2 {
			return fmt.Errorf("invalid export.mqtt.qos: %d", c.Export.MQTT.QoS)
		}
	}
	if c.Metrics.Enable {
		if strings.TrimSpace(c.Metrics.Listen) == "" {
			return errors.New("metrics.listen is required when metrics are enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			c.Metrics.Path = "/" + c.Metrics.Path
		}
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
