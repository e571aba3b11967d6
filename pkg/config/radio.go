package config

// RadioConfig describes the emulated radio.
// Example YAML:
// radio:
//   kind: udp
//   listen: ":7771"
//   neighbors:
//     - link_addr: "00:01"
//       address: "10.0.0.2:7770"
//       rssi: -62
//     - link_addr: "00:03"
//       address: "10.0.0.4:7770"
//       rssi: -91
//       loss: 0.2
type RadioConfig struct {
	Kind      string           `mapstructure:"kind"`
	Listen    string           `mapstructure:"listen"`
	Neighbors []NeighborConfig `mapstructure:"neighbors"`
}

// NeighborConfig is one node in radio range.
type NeighborConfig struct {
	LinkAddr string  `mapstructure:"link_addr"`
	Address  string  `mapstructure:"address"`
	RSSI     int16   `mapstructure:"rssi"`
	Loss     float64 `mapstructure:"loss"`
}
