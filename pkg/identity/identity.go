// Package identity resolves a node's link-layer address.
package identity

import (
	"fmt"
	"hash/fnv"
	"os"
	"strings"

	"go.uber.org/zap"

	"wsncollect/pkg/config"
	"wsncollect/pkg/linkaddr"
)

// Resolve returns the configured link address, or derives a stable one from
// the hostname when node.address is empty.
func Resolve(c config.NodeConfig) (linkaddr.Addr, error) {
	if s := strings.TrimSpace(c.Address); s != "" {
		a, err := linkaddr.Parse(s)
		if err != nil {
			return linkaddr.Addr{}, fmt.Errorf("node.address: %w", err)
		}
		if a == linkaddr.Broadcast {
			return linkaddr.Addr{}, fmt.Errorf("node.address: %s is the broadcast address", a)
		}
		return a, nil
	}
	host, err := os.Hostname()
	if err != nil {
		return linkaddr.Addr{}, fmt.Errorf("derive address: %w", err)
	}
	a := FromName(host)
	zap.L().Info("derived link address from hostname (persist to node.address)",
		zap.String("host", host), zap.Stringer("addr", a))
	return a, nil
}

// FromName hashes name into a link address, skipping the all-zero and
// broadcast addresses.
func FromName(name string) linkaddr.Addr {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	sum := h.Sum32()
	v := uint16(sum>>16) ^ uint16(sum)
	switch v {
	case 0x0000:
		v = 0x0001
	case 0xFFFF:
		v = 0xFFFE
	}
	return linkaddr.FromUint16(v)
}
