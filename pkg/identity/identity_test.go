package identity

import (
	"testing"

	"wsncollect/pkg/config"
	"wsncollect/pkg/linkaddr"
)

func TestResolveConfigured(t *testing.T) {
	a, err := Resolve(config.NodeConfig{Address: "02:00"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a != linkaddr.MustParse("02:00") {
		t.Fatalf("addr = %s", a)
	}
}

func TestResolveRejectsBadAddresses(t *testing.T) {
	for _, s := range []string{"zz", "ff:ff"} {
		if _, err := Resolve(config.NodeConfig{Address: s}); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestResolveDerivesFromHostname(t *testing.T) {
	a, err := Resolve(config.NodeConfig{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a == linkaddr.Broadcast || a == (linkaddr.Addr{}) {
		t.Fatalf("derived reserved address %s", a)
	}
}

func TestFromNameStable(t *testing.T) {
	if FromName("mote-7") != FromName("mote-7") {
		t.Fatalf("not stable")
	}
	if FromName("mote-7") == FromName("mote-8") {
		t.Fatalf("collision on adjacent names")
	}
}
