package collect

import (
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"wsncollect/pkg/linkaddr"
)

// Neighbor is what was last heard from a beaconing node. The table is
// informational; routing decisions come from beacons alone.
type Neighbor struct {
	Addr      linkaddr.Addr `json:"addr"`
	Seqn      uint16        `json:"seqn"`
	Metric    uint16        `json:"metric"`
	RSSI      int16         `json:"rssi"`
	LastHeard time.Time     `json:"last_heard"`
	Heard     uint64        `json:"heard"`
}

// neighborTable keeps at most max entries, evicting the least recently heard.
type neighborTable struct {
	cache *lru.Cache
}

func newNeighborTable(max int) (*neighborTable, error) {
	c, err := lru.New(max)
	if err != nil {
		return nil, err
	}
	return &neighborTable{cache: c}, nil
}

// heard records a beacon from a neighbor; Get marks it most recently used.
func (t *neighborTable) heard(from linkaddr.Addr, b Beacon, rssi int16, now time.Time) {
	var n *Neighbor
	if v, ok := t.cache.Get(from); ok {
		n = v.(*Neighbor)
	} else {
		n = &Neighbor{Addr: from}
		t.cache.Add(from, n)
	}
	n.Seqn = b.Seqn
	n.Metric = b.Metric
	n.RSSI = rssi
	n.LastHeard = now
	n.Heard++
}

// list returns copies, most recently heard first.
func (t *neighborTable) list() []Neighbor {
	keys := t.cache.Keys()
	out := make([]Neighbor, 0, len(keys))
	for _, k := range keys {
		if v, ok := t.cache.Peek(k); ok {
			out = append(out, *v.(*Neighbor))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastHeard.Equal(out[j].LastHeard) {
			return out[i].LastHeard.After(out[j].LastHeard)
		}
		return out[i].Addr.Uint16() < out[j].Addr.Uint16()
	})
	return out
}
