package can

import (
	"sync"

	"go.miragespace.co/can/spec/can"

	"github.com/zhangyunhao116/skipmap"
	"go.uber.org/atomic"
)

// Overlay is the registry of every node sharing one coordinate space. Nodes
// refer to each other by ID only. All mutations run under a single lock, so
// a join and the split it may trigger are observed as one step.
type Overlay struct {
	Config

	mu     sync.Mutex
	nodes  *skipmap.Uint64Map[*node]
	nextID *atomic.Uint64
	joins  *atomic.Uint64
	splits *atomic.Uint64
}

func New(conf Config) (*Overlay, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &Overlay{
		Config: conf,
		nodes:  skipmap.NewUint64[*node](),
		nextID: atomic.NewUint64(0),
		joins:  atomic.NewUint64(0),
		splits: atomic.NewUint64(0),
	}, nil
}

func (o *Overlay) get(id can.NodeID) (*node, error) {
	n, ok := o.nodes.Load(id)
	if !ok {
		return nil, nodeNotFound(id)
	}
	return n, nil
}

// point is where the content should live in this overlay's space
func (o *Overlay) point(id can.ContentID) can.Point {
	return o.Space.Scale(o.Hasher.Point(id))
}

func (o *Overlay) Len() int {
	return o.nodes.Len()
}

func (o *Overlay) Joins() uint64 {
	return o.joins.Load()
}

func (o *Overlay) Splits() uint64 {
	return o.splits.Load()
}

func (o *Overlay) Node(id can.NodeID) (can.NodeInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n, err := o.get(id)
	if err != nil {
		return can.NodeInfo{}, err
	}
	return n.info(), nil
}

// Nodes lists every node ordered by ID.
func (o *Overlay) Nodes() []can.NodeInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.snapshot()
}

func (o *Overlay) snapshot() []can.NodeInfo {
	infos := make([]can.NodeInfo, 0, o.nodes.Len())
	o.nodes.Range(func(_ uint64, n *node) bool {
		infos = append(infos, n.info())
		return true
	})
	return infos
}

// Zones groups nodes by the zone they caretake, in order of the lowest
// caretaker ID.
func (o *Overlay) Zones() []can.ZoneInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	return groupZones(o.snapshot())
}

func groupZones(nodes []can.NodeInfo) []can.ZoneInfo {
	zones := make([]can.ZoneInfo, 0)
	index := make(map[can.Zone]int)
	for _, n := range nodes {
		i, ok := index[n.Zone]
		if !ok {
			i = len(zones)
			index[n.Zone] = i
			zones = append(zones, can.ZoneInfo{Zone: n.Zone})
		}
		zones[i].Caretakers = append(zones[i].Caretakers, n.ID)
	}
	return zones
}
