package can

import (
	"fmt"

	"go.miragespace.co/can/spec/can"

	"github.com/zhangyunhao116/skipmap"
)

// node is only ever touched while holding the overlay lock. Peers are kept
// in insertion order since split partitions them by position.
type node struct {
	id        can.NodeID
	name      string
	zone      can.Zone
	peers     []can.NodeID
	peerCount int
	catalogue *skipmap.StringMap[can.Ref]
}

func newNode(id can.NodeID, name string, zone can.Zone) *node {
	return &node{
		id:        id,
		name:      name,
		zone:      zone,
		peers:     make([]can.NodeID, 0),
		catalogue: skipmap.NewString[can.Ref](),
	}
}

func (n *node) hasPeer(id can.NodeID) bool {
	for _, p := range n.peers {
		if p == id {
			return true
		}
	}
	return false
}

func (n *node) addPeer(id can.NodeID) {
	n.peers = append(n.peers, id)
	n.peerCount++
}

func (n *node) removePeer(id can.NodeID) error {
	for i, p := range n.peers {
		if p == id {
			n.peers = append(n.peers[:i], n.peers[i+1:]...)
			n.peerCount--
			return nil
		}
	}
	return fmt.Errorf("%w: node %d does not list %d", can.ErrPeerNotFound, n.id, id)
}

func (n *node) insert(id can.ContentID, ref can.Ref) {
	n.catalogue.Store(string(id), ref)
}

func (n *node) delete(id can.ContentID) error {
	if _, ok := n.catalogue.LoadAndDelete(string(id)); !ok {
		return fmt.Errorf("%w: %q at node %d", can.ErrContentNotFound, id, n.id)
	}
	return nil
}

func (n *node) info() can.NodeInfo {
	peers := make([]can.NodeID, len(n.peers))
	copy(peers, n.peers)
	catalogue := make(map[can.ContentID]can.Ref, n.catalogue.Len())
	n.catalogue.Range(func(id string, ref can.Ref) bool {
		catalogue[can.ContentID(id)] = ref
		return true
	})
	return can.NodeInfo{
		ID:        n.id,
		Name:      n.name,
		Zone:      n.zone,
		Peers:     peers,
		PeerCount: n.peerCount,
		Catalogue: catalogue,
	}
}
