package can

import (
	"fmt"

	"go.miragespace.co/can/metrics"
	"go.miragespace.co/can/spec/can"

	"go.uber.org/zap"
)

func nodeNotFound(id can.NodeID) error {
	return fmt.Errorf("%w: %d", can.ErrNodeNotFound, id)
}

// Bootstrap creates the first node, caretaking the whole space.
func (o *Overlay) Bootstrap(name string) (can.NodeID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.nodes.Len() > 0 {
		return 0, can.ErrAlreadyBootstrapped
	}

	n := o.spawn(name, o.Space)
	o.Logger.Info("Bootstrapped overlay", zap.Uint64("node", n.id), zap.Object("zone", o.Space))
	return n.id, nil
}

// Spawn registers a fresh node bound to zone, without peers or content.
func (o *Overlay) Spawn(name string, zone can.Zone) (can.NodeID, error) {
	if err := zone.Validate(); err != nil {
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	return o.spawn(name, zone).id, nil
}

func (o *Overlay) spawn(name string, zone can.Zone) *node {
	n := newNode(o.nextID.Inc(), name, zone)
	o.nodes.Store(n.id, n)
	o.Logger.Debug("Spawned node", zap.Uint64("node", n.id), zap.String("name", name), zap.Object("zone", zone))
	return n
}

// AddPeer attaches joiner to the peer group of existing. Both must caretake
// equal zones. Every member of the group and joiner become mutual peers,
// joiner receives a copy of existing's catalogue, and the zone is split once
// existing has more than Capacity peers.
func (o *Overlay) AddPeer(existing, joiner can.NodeID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.addPeer(existing, joiner)
}

// Join spawns a node on via's zone and adds it as a peer of via.
func (o *Overlay) Join(via can.NodeID, name string) (can.NodeID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.join(via, name)
}

// JoinAt routes a new node to the lowest ID caretaker of p and joins there.
func (o *Overlay) JoinAt(p can.Point, name string) (can.NodeID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var via *node
	o.nodes.Range(func(_ uint64, n *node) bool {
		if n.zone.ContainsPoint(p) {
			via = n
			return false
		}
		return true
	})
	if via == nil {
		return 0, fmt.Errorf("%w: %s", can.ErrNoCaretaker, p)
	}
	return o.join(via.id, name)
}

func (o *Overlay) join(via can.NodeID, name string) (can.NodeID, error) {
	v, err := o.get(via)
	if err != nil {
		return 0, err
	}
	n := o.spawn(name, v.zone)
	if err := o.addPeer(v.id, n.id); err != nil {
		// a fresh node on the same zone cannot be rejected
		panic(fmt.Errorf("joining fresh node %d via %d: %w", n.id, v.id, err))
	}
	return n.id, nil
}

func (o *Overlay) addPeer(existingID, joinerID can.NodeID) error {
	existing, err := o.get(existingID)
	if err != nil {
		return err
	}
	joiner, err := o.get(joinerID)
	if err != nil {
		return err
	}
	if existing.id == joiner.id {
		return fmt.Errorf("%w: %d", can.ErrSelfJoin, existing.id)
	}
	if !existing.zone.Equal(joiner.zone) {
		return fmt.Errorf("%w: node %d caretakes %s, node %d caretakes %s",
			can.ErrZoneMismatch, existing.id, existing.zone, joiner.id, joiner.zone)
	}
	if joiner.peerCount > 0 {
		return fmt.Errorf("%w: node %d has %d peers", can.ErrJoinerHasPeers, joiner.id, joiner.peerCount)
	}

	for _, id := range existing.peers {
		peer, _ := o.nodes.Load(id)
		peer.addPeer(joiner.id)
		joiner.addPeer(peer.id)
	}
	existing.addPeer(joiner.id)
	joiner.addPeer(existing.id)

	existing.catalogue.Range(func(id string, ref can.Ref) bool {
		joiner.catalogue.Store(id, ref)
		return true
	})

	o.joins.Inc()
	metrics.Joins.Inc()

	o.Logger.Info("Node joined peer group",
		zap.Uint64("node", existing.id),
		zap.Uint64("joiner", joiner.id),
		zap.Int("peers", existing.peerCount),
		zap.Int("items", joiner.catalogue.Len()),
		zap.Object("zone", existing.zone),
	)

	if existing.peerCount == o.Capacity+1 {
		o.split(existing)
	}
	return nil
}

// RemovePeer drops peer from node's peer list. The reverse direction is left
// untouched; callers wanting a symmetric removal call it twice.
func (o *Overlay) RemovePeer(nodeID, peerID can.NodeID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	n, err := o.get(nodeID)
	if err != nil {
		return err
	}
	if err := n.removePeer(peerID); err != nil {
		return err
	}
	metrics.PeerRemovals.Inc()

	o.Logger.Debug("Removed peer", zap.Uint64("node", n.id), zap.Uint64("peer", peerID), zap.Int("peers", n.peerCount))
	return nil
}
