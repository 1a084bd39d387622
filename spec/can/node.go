package can

// NodeID is the stable registry key of a node. IDs are never reused.
type NodeID = uint64

// NodeInfo is a point in time copy of a node's state.
type NodeInfo struct {
	ID        NodeID            `json:"id"`
	Name      string            `json:"name"`
	Zone      Zone              `json:"zone"`
	Peers     []NodeID          `json:"peers"`
	PeerCount int               `json:"peer_count"`
	Catalogue map[ContentID]Ref `json:"catalogue"`
}

// ZoneInfo groups the caretakers of one zone.
type ZoneInfo struct {
	Zone       Zone     `json:"zone"`
	Caretakers []NodeID `json:"caretakers"`
}

func (n NodeInfo) HasPeer(id NodeID) bool {
	for _, p := range n.Peers {
		if p == id {
			return true
		}
	}
	return false
}
