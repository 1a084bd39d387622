package can

import (
	"fmt"
	"net/http"

	"go.miragespace.co/can/spec/can"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

func formatNode(n can.NodeInfo) string {
	return fmt.Sprintf("%s/%d", n.Name, n.ID)
}

var zoneColors = []string{
	"lightblue", "palegreen", "khaki", "lightpink", "lightsalmon", "plum", "lightcyan", "wheat",
}

// PeerGraph returns the undirected peer graph. Vertices are keyed by
// "name/id" and filled by zone, so every peer group is one colored clique.
func (o *Overlay) PeerGraph() graph.Graph[string, can.NodeInfo] {
	o.mu.Lock()
	nodes := o.snapshot()
	o.mu.Unlock()

	zoneIndex := make(map[can.Zone]int)
	for i, z := range groupZones(nodes) {
		zoneIndex[z.Zone] = i
	}

	g := graph.New(formatNode)
	byID := make(map[can.NodeID]can.NodeInfo, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		g.AddVertex(n,
			graph.VertexAttribute("shape", "box"),
			graph.VertexAttribute("style", "filled"),
			graph.VertexAttribute("fillcolor", zoneColors[zoneIndex[n.Zone]%len(zoneColors)]),
			graph.VertexAttribute("tooltip", n.Zone.String()),
		)
	}
	for _, n := range nodes {
		for _, id := range n.Peers {
			// each undirected edge is added once, from its lower end
			peer, ok := byID[id]
			if !ok || id < n.ID {
				continue
			}
			g.AddEdge(formatNode(n), formatNode(peer))
		}
	}
	return g
}

func (o *Overlay) GraphHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/plain")
	if err := draw.DOT(o.PeerGraph(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
