package can

import (
	"testing"

	"go.miragespace.co/can/spec/can"

	"github.com/stretchr/testify/require"
)

func TestJoinBuildsClique(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)
	ids := grow(t, o, 4)

	for _, id := range ids {
		info, err := o.Node(id)
		as.NoError(err)
		as.Equal(3, info.PeerCount)
		as.True(info.Zone.Equal(can.UnitZone))
	}
	assertSymmetric(t, o)
	as.EqualValues(3, o.Joins())
	as.EqualValues(0, o.Splits())

	adj, err := o.PeerGraph().AdjacencyMap()
	as.NoError(err)
	edges := 0
	for _, targets := range adj {
		edges += len(targets)
	}
	n := len(ids)
	as.Equal(n*(n-1)/2, edges/2)
}

func TestJoinPeerOrder(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 5, nil)
	grow(t, o, 4)

	n1, err := o.Node(1)
	as.NoError(err)
	as.Equal([]can.NodeID{2, 3, 4}, n1.Peers)

	n4, err := o.Node(4)
	as.NoError(err)
	as.Equal([]can.NodeID{2, 3, 1}, n4.Peers)
}

func TestJoinCopiesCatalogue(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)

	first, err := o.Bootstrap("node1")
	as.NoError(err)
	as.NoError(o.InsertLocalContent(first, "low", "ref-low"))
	as.NoError(o.InsertLocalContent(first, "high", "ref-high"))

	second, err := o.Join(first, "node2")
	as.NoError(err)

	info, err := o.Node(second)
	as.NoError(err)
	as.Equal(map[can.ContentID]can.Ref{"low": "ref-low", "high": "ref-high"}, info.Catalogue)
}

func TestFiveNodeSplit(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)

	first, err := o.Bootstrap("node1")
	as.NoError(err)
	as.NoError(o.InsertLocalContent(first, "low", "ref-low"))
	as.NoError(o.InsertLocalContent(first, "high", "ref-high"))

	for i := 0; i < 4; i++ {
		_, err := o.Join(first, "")
		as.NoError(err)
	}
	as.EqualValues(1, o.Splits())
	assertSymmetric(t, o)

	lower := can.Zone{X1: 0, Y1: 0, X2: 1, Y2: 0.5}
	upper := can.Zone{X1: 0, Y1: 0.5, X2: 1, Y2: 1}

	expected := map[can.NodeID]struct {
		zone  can.Zone
		peers []can.NodeID
		item  can.ContentID
	}{
		1: {upper, []can.NodeID{5}, "high"},
		2: {lower, []can.NodeID{3, 4}, "low"},
		3: {lower, []can.NodeID{2, 4}, "low"},
		4: {lower, []can.NodeID{2, 3}, "low"},
		5: {upper, []can.NodeID{1}, "high"},
	}
	for id, want := range expected {
		info, err := o.Node(id)
		as.NoError(err)
		as.True(want.zone.Equal(info.Zone), "node %d has zone %s", id, info.Zone)
		as.Equal(want.peers, info.Peers, "node %d", id)
		as.Len(info.Catalogue, 1, "node %d", id)
		as.Contains(info.Catalogue, want.item, "node %d", id)
	}

	// the halves are neighbours and merge back into the unit square
	as.True(lower.IsNeighbour(upper))
	merged, err := can.Merge(lower, upper)
	as.NoError(err)
	as.True(merged.Equal(can.UnitZone))

	as.Empty(o.Audit())
}

func TestSplitKeepsContentUnknownToSplitter(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)

	first, err := o.Bootstrap("node1")
	as.NoError(err)
	second, err := o.Join(first, "node2")
	as.NoError(err)

	// only node2 knows about it, node1 is the splitter
	as.NoError(o.InsertLocalContent(second, "high", "ref-high"))

	for i := 0; i < 3; i++ {
		_, err := o.Join(first, "")
		as.NoError(err)
	}
	as.EqualValues(1, o.Splits())

	info, err := o.Node(second)
	as.NoError(err)
	as.Contains(info.Catalogue, can.ContentID("high"))

	misplaced := o.Audit()
	as.Len(misplaced, 1)
	as.Equal(second, misplaced[0].Node)
	as.Equal(can.ContentID("high"), misplaced[0].ID)
}

func TestSplitSmallestCapacity(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 1, nil)
	grow(t, o, 2)

	// node1 reaches two peers only after the second join
	as.EqualValues(0, o.Splits())
	_, err := o.Join(1, "")
	as.NoError(err)
	as.EqualValues(1, o.Splits())
	assertSymmetric(t, o)

	n1, err := o.Node(1)
	as.NoError(err)
	as.Empty(n1.Peers)
	as.Len(o.Zones(), 2)
}

func TestAddPeerGuards(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)

	first, err := o.Bootstrap("node1")
	as.NoError(err)
	other, err := o.Spawn("other", can.Zone{X1: 0, Y1: 0, X2: 0.5, Y2: 0.5})
	as.NoError(err)

	err = o.AddPeer(first, other)
	as.ErrorIs(err, can.ErrZoneMismatch)

	err = o.AddPeer(first, first)
	as.ErrorIs(err, can.ErrSelfJoin)

	err = o.AddPeer(first, 99)
	as.ErrorIs(err, can.ErrNodeNotFound)

	_, err = o.Join(99, "")
	as.ErrorIs(err, can.ErrNodeNotFound)

	second, err := o.Join(first, "node2")
	as.NoError(err)
	third, err := o.Spawn("node3", can.UnitZone)
	as.NoError(err)
	err = o.AddPeer(third, second)
	as.ErrorIs(err, can.ErrJoinerHasPeers)

	// failed calls leave nothing behind
	n1, err := o.Node(first)
	as.NoError(err)
	as.Equal([]can.NodeID{second}, n1.Peers)
	n3, err := o.Node(third)
	as.NoError(err)
	as.Empty(n3.Peers)
	as.EqualValues(1, o.Joins())
}

func TestJoinAt(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)
	grow(t, o, 5)

	id, err := o.JoinAt(can.Point{X: 0.1, Y: 0.1}, "lower")
	as.NoError(err)

	info, err := o.Node(id)
	as.NoError(err)
	as.True(info.Zone.Equal(can.Zone{X1: 0, Y1: 0, X2: 1, Y2: 0.5}))
	as.Equal([]can.NodeID{3, 4, 2}, info.Peers)

	_, err = o.JoinAt(can.Point{X: 2, Y: 2}, "nowhere")
	as.ErrorIs(err, can.ErrNoCaretaker)
}

func TestRemovePeerOneDirection(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)
	grow(t, o, 2)

	as.NoError(o.RemovePeer(1, 2))

	n1, err := o.Node(1)
	as.NoError(err)
	as.Empty(n1.Peers)
	as.Equal(0, n1.PeerCount)

	n2, err := o.Node(2)
	as.NoError(err)
	as.Equal([]can.NodeID{1}, n2.Peers)

	err = o.RemovePeer(1, 2)
	as.ErrorIs(err, can.ErrPeerNotFound)
	err = o.RemovePeer(7, 2)
	as.ErrorIs(err, can.ErrNodeNotFound)
}
