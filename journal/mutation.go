package journal

import (
	"context"
	"fmt"
	"io/fs"

	"go.miragespace.co/can/spec/can"

	"go.uber.org/zap"
)

type MutationType uint8

const (
	MutationBootstrap MutationType = iota + 1
	MutationSpawn
	MutationJoin
	MutationJoinAt
	MutationAddPeer
	MutationRemovePeer
	MutationInsert
	MutationDelete
	MutationPlace
)

var mutationNames = map[MutationType]string{
	MutationBootstrap:  "BOOTSTRAP",
	MutationSpawn:      "SPAWN",
	MutationJoin:       "JOIN",
	MutationJoinAt:     "JOIN_AT",
	MutationAddPeer:    "ADD_PEER",
	MutationRemovePeer: "REMOVE_PEER",
	MutationInsert:     "INSERT",
	MutationDelete:     "DELETE",
	MutationPlace:      "PLACE",
}

func (t MutationType) String() string {
	if name, ok := mutationNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

// Mutation is one logged overlay operation. Payloads of published content
// are never logged, only the resulting placement.
type Mutation struct {
	Type    MutationType `cbor:"1,keyasint"`
	Name    string       `cbor:"2,keyasint,omitempty"`
	Zone    can.Zone     `cbor:"3,keyasint,omitempty"`
	Point   can.Point    `cbor:"4,keyasint,omitempty"`
	Node    can.NodeID   `cbor:"5,keyasint,omitempty"`
	Peer    can.NodeID   `cbor:"6,keyasint,omitempty"`
	Content string       `cbor:"7,keyasint,omitempty"`
	Ref     string       `cbor:"8,keyasint,omitempty"`
}

// handleMutation applies mut to the overlay. A non nil payload turns a
// placement into a publish, storing the payload first.
func (j *Journal) handleMutation(ctx context.Context, mut *Mutation, payload []byte) (res mutationResult) {
	j.logger.Debug("Handling mutation", zap.Stringer("mutation", mut.Type))

	o := j.overlay
	switch mut.Type {
	case MutationBootstrap:
		res.id, res.err = o.Bootstrap(mut.Name)

	case MutationSpawn:
		res.id, res.err = o.Spawn(mut.Name, mut.Zone)

	case MutationJoin:
		res.id, res.err = o.Join(mut.Node, mut.Name)

	case MutationJoinAt:
		res.id, res.err = o.JoinAt(mut.Point, mut.Name)

	case MutationAddPeer:
		res.err = o.AddPeer(mut.Node, mut.Peer)

	case MutationRemovePeer:
		res.err = o.RemovePeer(mut.Node, mut.Peer)

	case MutationInsert:
		res.err = o.InsertLocalContent(mut.Node, can.ContentID(mut.Content), can.Ref(mut.Ref))

	case MutationDelete:
		res.err = o.DeleteLocalContent(mut.Node, can.ContentID(mut.Content))

	case MutationPlace:
		if payload != nil {
			res.ids, res.err = o.Publish(ctx, can.ContentID(mut.Content), can.Ref(mut.Ref), payload)
		} else {
			res.ids, res.err = o.Place(can.ContentID(mut.Content), can.Ref(mut.Ref))
		}

	default:
		res.err = fmt.Errorf("unknown mutation type: %s", mut.Type)
	}
	return
}

func (j *Journal) submit(ctx context.Context, mut *Mutation, payload []byte) mutationResult {
	j.writeBarrier.RLock()
	defer j.writeBarrier.RUnlock()
	if j.closed.Load() {
		return mutationResult{err: fs.ErrClosed}
	}

	req := &mutationReq{
		ctx:     ctx,
		mut:     mut,
		payload: payload,
		res:     make(chan mutationResult),
	}
	j.queue <- req
	return <-req.res
}

func (j *Journal) Bootstrap(name string) (can.NodeID, error) {
	res := j.submit(context.Background(), &Mutation{
		Type: MutationBootstrap,
		Name: name,
	}, nil)
	return res.id, res.err
}

func (j *Journal) Spawn(name string, zone can.Zone) (can.NodeID, error) {
	res := j.submit(context.Background(), &Mutation{
		Type: MutationSpawn,
		Name: name,
		Zone: zone,
	}, nil)
	return res.id, res.err
}

func (j *Journal) Join(via can.NodeID, name string) (can.NodeID, error) {
	res := j.submit(context.Background(), &Mutation{
		Type: MutationJoin,
		Node: via,
		Name: name,
	}, nil)
	return res.id, res.err
}

func (j *Journal) JoinAt(p can.Point, name string) (can.NodeID, error) {
	res := j.submit(context.Background(), &Mutation{
		Type:  MutationJoinAt,
		Point: p,
		Name:  name,
	}, nil)
	return res.id, res.err
}

func (j *Journal) AddPeer(existing, joiner can.NodeID) error {
	return j.submit(context.Background(), &Mutation{
		Type: MutationAddPeer,
		Node: existing,
		Peer: joiner,
	}, nil).err
}

func (j *Journal) RemovePeer(node, peer can.NodeID) error {
	return j.submit(context.Background(), &Mutation{
		Type: MutationRemovePeer,
		Node: node,
		Peer: peer,
	}, nil).err
}

func (j *Journal) InsertLocalContent(node can.NodeID, id can.ContentID, ref can.Ref) error {
	return j.submit(context.Background(), &Mutation{
		Type:    MutationInsert,
		Node:    node,
		Content: string(id),
		Ref:     string(ref),
	}, nil).err
}

func (j *Journal) DeleteLocalContent(node can.NodeID, id can.ContentID) error {
	return j.submit(context.Background(), &Mutation{
		Type:    MutationDelete,
		Node:    node,
		Content: string(id),
	}, nil).err
}

func (j *Journal) Place(id can.ContentID, ref can.Ref) ([]can.NodeID, error) {
	res := j.submit(context.Background(), &Mutation{
		Type:    MutationPlace,
		Content: string(id),
		Ref:     string(ref),
	}, nil)
	return res.ids, res.err
}

// Publish stores payload and logs the placement. The payload itself lives in
// the content store, so replaying needs the same store to serve it.
func (j *Journal) Publish(ctx context.Context, id can.ContentID, ref can.Ref, payload []byte) ([]can.NodeID, error) {
	if payload == nil {
		payload = []byte{}
	}
	res := j.submit(ctx, &Mutation{
		Type:    MutationPlace,
		Content: string(id),
		Ref:     string(ref),
	}, payload)
	return res.ids, res.err
}

func (j *Journal) Node(id can.NodeID) (can.NodeInfo, error) {
	return j.overlay.Node(id)
}
