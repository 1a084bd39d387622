package can

import (
	"context"
	"fmt"

	"go.miragespace.co/can/metrics"
	"go.miragespace.co/can/spec/can"

	"go.uber.org/zap"
)

// InsertLocalContent records id -> ref in node's catalogue, replacing any
// previous ref. No placement check is made.
func (o *Overlay) InsertLocalContent(nodeID can.NodeID, id can.ContentID, ref can.Ref) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	n, err := o.get(nodeID)
	if err != nil {
		return err
	}
	n.insert(id, ref)
	metrics.ContentInserts.Inc()
	return nil
}

func (o *Overlay) DeleteLocalContent(nodeID can.NodeID, id can.ContentID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	n, err := o.get(nodeID)
	if err != nil {
		return err
	}
	if err := n.delete(id); err != nil {
		return err
	}
	metrics.ContentDeletes.Inc()
	return nil
}

// Locate returns every node whose zone contains the hashed point of id. A
// point on a shared edge is caretaken by both zones.
func (o *Overlay) Locate(id can.ContentID) []can.NodeID {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.caretakers(o.point(id))
}

func (o *Overlay) caretakers(p can.Point) []can.NodeID {
	ids := make([]can.NodeID, 0)
	o.nodes.Range(func(id uint64, n *node) bool {
		if n.zone.ContainsPoint(p) {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// Place inserts id -> ref at every caretaker of id's hashed point.
func (o *Overlay) Place(id can.ContentID, ref can.Ref) ([]can.NodeID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.place(id, ref)
}

func (o *Overlay) place(id can.ContentID, ref can.Ref) ([]can.NodeID, error) {
	p := o.point(id)
	ids := o.caretakers(p)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s for %q", can.ErrNoCaretaker, p, id)
	}
	for _, nid := range ids {
		n, _ := o.nodes.Load(nid)
		n.insert(id, ref)
		metrics.ContentInserts.Inc()
	}
	o.Logger.Debug("Placed content",
		zap.String("content", string(id)),
		zap.String("ref", string(ref)),
		zap.Object("point", p),
		zap.Uint64s("caretakers", ids),
	)
	return ids, nil
}

// Publish stores payload under ref and places id at its caretakers.
func (o *Overlay) Publish(ctx context.Context, id can.ContentID, ref can.Ref, payload []byte) ([]can.NodeID, error) {
	if int64(len(payload)) > o.MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", can.ErrPayloadTooLarge, len(payload), o.MaxPayload)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.caretakers(o.point(id))) == 0 {
		return nil, fmt.Errorf("%w: %q", can.ErrNoCaretaker, id)
	}
	if err := o.Store.Put(ctx, ref, payload); err != nil {
		return nil, fmt.Errorf("storing payload of %q: %w", id, err)
	}
	return o.place(id, ref)
}

// Lookup returns the ref recorded for id by the first caretaker that holds it.
func (o *Overlay) Lookup(id can.ContentID) (can.Ref, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.lookup(id)
}

func (o *Overlay) lookup(id can.ContentID) (can.Ref, error) {
	for _, nid := range o.caretakers(o.point(id)) {
		n, _ := o.nodes.Load(nid)
		if ref, ok := n.catalogue.Load(string(id)); ok {
			return ref, nil
		}
	}
	return "", fmt.Errorf("%w: %q has no caretaker holding it", can.ErrContentNotFound, id)
}

// Fetch resolves id through its caretakers and reads the payload.
func (o *Overlay) Fetch(ctx context.Context, id can.ContentID) (can.Ref, []byte, error) {
	o.mu.Lock()
	ref, err := o.lookup(id)
	o.mu.Unlock()
	if err != nil {
		return "", nil, err
	}

	payload, err := o.Store.Get(ctx, ref)
	if err != nil {
		return "", nil, fmt.Errorf("reading payload of %q: %w", id, err)
	}
	if payload == nil {
		return "", nil, fmt.Errorf("%w: payload of %q is missing from the store", can.ErrContentNotFound, id)
	}
	return ref, payload, nil
}
