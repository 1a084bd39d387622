package can

import (
	"go.miragespace.co/can/spec/can"

	"go.uber.org/zap/zapcore"
)

// Misplaced is a catalogue entry whose hashed point lies outside the zone of
// the node holding it.
type Misplaced struct {
	Node  can.NodeID    `json:"node"`
	ID    can.ContentID `json:"id"`
	Point can.Point     `json:"point"`
	Zone  can.Zone      `json:"zone"`
}

func (m Misplaced) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("node", m.Node)
	enc.AddString("id", string(m.ID))
	enc.AddObject("point", m.Point)
	enc.AddObject("zone", m.Zone)
	return nil
}

// Audit lists every misplaced entry, ordered by node then content ID. Split
// only consults the splitter's catalogue, so entries a peer held alone
// survive on both sides and show up here.
func (o *Overlay) Audit() []Misplaced {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.audit()
}

func (o *Overlay) audit() []Misplaced {
	misplaced := make([]Misplaced, 0)
	o.nodes.Range(func(_ uint64, n *node) bool {
		n.catalogue.Range(func(key string, _ can.Ref) bool {
			id := can.ContentID(key)
			p := o.point(id)
			if !n.zone.ContainsPoint(p) {
				misplaced = append(misplaced, Misplaced{
					Node:  n.id,
					ID:    id,
					Point: p,
					Zone:  n.zone,
				})
			}
			return true
		})
		return true
	})
	return misplaced
}
