package can

import (
	"time"

	"go.miragespace.co/can/metrics"
	"go.miragespace.co/can/spec/can"

	"github.com/zhangyunhao116/skipset"
	"go.uber.org/zap"
)

// split halves the zone of s and its peer group. The first (Capacity+1)/2+1
// peers, by insertion order, take the first half; the remaining peers and s
// take the second. Content is partitioned using s's catalogue only, so an
// entry held by a peer but unknown to s is never pruned. See Audit.
func (o *Overlay) split(s *node) {
	start := time.Now()
	defer metrics.SplitDuration.UpdateDuration(start)

	before := s.zone
	zoneA, zoneB := s.zone.Split()

	cut := (o.Capacity+1)/2 + 1
	if cut > len(s.peers) {
		cut = len(s.peers)
	}
	groupA := skipset.NewUint64()
	groupB := skipset.NewUint64()
	for i, id := range s.peers {
		if i < cut {
			groupA.Add(id)
		} else {
			groupB.Add(id)
		}
	}
	groupB.Add(s.id)

	keepA := make([]can.ContentID, 0)
	keepB := make([]can.ContentID, 0)
	s.catalogue.Range(func(key string, _ can.Ref) bool {
		id := can.ContentID(key)
		if zoneA.ContainsPoint(o.point(id)) {
			keepA = append(keepA, id)
		} else {
			keepB = append(keepB, id)
		}
		return true
	})

	o.reassign(groupA, zoneA, groupB, keepB)
	o.reassign(groupB, zoneB, groupA, keepA)

	o.splits.Inc()
	metrics.Splits.Inc()

	o.Logger.Info("Zone split",
		zap.Uint64("splitter", s.id),
		zap.Object("zone", before),
		zap.Object("zoneA", zoneA),
		zap.Object("zoneB", zoneB),
		zap.Uint64s("groupA", members(groupA)),
		zap.Uint64s("groupB", members(groupB)),
		zap.Int("keepA", len(keepA)),
		zap.Int("keepB", len(keepB)),
	)
}

// reassign rebinds every member of group to zone, drops every member of
// others from its peers and prunes drop from its catalogue. Entries missing
// from a member are skipped so the split always runs to completion.
func (o *Overlay) reassign(group *skipset.Uint64Set, zone can.Zone, others *skipset.Uint64Set, drop []can.ContentID) {
	group.Range(func(id uint64) bool {
		n, ok := o.nodes.Load(id)
		if !ok {
			o.Logger.Warn("Split group references unknown node", zap.Uint64("node", id))
			return true
		}
		n.zone = zone

		others.Range(func(other uint64) bool {
			if err := n.removePeer(other); err != nil {
				o.Logger.Warn("Split could not separate peers", zap.Uint64("node", n.id), zap.Error(err))
			}
			return true
		})

		for _, cid := range drop {
			if err := n.delete(cid); err != nil {
				o.Logger.Debug("Skipping prune of absent content", zap.Uint64("node", n.id), zap.String("content", string(cid)))
				continue
			}
			metrics.ContentPrunes.Inc()
		}
		return true
	})
}

func members(s *skipset.Uint64Set) []uint64 {
	ids := make([]uint64, 0, s.Len())
	s.Range(func(id uint64) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}
