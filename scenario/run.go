package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.miragespace.co/can/spec/can"
	"go.miragespace.co/can/util"

	"github.com/sethvargo/go-diceware/diceware"
	"go.uber.org/zap"
)

// Target is what a scenario mutates, either an overlay or a journal in front
// of one.
type Target interface {
	Bootstrap(name string) (can.NodeID, error)
	Spawn(name string, zone can.Zone) (can.NodeID, error)
	Join(via can.NodeID, name string) (can.NodeID, error)
	JoinAt(p can.Point, name string) (can.NodeID, error)
	AddPeer(existing, joiner can.NodeID) error
	RemovePeer(node, peer can.NodeID) error
	InsertLocalContent(node can.NodeID, id can.ContentID, ref can.Ref) error
	DeleteLocalContent(node can.NodeID, id can.ContentID) error
	Place(id can.ContentID, ref can.Ref) ([]can.NodeID, error)
	Publish(ctx context.Context, id can.ContentID, ref can.Ref, payload []byte) ([]can.NodeID, error)
	Node(id can.NodeID) (can.NodeInfo, error)
}

var ErrUnexpected = errors.New("scenario: step did not behave as expected")

var generator = util.Must(diceware.NewGenerator(nil))

type Runner struct {
	logger *zap.Logger
	target Target
	ids    map[string]can.NodeID
	names  map[can.NodeID]string
}

func NewRunner(logger *zap.Logger, target Target) *Runner {
	return &Runner{
		logger: logger,
		target: target,
		ids:    make(map[string]can.NodeID),
		names:  make(map[can.NodeID]string),
	}
}

// Names maps every node created so far to its scenario name.
func (r *Runner) Names() map[can.NodeID]string {
	names := make(map[can.NodeID]string, len(r.names))
	for id, name := range r.names {
		names[id] = name
	}
	return names
}

func (r *Runner) Run(ctx context.Context, s *Scenario) error {
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runStep(ctx, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, st Step) error {
	times := 1
	if (st.Op == OpJoin || st.Op == OpJoinAt) && st.Count > 1 {
		times = st.Count
	}
	for k := 0; k < times; k++ {
		err := r.apply(ctx, st)
		if st.Error == "" {
			if err != nil {
				return err
			}
			continue
		}
		expected := can.ErrorMapper(errors.New(st.Error))
		if !errors.Is(err, expected) {
			return fmt.Errorf("%w: expecting error %q, got %v", ErrUnexpected, st.Error, err)
		}
		r.logger.Debug("Step failed as expected", zap.String("op", string(st.Op)), zap.Error(err))
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, st Step) error {
	switch st.Op {
	case OpBootstrap:
		return r.create(st.Name, func(name string) (can.NodeID, error) {
			return r.target.Bootstrap(name)
		})

	case OpSpawn:
		return r.create(st.Name, func(name string) (can.NodeID, error) {
			return r.target.Spawn(name, *st.Zone)
		})

	case OpJoin:
		via, err := r.resolve(st.Via)
		if err != nil {
			return err
		}
		return r.create(st.Name, func(name string) (can.NodeID, error) {
			return r.target.Join(via, name)
		})

	case OpJoinAt:
		return r.create(st.Name, func(name string) (can.NodeID, error) {
			return r.target.JoinAt(*st.Point, name)
		})

	case OpAddPeer, OpRemovePeer:
		node, err := r.resolve(st.Node)
		if err != nil {
			return err
		}
		peer, err := r.resolve(st.Peer)
		if err != nil {
			return err
		}
		if st.Op == OpAddPeer {
			return r.target.AddPeer(node, peer)
		}
		return r.target.RemovePeer(node, peer)

	case OpInsert:
		node, err := r.resolve(st.Node)
		if err != nil {
			return err
		}
		return r.target.InsertLocalContent(node, can.ContentID(st.Content), can.Ref(st.Ref))

	case OpDelete:
		node, err := r.resolve(st.Node)
		if err != nil {
			return err
		}
		return r.target.DeleteLocalContent(node, can.ContentID(st.Content))

	case OpPlace:
		ids, err := r.target.Place(can.ContentID(st.Content), can.Ref(st.Ref))
		if err == nil {
			r.logger.Info("Placed content", zap.String("content", st.Content), zap.Strings("caretakers", r.nameAll(ids)))
		}
		return err

	case OpPublish:
		ids, err := r.target.Publish(ctx, can.ContentID(st.Content), can.Ref(st.Ref), []byte(st.Payload))
		if err == nil {
			r.logger.Info("Published content", zap.String("content", st.Content), zap.Strings("caretakers", r.nameAll(ids)))
		}
		return err

	case OpCheck:
		return r.check(st)

	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
}

// create runs fn with the given name, or a fresh diceware name when empty,
// and remembers the resulting node.
func (r *Runner) create(name string, fn func(name string) (can.NodeID, error)) error {
	if name == "" {
		name = r.generateName()
	}
	if _, ok := r.ids[name]; ok {
		return fmt.Errorf("duplicate node name %q", name)
	}
	id, err := fn(name)
	if err != nil {
		return err
	}
	r.ids[name] = id
	r.names[id] = name
	r.logger.Debug("Created node", zap.String("name", name), zap.Uint64("id", id))
	return nil
}

func (r *Runner) generateName() string {
	for {
		name := strings.Join(generator.MustGenerate(2), "-")
		if _, ok := r.ids[name]; !ok {
			return name
		}
	}
}

// resolve accepts a scenario name or a "#<id>" reference. Unknown names map
// to an ID no node can have, so the target reports the failure.
func (r *Runner) resolve(ref string) (can.NodeID, error) {
	if strings.HasPrefix(ref, "#") {
		var id can.NodeID
		if _, err := fmt.Sscanf(ref, "#%d", &id); err != nil {
			return 0, fmt.Errorf("invalid node reference %q: %w", ref, err)
		}
		return id, nil
	}
	id, ok := r.ids[ref]
	if !ok {
		return 0, nil
	}
	return id, nil
}

func (r *Runner) nameAll(ids []can.NodeID) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		if name, ok := r.names[id]; ok {
			names[i] = name
		} else {
			names[i] = fmt.Sprintf("#%d", id)
		}
	}
	return names
}

func (r *Runner) check(st Step) error {
	id, err := r.resolve(st.Node)
	if err != nil {
		return err
	}
	info, err := r.target.Node(id)
	if err != nil {
		return err
	}
	if st.Zone != nil && !st.Zone.Equal(info.Zone) {
		return fmt.Errorf("%w: %s caretakes %s, expecting %s", ErrUnexpected, st.Node, info.Zone, *st.Zone)
	}
	if st.Peers != nil {
		got := r.nameAll(info.Peers)
		want := append([]string(nil), st.Peers...)
		sort.Strings(got)
		sort.Strings(want)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			return fmt.Errorf("%w: %s has peers %v, expecting %v", ErrUnexpected, st.Node, got, want)
		}
	}
	if st.Items != nil {
		got := make([]string, 0, len(info.Catalogue))
		for cid := range info.Catalogue {
			got = append(got, string(cid))
		}
		want := append([]string(nil), st.Items...)
		sort.Strings(got)
		sort.Strings(want)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			return fmt.Errorf("%w: %s holds %v, expecting %v", ErrUnexpected, st.Node, got, want)
		}
	}
	return nil
}
