package scenario

import (
	"context"
	"testing"
	"time"

	canImpl "go.miragespace.co/can/can"
	"go.miragespace.co/can/hash"
	"go.miragespace.co/can/journal"
	"go.miragespace.co/can/kv/memory"
	"go.miragespace.co/can/spec/can"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func overlayFor(t *testing.T, s *Scenario) *canImpl.Overlay {
	hasher, err := hash.New(s.Settings.Hash, s.Settings.Seed)
	require.NoError(t, err)
	o, err := canImpl.New(canImpl.Config{
		Logger:     zaptest.NewLogger(t),
		Capacity:   s.Settings.Capacity,
		Space:      s.Settings.Space,
		Hasher:     hasher,
		Store:      memory.New(),
		MaxPayload: 1024,
	})
	require.NoError(t, err)
	return o
}

func TestFiveNodes(t *testing.T) {
	as := require.New(t)

	s, err := NewScenario("testdata/five_nodes.yaml")
	as.NoError(err)
	as.Equal(hash.Legacy, s.Settings.Hash)

	o := overlayFor(t, s)
	r := NewRunner(zaptest.NewLogger(t), o)
	as.NoError(r.Run(context.Background(), s))

	as.Equal(7, o.Len())
	// the second split comes from the two extra joins through node2
	as.EqualValues(2, o.Splits())
	as.Len(r.Names(), 7)
	as.Equal("node1", r.Names()[1])
	as.Empty(o.Audit())
}

func TestFiveNodesThroughJournal(t *testing.T) {
	as := require.New(t)

	s, err := NewScenario("testdata/five_nodes.yaml")
	as.NoError(err)

	dir := t.TempDir()
	store := memory.New()
	cfg := journal.Config{
		Logger:        zaptest.NewLogger(t),
		DataDir:       dir,
		Settings:      s.Settings,
		Store:         store,
		FlushInterval: time.Millisecond * 50,
	}
	j, err := journal.Open(cfg)
	as.NoError(err)
	go j.Start()

	r := NewRunner(zaptest.NewLogger(t), j)
	as.NoError(r.Run(context.Background(), s))
	expected := j.Overlay().Nodes()
	j.Stop()

	j, err = journal.Replay(cfg)
	as.NoError(err)
	as.Equal(expected, j.Overlay().Nodes())

	_, payload, err := j.Overlay().Fetch(context.Background(), "1")
	as.NoError(err)
	as.Equal([]byte("hello"), payload)
}

func TestUnexpectedState(t *testing.T) {
	as := require.New(t)

	s, err := Parse([]byte(`
version: 1
steps:
  - op: bootstrap
    name: a
  - op: join
    via: a
    name: b
  - op: check
    node: b
    peers: [c]
`))
	as.NoError(err)

	o := overlayFor(t, s)
	err = NewRunner(zaptest.NewLogger(t), o).Run(context.Background(), s)
	as.ErrorIs(err, ErrUnexpected)
	as.Contains(err.Error(), "step 3 (check)")
}

func TestExpectedErrorMissing(t *testing.T) {
	as := require.New(t)

	s, err := Parse([]byte(`
version: 1
steps:
  - op: bootstrap
    name: a
  - op: join
    via: a
    name: b
    error: "can/membership: node cannot join itself"
`))
	as.NoError(err)

	err = NewRunner(zaptest.NewLogger(t), overlayFor(t, s)).Run(context.Background(), s)
	as.ErrorIs(err, ErrUnexpected)
}

func TestUnknownNodeReference(t *testing.T) {
	as := require.New(t)

	s, err := Parse([]byte(`
version: 1
steps:
  - op: bootstrap
  - op: join
    via: nobody
    error: "can: node is not part of the overlay"
  - op: join
    via: "#1"
    count: 3
`))
	as.NoError(err)

	o := overlayFor(t, s)
	r := NewRunner(zaptest.NewLogger(t), o)
	as.NoError(r.Run(context.Background(), s))
	as.Equal(4, o.Len())

	// generated names are unique
	seen := make(map[string]bool)
	for _, name := range r.Names() {
		as.False(seen[name])
		seen[name] = true
		as.NotEmpty(name)
	}
}

func TestParseErrors(t *testing.T) {
	tables := []struct {
		name string
		doc  string
	}{
		{"version", "version: 2\n"},
		{"op", "version: 1\nsteps:\n  - op: teleport\n"},
		{"spawn zone", "version: 1\nsteps:\n  - op: spawn\n"},
		{"join via", "version: 1\nsteps:\n  - op: join\n"},
		{"error", "version: 1\nsteps:\n  - op: bootstrap\n    error: nope\n"},
		{"count with name", "version: 1\nsteps:\n  - op: join\n    via: a\n    name: b\n    count: 2\n"},
		{"capacity", "version: 1\nsettings:\n  capacity: 0\n"},
		{"hash", "version: 1\nsettings:\n  capacity: 3\n  space: {x1: 0, y1: 0, x2: 1, y2: 1}\n  hash: md5\n"},
	}
	for _, tc := range tables {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
		})
	}
}

func TestDefaultsApplied(t *testing.T) {
	as := require.New(t)

	s, err := Parse([]byte("version: 1\n"))
	as.NoError(err)
	as.Equal(journal.DefaultSettings(), s.Settings)
	as.True(s.Settings.Space.Equal(can.UnitZone))
}

func TestMissingFile(t *testing.T) {
	_, err := NewScenario("testdata/does-not-exist.yaml")
	require.Error(t, err)
}
