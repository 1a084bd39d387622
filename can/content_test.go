package can

import (
	"context"
	"testing"

	"go.miragespace.co/can/spec/can"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInsertLocalContentUpserts(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)
	first, err := o.Bootstrap("node1")
	as.NoError(err)

	as.NoError(o.InsertLocalContent(first, "low", "a"))
	as.NoError(o.InsertLocalContent(first, "low", "b"))

	info, err := o.Node(first)
	as.NoError(err)
	as.Equal(map[can.ContentID]can.Ref{"low": "b"}, info.Catalogue)

	err = o.InsertLocalContent(9, "low", "a")
	as.ErrorIs(err, can.ErrNodeNotFound)
}

func TestDeleteLocalContent(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)
	first, err := o.Bootstrap("node1")
	as.NoError(err)
	as.NoError(o.InsertLocalContent(first, "low", "a"))

	err = o.DeleteLocalContent(first, "missing")
	as.ErrorIs(err, can.ErrContentNotFound)

	info, err := o.Node(first)
	as.NoError(err)
	as.Equal(map[can.ContentID]can.Ref{"low": "a"}, info.Catalogue)

	as.NoError(o.DeleteLocalContent(first, "low"))
	info, err = o.Node(first)
	as.NoError(err)
	as.Empty(info.Catalogue)
}

func TestPlaceOnSharedEdge(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)
	grow(t, o, 5)

	as.Equal([]can.NodeID{2, 3, 4}, o.Locate("low"))
	as.Equal([]can.NodeID{1, 5}, o.Locate("high"))
	as.Equal([]can.NodeID{1, 2, 3, 4, 5}, o.Locate("edge"))

	ids, err := o.Place("edge", "ref-edge")
	as.NoError(err)
	as.Len(ids, 5)
	as.Empty(o.Audit())
}

func TestPublishFetch(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)
	grow(t, o, 5)
	ctx := context.Background()

	ids, err := o.Publish(ctx, "high", "ref-high", []byte("payload"))
	as.NoError(err)
	as.Equal([]can.NodeID{1, 5}, ids)

	ref, err := o.Lookup("high")
	as.NoError(err)
	as.Equal(can.Ref("ref-high"), ref)

	ref, payload, err := o.Fetch(ctx, "high")
	as.NoError(err)
	as.Equal(can.Ref("ref-high"), ref)
	as.Equal([]byte("payload"), payload)

	_, _, err = o.Fetch(ctx, "low")
	as.ErrorIs(err, can.ErrContentNotFound)

	_, err = o.Publish(ctx, "low", "ref-low", make([]byte, 2048))
	as.ErrorIs(err, can.ErrPayloadTooLarge)
	_, err = o.Lookup("low")
	as.ErrorIs(err, can.ErrContentNotFound)
}

func TestPublishWithoutNodes(t *testing.T) {
	as := require.New(t)
	o := newTestOverlay(t, 3, nil)

	_, err := o.Publish(context.Background(), "low", "ref-low", []byte("x"))
	as.ErrorIs(err, can.ErrNoCaretaker)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Put(ctx context.Context, ref can.Ref, payload []byte) error {
	args := m.Called(ctx, ref, payload)
	return args.Error(0)
}

func (m *mockStore) Get(ctx context.Context, ref can.Ref) ([]byte, error) {
	args := m.Called(ctx, ref)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, ref can.Ref) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *mockStore) Refs(ctx context.Context) ([]can.Ref, error) {
	args := m.Called(ctx)
	return args.Get(0).([]can.Ref), args.Error(1)
}

var _ can.ContentStore = (*mockStore)(nil)

func TestPublishStoreFailure(t *testing.T) {
	as := require.New(t)

	store := new(mockStore)
	defer store.AssertExpectations(t)

	failure := context.DeadlineExceeded
	store.On("Put", mock.Anything, can.Ref("ref-low"), []byte("x")).Return(failure)
	store.On("Get", mock.Anything, can.Ref("ref-low")).Return(nil, nil)

	conf := Config{
		Logger:     zaptest.NewLogger(t),
		Capacity:   3,
		Space:      can.UnitZone,
		Hasher:     pinned(map[can.ContentID]can.Point{"low": lowPoint}),
		Store:      store,
		MaxPayload: 16,
	}
	o, err := New(conf)
	as.NoError(err)
	first, err := o.Bootstrap("node1")
	as.NoError(err)

	_, err = o.Publish(context.Background(), "low", "ref-low", []byte("x"))
	as.ErrorIs(err, failure)
	as.True(can.ErrorIsRetryable(err))

	info, err := o.Node(first)
	as.NoError(err)
	as.Empty(info.Catalogue)

	// catalogue says it exists, store does not
	as.NoError(o.InsertLocalContent(first, "low", "ref-low"))
	_, _, err = o.Fetch(context.Background(), "low")
	as.ErrorIs(err, can.ErrContentNotFound)
}
