package sqlite3

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"

	canImpl "go.miragespace.co/can/can"
	"go.miragespace.co/can/hash"
	"go.miragespace.co/can/spec/can"
	"go.miragespace.co/can/util"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testGetKV(t *testing.T) *SqliteKV {
	t.Helper()

	as := require.New(t)
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))

	kv, err := New(Config{
		Logger:  logger,
		DataDir: t.TempDir(),
	})
	as.NoError(err)

	t.Cleanup(func() {
		kv.Close()
	})

	return kv
}

func TestConfigValidate(t *testing.T) {
	as := require.New(t)

	_, err := New(Config{DataDir: t.TempDir()})
	as.Error(err)

	_, err = New(Config{Logger: zaptest.NewLogger(t)})
	as.Error(err)
}

func TestPutGetDelete(t *testing.T) {
	as := require.New(t)
	kv := testGetKV(t)
	ctx := context.Background()

	payload := make([]byte, 4096)
	rand.Read(payload)

	as.NoError(kv.Put(ctx, "photo-1", payload))

	got, err := kv.Get(ctx, "photo-1")
	as.NoError(err)
	as.Equal(payload, got)

	as.NoError(kv.Put(ctx, "photo-1", []byte("replaced")))
	got, err = kv.Get(ctx, "photo-1")
	as.NoError(err)
	as.Equal([]byte("replaced"), got)

	as.NoError(kv.Delete(ctx, "photo-1"))
	got, err = kv.Get(ctx, "photo-1")
	as.NoError(err)
	as.Nil(got)
}

func TestChecksumHighBit(t *testing.T) {
	as := require.New(t)
	kv := testGetKV(t)
	ctx := context.Background()

	payload := []byte("ref-28")
	as.NotZero(xxh3.Hash(payload)&(1<<63), "payload must hash with the top bit set")

	as.NoError(kv.Put(ctx, "photo-28", payload))

	got, err := kv.Get(ctx, "photo-28")
	as.NoError(err)
	as.Equal(payload, got)
}

func TestOverlayPublishFetch(t *testing.T) {
	as := require.New(t)
	kv := testGetKV(t)
	ctx := context.Background()

	o, err := canImpl.New(canImpl.Config{
		Logger:     zaptest.NewLogger(t),
		Capacity:   canImpl.DefaultCapacity,
		Space:      can.UnitZone,
		Hasher:     util.Must(hash.New(hash.Default, 0)),
		Store:      kv,
		MaxPayload: 1024,
	})
	as.NoError(err)

	first, err := o.Bootstrap("node1")
	as.NoError(err)
	for i := 0; i < 4; i++ {
		_, err := o.Join(first, "")
		as.NoError(err)
	}

	for i := 0; i < 32; i++ {
		id := can.ContentID(fmt.Sprintf("%d", i))
		ref := can.Ref(fmt.Sprintf("photo-%d", i))
		payload := []byte(fmt.Sprintf("ref-%d", i))

		caretakers, err := o.Publish(ctx, id, ref, payload)
		as.NoError(err)
		as.NotEmpty(caretakers)

		gotRef, got, err := o.Fetch(ctx, id)
		as.NoError(err)
		as.Equal(ref, gotRef)
		as.Equal(payload, got)
	}

	refs, err := kv.Refs(ctx)
	as.NoError(err)
	as.Len(refs, 32)
}

func TestEmptyPayload(t *testing.T) {
	as := require.New(t)
	kv := testGetKV(t)
	ctx := context.Background()

	as.NoError(kv.Put(ctx, "empty", nil))

	got, err := kv.Get(ctx, "empty")
	as.NoError(err)
	as.NotNil(got)
	as.Len(got, 0)
}

func TestChecksumMismatch(t *testing.T) {
	as := require.New(t)
	kv := testGetKV(t)
	ctx := context.Background()

	as.NoError(kv.Put(ctx, "tampered", []byte("original")))
	as.NoError(kv.writer.Model(&PayloadEntry{Ref: "tampered"}).Update("payload", []byte("changed")).Error)

	_, err := kv.Get(ctx, "tampered")
	as.ErrorIs(err, ErrChecksumMismatch)
}

func TestRefsOrdered(t *testing.T) {
	as := require.New(t)
	kv := testGetKV(t)
	ctx := context.Background()

	for _, ref := range []can.Ref{"c", "a", "b"} {
		as.NoError(kv.Put(ctx, ref, []byte(ref)))
	}

	refs, err := kv.Refs(ctx)
	as.NoError(err)
	as.Equal([]can.Ref{"a", "b", "c"}, refs)
}

func TestConcurrentPut(t *testing.T) {
	as := require.New(t)
	kv := testGetKV(t)
	ctx := context.Background()

	num := 32
	errs := make(chan error, num)
	var wg sync.WaitGroup
	for i := 0; i < num; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := can.Ref(fmt.Sprintf("ref-%02d", i))
			errs <- kv.Put(ctx, ref, []byte(ref))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		as.NoError(err)
	}

	refs, err := kv.Refs(ctx)
	as.NoError(err)
	as.Len(refs, num)
}

func TestInitializeOnce(t *testing.T) {
	as := require.New(t)

	first := Initialize(t.TempDir(), 512)
	as.Equal(first, Initialize("", 0))
}
