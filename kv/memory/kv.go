package memory

import (
	"context"

	"go.miragespace.co/can/spec/can"

	"github.com/zhangyunhao116/skipmap"
)

// MemoryKV keeps payloads in process memory, keyed by ref.
type MemoryKV struct {
	s *skipmap.StringMap[[]byte]
}

var _ can.ContentStore = (*MemoryKV)(nil)

func New() *MemoryKV {
	return &MemoryKV{
		s: skipmap.NewString[[]byte](),
	}
}

func (m *MemoryKV) Put(_ context.Context, ref can.Ref, payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	m.s.Store(string(ref), buf)
	return nil
}

func (m *MemoryKV) Get(_ context.Context, ref can.Ref) ([]byte, error) {
	v, ok := m.s.Load(string(ref))
	if !ok {
		return nil, nil
	}
	buf := make([]byte, len(v))
	copy(buf, v)
	return buf, nil
}

func (m *MemoryKV) Delete(_ context.Context, ref can.Ref) error {
	m.s.Delete(string(ref))
	return nil
}

// Refs lists stored refs in ascending order.
func (m *MemoryKV) Refs(_ context.Context) ([]can.Ref, error) {
	refs := make([]can.Ref, 0, m.s.Len())
	m.s.Range(func(ref string, _ []byte) bool {
		refs = append(refs, can.Ref(ref))
		return true
	})
	return refs, nil
}
