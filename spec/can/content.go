package can

import "context"

// ContentStore owns payload bytes. Nodes only track identifiers and refs.
type ContentStore interface {
	Put(ctx context.Context, ref Ref, payload []byte) error
	// Get returns nil without error when the ref is unknown
	Get(ctx context.Context, ref Ref) ([]byte, error)
	Delete(ctx context.Context, ref Ref) error
	Refs(ctx context.Context) ([]Ref, error)
}
