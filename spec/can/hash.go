package can

// ContentID is the opaque key of a content item.
type ContentID string

// Ref points at the payload of a content item in the ContentStore.
type Ref string

// Hasher maps a content identifier to a point of the unit square
// [0,1]x[0,1]. Implementations must be pure: every node computes the same
// point for the same identifier without talking to anyone.
type Hasher interface {
	Point(id ContentID) Point
}

// HashFn adapts a plain function to a Hasher.
type HashFn func(id ContentID) Point

func (fn HashFn) Point(id ContentID) Point {
	return fn(id)
}

var _ Hasher = HashFn(nil)
