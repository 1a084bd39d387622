// Package hash provides the placement strategies that map content
// identifiers onto the unit square.
package hash

import (
	"fmt"
	"sort"

	"go.miragespace.co/can/spec/can"

	"github.com/cespare/xxhash/v2"
	"github.com/orisano/wyhash"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

const (
	XXH3    = "xxh3"
	XXHash  = "xxhash"
	Murmur3 = "murmur3"
	WyHash  = "wyhash"
	Legacy  = "legacy"

	Default = XXH3
)

var strategies = map[string]func(seed uint64) can.Hasher{
	XXH3:    newXXH3,
	XXHash:  newXXHash,
	Murmur3: newMurmur3,
	WyHash:  newWyHash,
	Legacy: func(uint64) can.Hasher {
		return can.HashFn(LegacyPoint)
	},
}

// New returns the named strategy. seed changes placement for every strategy
// except legacy, which reproduces fixed historic placements.
func New(name string, seed uint64) (can.Hasher, error) {
	if name == "" {
		name = Default
	}
	fn, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown hash strategy %q, expecting one of %v", name, Names())
	}
	return fn(seed), nil
}

func Names() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unit maps a 64-bit digest into [0, 1) using its top 53 bits
func unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}

func newXXH3(seed uint64) can.Hasher {
	return can.HashFn(func(id can.ContentID) can.Point {
		sum := xxh3.HashString128Seed(string(id), seed)
		return can.Point{X: unit(sum.Hi), Y: unit(sum.Lo)}
	})
}

func newXXHash(seed uint64) can.Hasher {
	return can.HashFn(func(id can.ContentID) can.Point {
		dx := xxhash.NewWithSeed(seed)
		dx.WriteString(string(id))
		dy := xxhash.NewWithSeed(seed + 1)
		dy.WriteString(string(id))
		return can.Point{X: unit(dx.Sum64()), Y: unit(dy.Sum64())}
	})
}

func newMurmur3(seed uint64) can.Hasher {
	s := uint32(seed) ^ uint32(seed>>32)
	return can.HashFn(func(id can.ContentID) can.Point {
		h1, h2 := murmur3.Sum128WithSeed([]byte(id), s)
		return can.Point{X: unit(h1), Y: unit(h2)}
	})
}

func newWyHash(seed uint64) can.Hasher {
	return can.HashFn(func(id can.ContentID) can.Point {
		b := []byte(id)
		return can.Point{X: unit(wyhash.Sum64(seed, b)), Y: unit(wyhash.Sum64(^seed, b))}
	})
}
