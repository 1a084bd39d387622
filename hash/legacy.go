package hash

import (
	"math"
	"strconv"
	"unicode/utf16"

	"go.miragespace.co/can/spec/can"
)

const (
	lcgMultiplier = 0x5DEECE66D
	lcgAddend     = 0xB
	lcgMask       = (1 << 48) - 1
)

// LegacyPoint keeps placements compatible with catalogues keyed by
// non-negative integer photo IDs: decimal identifiers are used as-is,
// anything else is reduced with the 31-multiplier string hash. X is
// |h| / MaxInt32, Y is the first double drawn from a 48-bit LCG seeded with
// h. Historic placements used the signed h, which put negative identifiers
// left of the space where no zone holds them; taking |h| mirrors them into
// the unit square instead, so every identifier has a caretaker. Placement
// is heavily skewed for small sequential identifiers.
func LegacyPoint(id can.ContentID) can.Point {
	h := legacyInt(string(id))
	x := math.Abs(float64(h)) / math.MaxInt32
	if x > 1 {
		// only MinInt32 lands here
		x = 1
	}
	return can.Point{X: x, Y: newLCG(int64(h)).nextDouble()}
}

func legacyInt(id string) int32 {
	if v, err := strconv.ParseInt(id, 10, 32); err == nil {
		return int32(v)
	}
	var h int32
	for _, c := range utf16.Encode([]rune(id)) {
		h = 31*h + int32(c)
	}
	return h
}

type lcg struct {
	seed uint64
}

func newLCG(seed int64) *lcg {
	return &lcg{seed: (uint64(seed) ^ lcgMultiplier) & lcgMask}
}

func (l *lcg) next(bits uint) uint64 {
	l.seed = (l.seed*lcgMultiplier + lcgAddend) & lcgMask
	return l.seed >> (48 - bits)
}

func (l *lcg) nextDouble() float64 {
	return float64(l.next(26)<<27+l.next(27)) * (1.0 / (1 << 53))
}
