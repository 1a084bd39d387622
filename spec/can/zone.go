package can

import (
	"fmt"
	"math"
	"strconv"
)

// Zone is an axis-aligned rectangle of the coordinate space, bottom left
// corner (X1, Y1) and top right corner (X2, Y2). Zones are values: nodes
// sharing a partition hold equal copies, and a split rebinds them to new
// values instead of mutating the old one.
type Zone struct {
	X1 float64 `cbor:"1,keyasint" yaml:"x1" json:"x1"`
	Y1 float64 `cbor:"2,keyasint" yaml:"y1" json:"y1"`
	X2 float64 `cbor:"3,keyasint" yaml:"x2" json:"x2"`
	Y2 float64 `cbor:"4,keyasint" yaml:"y2" json:"y2"`
}

// Point is a location in the coordinate space.
type Point struct {
	X float64 `cbor:"1,keyasint" yaml:"x" json:"x"`
	Y float64 `cbor:"2,keyasint" yaml:"y" json:"y"`
}

// UnitZone is [0,1]x[0,1]
var UnitZone = Zone{X1: 0, Y1: 0, X2: 1, Y2: 1}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Validate rejects corners out of order and non finite corners. A NaN corner
// would make the zone unequal to itself.
func (z Zone) Validate() error {
	if !finite(z.X1) || !finite(z.Y1) || !finite(z.X2) || !finite(z.Y2) {
		return fmt.Errorf("%w: %s has a non finite corner", ErrInvalidZone, z)
	}
	if z.X1 > z.X2 || z.Y1 > z.Y2 {
		return fmt.Errorf("%w: %s", ErrInvalidZone, z)
	}
	return nil
}

func (z Zone) Equal(o Zone) bool {
	return z == o
}

func (z Zone) LengthX() float64 {
	return z.X2 - z.X1
}

func (z Zone) LengthY() float64 {
	return z.Y2 - z.Y1
}

func (z Zone) Area() float64 {
	return z.LengthX() * z.LengthY()
}

func (z Zone) Center() Point {
	return Point{
		X: z.X1 + z.LengthX()/2.0,
		Y: z.Y1 + z.LengthY()/2.0,
	}
}

// Contains reports whether (x, y) lies in the zone. Boundaries are inclusive
// on both axes, so a point on a split line belongs to both halves.
func (z Zone) Contains(x, y float64) bool {
	return (x >= z.X1 && x <= z.X2) && (y >= z.Y1 && y <= z.Y2)
}

func (z Zone) ContainsPoint(p Point) bool {
	return z.Contains(p.X, p.Y)
}

// Scale maps a point of the unit square into the zone.
func (z Zone) Scale(p Point) Point {
	return Point{
		X: z.X1 + p.X*z.LengthX(),
		Y: z.Y1 + p.Y*z.LengthY(),
	}
}

// IsNeighbour reports whether the two zones overlap on one axis and touch
// on the other.
func (z Zone) IsNeighbour(o Zone) bool {
	if sectionsOverlap(o.X1, o.X2, z.X1, z.X2) && sectionsTouch(o.Y1, o.Y2, z.Y1, z.Y2) {
		return true
	}
	if sectionsOverlap(o.Y1, o.Y2, z.Y1, z.Y2) && sectionsTouch(o.X1, o.X2, z.X1, z.X2) {
		return true
	}
	return false
}

// section a [a1, a2] overlaps section b [b1, b2]; half-open at the starts
func sectionsOverlap(a1, a2, b1, b2 float64) bool {
	return (a2 > b1 && a2 <= b2) || (b2 > a1 && b2 <= a2)
}

func sectionsTouch(a1, a2, b1, b2 float64) bool {
	return a2 == b1 || b2 == a1
}

// Split cuts the zone in half across its longer side. On a tie the zone is
// cut across Y. The first zone returned is the lower (or left) half.
func (z Zone) Split() (Zone, Zone) {
	if z.LengthX() > z.LengthY() {
		midX := z.X1 + z.LengthX()/2.0
		return Zone{X1: z.X1, Y1: z.Y1, X2: midX, Y2: z.Y2},
			Zone{X1: midX, Y1: z.Y1, X2: z.X2, Y2: z.Y2}
	}
	midY := z.Y1 + z.LengthY()/2.0
	return Zone{X1: z.X1, Y1: z.Y1, X2: z.X2, Y2: midY},
		Zone{X1: z.X1, Y1: midY, X2: z.X2, Y2: z.Y2}
}

// Merge rebuilds a single zone from two neighbours that share a full side.
func Merge(z1, z2 Zone) (Zone, error) {
	if !z1.IsNeighbour(z2) {
		return Zone{}, fmt.Errorf("%w: %s and %s", ErrNotNeighbours, z1, z2)
	}

	switch {
	case z1.X1 == z2.X1 && z1.X2 == z2.X2:
		// horizontal shared side
		if z1.Y2 == z2.Y1 {
			return Zone{X1: z1.X1, Y1: z1.Y1, X2: z1.X2, Y2: z2.Y2}, nil
		}
		return Zone{X1: z1.X1, Y1: z2.Y1, X2: z1.X2, Y2: z1.Y2}, nil

	case z1.Y1 == z2.Y1 && z1.Y2 == z2.Y2:
		// vertical shared side
		if z1.X2 == z2.X1 {
			return Zone{X1: z1.X1, Y1: z1.Y1, X2: z2.X2, Y2: z1.Y2}, nil
		}
		return Zone{X1: z2.X1, Y1: z1.Y1, X2: z1.X2, Y2: z1.Y2}, nil

	default:
		return Zone{}, fmt.Errorf("%w: %s and %s", ErrUnequalSideLength, z1, z2)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (z Zone) String() string {
	return "[" + formatFloat(z.X1) + "," + formatFloat(z.X2) + "]x[" + formatFloat(z.Y1) + "," + formatFloat(z.Y2) + "]"
}

func (p Point) String() string {
	return "(" + formatFloat(p.X) + ", " + formatFloat(p.Y) + ")"
}
