package can

import "go.uber.org/zap/zapcore"

var (
	_ zapcore.ObjectMarshaler = Zone{}
	_ zapcore.ObjectMarshaler = Point{}
	_ zapcore.ObjectMarshaler = NodeInfo{}
)

func (z Zone) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddFloat64("x1", z.X1)
	enc.AddFloat64("y1", z.Y1)
	enc.AddFloat64("x2", z.X2)
	enc.AddFloat64("y2", z.Y2)
	return nil
}

func (p Point) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddFloat64("x", p.X)
	enc.AddFloat64("y", p.Y)
	return nil
}

func (n NodeInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("id", n.ID)
	if n.Name != "" {
		enc.AddString("name", n.Name)
	}
	enc.AddString("zone", n.Zone.String())
	enc.AddInt("peers", n.PeerCount)
	enc.AddInt("items", len(n.Catalogue))
	return nil
}
