package can

import (
	"errors"

	"go.miragespace.co/can/hash"
	"go.miragespace.co/can/kv/memory"
	"go.miragespace.co/can/spec/can"

	"go.uber.org/zap"
)

const (
	DefaultCapacity   = 3
	DefaultMaxPayload = 4 << 20
)

type Config struct {
	Logger *zap.Logger
	// Capacity is the number of peers a node may have before its zone splits
	Capacity int
	// Space is the zone of the first node
	Space  can.Zone
	Hasher can.Hasher
	Store  can.ContentStore
	// MaxPayload bounds Publish, in bytes
	MaxPayload int64
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil Config")
	}
	if c.Logger == nil {
		return errors.New("nil Logger")
	}
	if c.Capacity < 1 {
		return errors.New("invalid Capacity, must be at least 1")
	}
	if err := c.Space.Validate(); err != nil {
		return err
	}
	if c.Space.Area() <= 0 {
		return errors.New("invalid Space, must have a positive area")
	}
	if c.Hasher == nil {
		return errors.New("nil Hasher")
	}
	if c.Store == nil {
		return errors.New("nil Store")
	}
	if c.MaxPayload <= 0 {
		return errors.New("invalid MaxPayload, must be positive")
	}
	return nil
}

func DefaultConfig() Config {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	hasher, err := hash.New(hash.Default, 0)
	if err != nil {
		panic(err)
	}
	return Config{
		Logger:     logger,
		Capacity:   DefaultCapacity,
		Space:      can.UnitZone,
		Hasher:     hasher,
		Store:      memory.New(),
		MaxPayload: DefaultMaxPayload,
	}
}
