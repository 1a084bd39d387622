// Package journal persists overlay mutations in an append only log and
// rebuilds the overlay by replaying it.
package journal

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	canImpl "go.miragespace.co/can/can"
	"go.miragespace.co/can/hash"
	"go.miragespace.co/can/spec/can"

	"github.com/tidwall/wal"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	LogDir = "wal"
)

// Settings fix the placement of content and must never change for the
// lifetime of a journal. They are written as the first entry.
type Settings struct {
	Capacity int      `cbor:"1,keyasint" yaml:"capacity"`
	Space    can.Zone `cbor:"2,keyasint" yaml:"space"`
	Hash     string   `cbor:"3,keyasint" yaml:"hash"`
	Seed     uint64   `cbor:"4,keyasint" yaml:"seed"`
}

func (s Settings) Validate() error {
	if s.Capacity < 1 {
		return fmt.Errorf("invalid Capacity, must be at least 1")
	}
	if err := s.Space.Validate(); err != nil {
		return err
	}
	if s.Space.Area() <= 0 {
		return fmt.Errorf("invalid Space, must have a positive area")
	}
	if _, err := hash.New(s.Hash, s.Seed); err != nil {
		return err
	}
	return nil
}

func DefaultSettings() Settings {
	return Settings{
		Capacity: canImpl.DefaultCapacity,
		Space:    can.UnitZone,
		Hash:     hash.Default,
	}
}

type Config struct {
	Logger  *zap.Logger
	DataDir string
	// Settings are only used when the journal is created. An existing
	// journal keeps the settings in its header.
	Settings      Settings
	Store         can.ContentStore
	MaxPayload    int64
	FlushInterval time.Duration
}

func (c Config) validate() error {
	if c.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if c.DataDir == "" {
		return fmt.Errorf("empty DataDir is invalid")
	}
	if c.Store == nil {
		return fmt.Errorf("nil Store is invalid")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("non-positive FlushInterval is invalid")
	}
	return nil
}

type mutationResult struct {
	id  can.NodeID
	ids []can.NodeID
	err error
}

type mutationReq struct {
	ctx     context.Context
	mut     *Mutation
	payload []byte
	res     chan mutationResult
}

// Journal serializes every mutation through a single goroutine: the entry
// is appended first, then applied, and truncated again if applying fails.
type Journal struct {
	writeBarrier  sync.RWMutex
	logger        *zap.Logger
	overlay       *canImpl.Overlay
	settings      Settings
	queue         chan *mutationReq
	log           *wal.Log
	closeCh       chan struct{}
	closeWg       sync.WaitGroup
	closed        *atomic.Bool
	counter       uint64
	flushInterval time.Duration
}

func logPath(dir string) string {
	return filepath.Join(dir, LogDir)
}

func Open(cfg Config) (*Journal, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	l, err := wal.Open(logPath(cfg.DataDir), &wal.Options{
		SegmentSize:      2 * 1024 * 1024, // 2MB
		SegmentCacheSize: 4,               // 8MB
		LogFormat:        wal.Binary,
		NoSync:           true,
	})
	if err != nil {
		return nil, fmt.Errorf("error opening log: %w", err)
	}
	j := &Journal{
		logger:        cfg.Logger,
		queue:         make(chan *mutationReq),
		log:           l,
		closeCh:       make(chan struct{}),
		closed:        atomic.NewBool(false),
		counter:       1,
		flushInterval: cfg.FlushInterval,
	}

	settings, err := j.loadSettings(cfg.Settings)
	if err != nil {
		l.Close()
		return nil, err
	}
	hasher, err := hash.New(settings.Hash, settings.Seed)
	if err != nil {
		l.Close()
		return nil, err
	}
	maxPayload := cfg.MaxPayload
	if maxPayload <= 0 {
		maxPayload = canImpl.DefaultMaxPayload
	}
	o, err := canImpl.New(canImpl.Config{
		Logger:     cfg.Logger.Named("overlay"),
		Capacity:   settings.Capacity,
		Space:      settings.Space,
		Hasher:     hasher,
		Store:      cfg.Store,
		MaxPayload: maxPayload,
	})
	if err != nil {
		l.Close()
		return nil, err
	}
	j.overlay = o
	j.settings = settings

	j.logger.Info("Using append only log for overlay mutations",
		zap.String("dir", cfg.DataDir),
		zap.Int("capacity", settings.Capacity),
		zap.String("hash", settings.Hash),
	)

	if err := j.replayLogs(); err != nil {
		l.Close()
		return nil, err
	}

	j.closeWg.Add(1)

	return j, nil
}

// Overlay is the replayed state. Mutating it directly bypasses the log.
func (j *Journal) Overlay() *canImpl.Overlay {
	return j.overlay
}

func (j *Journal) Settings() Settings {
	return j.settings
}

// Len is the number of mutations in the log, excluding the header.
func (j *Journal) Len() uint64 {
	j.writeBarrier.RLock()
	defer j.writeBarrier.RUnlock()
	return j.counter - 2
}

func (j *Journal) Start() {
	ticker := time.NewTicker(j.flushInterval)
	defer ticker.Stop()

	defer j.closeWg.Done()

	j.logger.Debug("Periodically flushing logs to disk", zap.Duration("interval", j.flushInterval))

	dirty := false
	for {
		select {
		case <-j.closeCh:
			return
		case <-ticker.C:
			if !dirty {
				continue
			}
			dirty = false
			if err := j.log.Sync(); err != nil {
				j.logger.Error("Error flushing logs periodically", zap.Error(err))
			}
		case m := <-j.queue:
			var res mutationResult
			if logError := j.appendLog(entryMutation, m.mut); logError == nil {
				res = j.handleMutation(m.ctx, m.mut, m.payload)
				if res.err != nil {
					j.rollbackOne(m.mut, res.err)
				}
			} else {
				j.logger.Error("Error appending mutation log",
					zap.Stringer("mutation", m.mut.Type),
					zap.Error(logError))
				res.err = fs.ErrInvalid
			}
			dirty = true
			m.res <- res
		}
	}
}

func (j *Journal) Sync() error {
	j.writeBarrier.RLock()
	defer j.writeBarrier.RUnlock()
	if j.closed.Load() {
		return fs.ErrClosed
	}
	return j.log.Sync()
}

func (j *Journal) Stop() {
	j.writeBarrier.Lock()
	defer j.writeBarrier.Unlock()

	if !j.closed.CompareAndSwap(false, true) {
		return
	}

	close(j.closeCh)
	j.closeWg.Wait()

	j.logger.Debug("Flushing logs to disk")

	if err := j.log.Sync(); err != nil {
		j.logger.Error("Error flushing logs to disk", zap.Error(err))
	}
	if err := j.log.Close(); err != nil {
		j.logger.Error("Error closing log file", zap.Error(err))
	}
}
