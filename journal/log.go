package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"
)

type LogVersion uint8

const (
	LogVersionV1 LogVersion = 1
)

type entryKind uint8

const (
	entryHeader entryKind = iota + 1
	entryMutation
)

// LogEntry wraps every record so the payload encoding can evolve.
type LogEntry struct {
	Version LogVersion `cbor:"1,keyasint"`
	Kind    entryKind  `cbor:"2,keyasint"`
	Data    []byte     `cbor:"3,keyasint"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

var ErrCorruptedHeader = errors.New("journal: first entry is not a settings header")

// loadSettings writes fresh as the header of an empty log, or reads the
// header back from an existing one.
func (j *Journal) loadSettings(fresh Settings) (Settings, error) {
	index, err := j.log.LastIndex()
	if err != nil {
		return Settings{}, fmt.Errorf("error reading last log index: %w", err)
	}
	if index == 0 {
		if err := fresh.Validate(); err != nil {
			return Settings{}, err
		}
		if err := j.appendLog(entryHeader, &fresh); err != nil {
			return Settings{}, fmt.Errorf("error writing settings header: %w", err)
		}
		return fresh, nil
	}

	var settings Settings
	entry, err := j.readEntry(1)
	if err != nil {
		return Settings{}, err
	}
	if entry.Kind != entryHeader {
		return Settings{}, ErrCorruptedHeader
	}
	if err := cbor.Unmarshal(entry.Data, &settings); err != nil {
		return Settings{}, fmt.Errorf("error deserializing settings header: %w", err)
	}
	if fresh != settings && fresh != (Settings{}) {
		j.logger.Warn("Ignoring configured settings in favor of the journal header",
			zap.Int("capacity", settings.Capacity),
			zap.String("hash", settings.Hash),
			zap.Uint64("seed", settings.Seed),
		)
	}
	return settings, nil
}

func (j *Journal) readEntry(i uint64) (*LogEntry, error) {
	buf, err := j.log.Read(i)
	if err != nil {
		return nil, fmt.Errorf("error reading log at index %d: %w", i, err)
	}
	entry := &LogEntry{}
	if err := cbor.Unmarshal(buf, entry); err != nil {
		return nil, fmt.Errorf("error deserializing log at index %d: %w", i, err)
	}
	if entry.Version != LogVersionV1 {
		return nil, fmt.Errorf("unknown log version at index %d: %d", i, entry.Version)
	}
	return entry, nil
}

func (j *Journal) replayLogs() error {
	index, err := j.log.LastIndex()
	if err != nil {
		return fmt.Errorf("error reading last log index: %w", err)
	}
	j.logger.Info("Replaying mutation logs", zap.Uint64("index", index))
	for i := uint64(2); i <= index; i++ {
		entry, err := j.readEntry(i)
		if err != nil {
			return err
		}
		if entry.Kind != entryMutation {
			return fmt.Errorf("unexpected entry kind at index %d: %d", i, entry.Kind)
		}
		mut := &Mutation{}
		if err := cbor.Unmarshal(entry.Data, mut); err != nil {
			return fmt.Errorf("error decoding entry to mutation at index %d: %w", i, err)
		}
		if res := j.handleMutation(context.Background(), mut, nil); res.err != nil {
			return fmt.Errorf("error applying mutation to overlay at index %d: %w", i, res.err)
		}
	}
	j.counter = index + 1
	return nil
}

func (j *Journal) appendLog(kind entryKind, v any) error {
	data, err := encMode.Marshal(v)
	if err != nil {
		j.logger.Error("Error serializing log payload", zap.Error(err))
		return err
	}
	logBuf, err := encMode.Marshal(&LogEntry{
		Version: LogVersionV1,
		Kind:    kind,
		Data:    data,
	})
	if err != nil {
		j.logger.Error("Error serializing log entry", zap.Error(err))
		return err
	}

	if err := j.log.Write(j.counter, logBuf); err != nil {
		j.logger.Error("Error appending to log", zap.Uint64("counter", j.counter), zap.Error(err))
		return err
	}
	j.counter += 1
	return nil
}

func (j *Journal) rollbackOne(mut *Mutation, err error) {
	j.logger.Warn("Rolling back last mutation because of an error",
		zap.Stringer("mutation", mut.Type),
		zap.Uint64("truncate", j.counter-2),
		zap.Uint64("index", j.counter-1),
		zap.Error(err),
	)
	j.counter -= 1
	if err := j.log.TruncateBack(j.counter - 1); err != nil {
		j.logger.Error("Error applying rollback to the last mutation",
			zap.Error(err))
	}
}

// Replay rebuilds the overlay from dataDir without accepting new mutations.
// The returned journal is already stopped.
func Replay(cfg Config) (*Journal, error) {
	j, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	j.closeWg.Done()
	j.Stop()
	return j, nil
}
