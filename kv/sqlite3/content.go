package sqlite3

import (
	"context"
	"errors"
	"fmt"

	"go.miragespace.co/can/spec/can"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrChecksumMismatch = errors.New("sqlite3: stored payload does not match its checksum")

func checksum(payload []byte) int64 {
	return int64(xxh3.Hash(payload))
}

func (s *SqliteKV) Put(ctx context.Context, ref can.Ref, payload []byte) error {
	entry := &PayloadEntry{
		Ref:      string(ref),
		Payload:  payload,
		Checksum: checksum(payload),
	}

	return s.writer.
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ref"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "checksum", "updated_at"}),
		}).
		Create(entry).Error
}

func (s *SqliteKV) Get(ctx context.Context, ref can.Ref) ([]byte, error) {
	entry := &PayloadEntry{
		Ref: string(ref),
	}
	resp := s.reader.WithContext(ctx).Select("payload", "checksum").Take(entry)
	if resp.Error != nil {
		if errors.Is(resp.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, resp.Error
	}
	// errata: gorm library doesn't distinguish between nil and empty byte slice
	if entry.Payload == nil {
		entry.Payload = []byte{}
	}
	if sum := checksum(entry.Payload); sum != entry.Checksum {
		s.logger.Error("Payload checksum mismatch",
			zap.String("ref", string(ref)),
			zap.Int64("expected", entry.Checksum),
			zap.Int64("actual", sum),
		)
		return nil, fmt.Errorf("%w: %q", ErrChecksumMismatch, ref)
	}
	return entry.Payload, nil
}

func (s *SqliteKV) Delete(ctx context.Context, ref can.Ref) error {
	return s.writer.
		WithContext(ctx).
		Delete(&PayloadEntry{Ref: string(ref)}).Error
}

// Refs lists stored refs in ascending order.
func (s *SqliteKV) Refs(ctx context.Context) ([]can.Ref, error) {
	refs := make([]string, 0)
	err := s.reader.
		WithContext(ctx).
		Model(&PayloadEntry{}).
		Order("ref").
		Pluck("ref", &refs).Error
	if err != nil {
		return nil, err
	}
	result := make([]can.Ref, len(refs))
	for i, r := range refs {
		result[i] = can.Ref(r)
	}
	return result, nil
}
