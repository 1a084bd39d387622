package sqlite3

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.miragespace.co/can/spec/can"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"moul.io/zapgorm2"
)

// PayloadEntry is one stored payload. Checksum is the xxh3 digest of
// Payload taken on write, stored as int64 since database/sql rejects uint64
// values with the high bit set.
type PayloadEntry struct {
	Ref       string `gorm:"primaryKey"`
	Payload   []byte
	Checksum  int64
	UpdatedAt time.Time
}

type Config struct {
	Logger  *zap.Logger
	DataDir string
}

type SqliteKV struct {
	logger *zap.Logger
	reader *gorm.DB
	writer *gorm.DB
}

func (c Config) validate() error {
	if c.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if c.DataDir == "" {
		return fmt.Errorf("empty DataDir is invalid")
	}
	return nil
}

func New(cfg Config) (*SqliteKV, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dbDir := filepath.Join(cfg.DataDir, "sqlite3")
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dbDir, "content.db")

	gormLogger := zapgorm2.New(cfg.Logger)
	gormLogger.IgnoreRecordNotFoundError = true
	gormLogger.SlowThreshold = 500 * time.Millisecond

	reader, err := openPool(cfg.Logger, gormLogger, dbPath, max(4, runtime.NumCPU()))
	if err != nil {
		return nil, fmt.Errorf("opening reader pool: %w", err)
	}
	// a single writer connection keeps SQLITE_BUSY away
	writer, err := openPool(cfg.Logger, gormLogger, dbPath, 1)
	if err != nil {
		return nil, fmt.Errorf("opening writer pool: %w", err)
	}

	if err := writer.AutoMigrate(&PayloadEntry{}); err != nil {
		return nil, err
	}

	return &SqliteKV{
		logger: cfg.Logger,
		reader: reader,
		writer: writer,
	}, nil
}

func openPool(logger *zap.Logger, gormLogger zapgorm2.Logger, dbPath string, conns int) (*gorm.DB, error) {
	db, err := gorm.Open(openSQLite(logger, dbPath), &gorm.Config{
		Logger:         gormLogger,
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	pool, err := db.DB()
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(conns)
	return db, nil
}

func (s *SqliteKV) Close() error {
	for _, db := range []*gorm.DB{s.reader, s.writer} {
		sqlDb, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDb.Close(); err != nil {
			return err
		}
	}
	return nil
}

var _ can.ContentStore = (*SqliteKV)(nil)
