package storage

import (
	"fmt"

	"go.miragespace.co/can/kv/memory"
	"go.miragespace.co/can/kv/sqlite3"
	"go.miragespace.co/can/spec/can"

	"github.com/alecthomas/units"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func noop() {}

// Flags are shared by every command that opens a content store.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "store",
			Value:    "memory",
			Usage:    "content store backend for published payloads: memory or sqlite",
			EnvVars:  []string{"CAN_STORE"},
			Category: "Storage",
		},
		&cli.StringFlag{
			Name:     "data-dir",
			Value:    "data",
			Usage:    "directory for the journal and the sqlite content store",
			EnvVars:  []string{"CAN_DATA_DIR"},
			Category: "Storage",
		},
		&cli.StringFlag{
			Name:     "max-payload",
			Value:    "4MiB",
			Usage:    "largest payload accepted by publish, for example 512KiB or 4MiB",
			Category: "Storage",
		},
		&cli.StringFlag{
			Name:     "sqlite-cache",
			Usage:    "directory to cache the compiled SQLite module, empty to disable",
			EnvVars:  []string{"CAN_SQLITE_CACHE"},
			Category: "Storage",
		},
	}
}

func MaxPayload(ctx *cli.Context) (int64, error) {
	size, err := units.ParseStrictBytes(ctx.String("max-payload"))
	if err != nil {
		return 0, fmt.Errorf("error parsing max-payload: %w", err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("max-payload must be positive, got %d", size)
	}
	return size, nil
}

// ContentStore opens the backend selected by --store. The returned func
// releases it.
func ContentStore(ctx *cli.Context, logger *zap.Logger) (can.ContentStore, func(), error) {
	datadir := ctx.String("data-dir")
	switch option := ctx.String("store"); option {
	case "memory":
		logger.Warn("Using memory as content store, payloads are lost on exit")
		return memory.New(), noop, nil
	case "sqlite":
		if err := sqlite3.Initialize(ctx.String("sqlite-cache"), 512); err != nil {
			return nil, nil, fmt.Errorf("error initializing sqlite: %w", err)
		}
		kv, err := sqlite3.New(sqlite3.Config{
			Logger:  logger,
			DataDir: datadir,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using SQLite content store", zap.String("dir", datadir))
		return kv, func() {
			if err := kv.Close(); err != nil {
				logger.Error("Error closing content store", zap.Error(err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown content store: %s", option)
	}
}
