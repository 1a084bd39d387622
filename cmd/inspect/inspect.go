package inspect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.miragespace.co/can/cmd/internal/render"
	"go.miragespace.co/can/cmd/internal/storage"
	"go.miragespace.co/can/journal"
	"go.miragespace.co/can/spec/can"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func Generate() *cli.Command {
	return &cli.Command{
		Name:        "inspect",
		Usage:       "replay a journal and print the overlay",
		Description: `Rebuild the overlay recorded by "simulate --journal" without modifying it.`,
		ArgsUsage:   " ",
		Flags: append([]cli.Flag{
			render.Flag(),
			&cli.StringFlag{
				Name:  "key",
				Usage: "only show where the content with this identifier is placed",
			},
		}, storage.Flags()...),
		Action: cmdInspect,
	}
}

// ReplayJournal refuses to create a journal where none exists.
func ReplayJournal(ctx *cli.Context, logger *zap.Logger) (*journal.Journal, func(), error) {
	dir := ctx.String("data-dir")
	if _, err := os.Stat(filepath.Join(dir, journal.LogDir)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("no journal found under %s", dir)
		}
		return nil, nil, err
	}
	maxPayload, err := storage.MaxPayload(ctx)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := storage.ContentStore(ctx, logger.Named("store"))
	if err != nil {
		return nil, nil, err
	}
	j, err := journal.Replay(journal.Config{
		Logger:        logger.Named("journal"),
		DataDir:       dir,
		Store:         store,
		MaxPayload:    maxPayload,
		FlushInterval: time.Second,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return j, closeStore, nil
}

func cmdInspect(ctx *cli.Context) error {
	logger, ok := ctx.App.Metadata["logger"].(*zap.Logger)
	if !ok || logger == nil {
		return fmt.Errorf("logger is not configured")
	}

	j, closeStore, err := ReplayJournal(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	o := j.Overlay()
	logger.Info("Journal replayed",
		zap.Uint64("mutations", j.Len()),
		zap.Int("nodes", o.Len()),
		zap.String("hash", j.Settings().Hash),
	)

	if key := ctx.String("key"); key != "" {
		id := can.ContentID(key)
		w := ctx.App.Writer
		fmt.Fprintf(w, "caretakers: %v\n", o.Locate(id))
		ref, err := o.Lookup(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "ref: %s\n", ref)
		return nil
	}

	return render.Overlay(ctx.App.Writer, o, ctx.String("output"))
}
