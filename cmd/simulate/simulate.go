package simulate

import (
	"fmt"
	"time"

	canImpl "go.miragespace.co/can/can"
	"go.miragespace.co/can/cmd/internal/render"
	"go.miragespace.co/can/cmd/internal/storage"
	"go.miragespace.co/can/hash"
	"go.miragespace.co/can/journal"
	"go.miragespace.co/can/scenario"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func Generate() *cli.Command {
	return &cli.Command{
		Name:        "simulate",
		Usage:       "run a scenario against a fresh overlay",
		Description: `Drive an overlay through the steps of a YAML scenario, then print the resulting peer groups, zones and content placement.`,
		ArgsUsage:   "scenario.yaml",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "journal",
				Usage: "record every mutation in the journal under data-dir, so inspect and serve can replay it",
			},
			render.Flag(),
		}, storage.Flags()...),
		Action: cmdSimulate,
	}
}

func cmdSimulate(ctx *cli.Context) error {
	logger, ok := ctx.App.Metadata["logger"].(*zap.Logger)
	if !ok || logger == nil {
		return fmt.Errorf("logger is not configured")
	}
	if ctx.NArg() != 1 {
		return fmt.Errorf("expecting exactly one scenario file, got %d arguments", ctx.NArg())
	}

	s, err := scenario.NewScenario(ctx.Args().First())
	if err != nil {
		return err
	}
	maxPayload, err := storage.MaxPayload(ctx)
	if err != nil {
		return err
	}
	store, closeStore, err := storage.ContentStore(ctx, logger.Named("store"))
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		target  scenario.Target
		overlay *canImpl.Overlay
	)
	if ctx.Bool("journal") {
		j, err := journal.Open(journal.Config{
			Logger:        logger.Named("journal"),
			DataDir:       ctx.String("data-dir"),
			Settings:      s.Settings,
			Store:         store,
			MaxPayload:    maxPayload,
			FlushInterval: time.Second,
		})
		if err != nil {
			return err
		}
		go j.Start()
		defer j.Stop()

		target = j
		overlay = j.Overlay()
	} else {
		hasher, err := hash.New(s.Settings.Hash, s.Settings.Seed)
		if err != nil {
			return err
		}
		overlay, err = canImpl.New(canImpl.Config{
			Logger:     logger.Named("overlay"),
			Capacity:   s.Settings.Capacity,
			Space:      s.Settings.Space,
			Hasher:     hasher,
			Store:      store,
			MaxPayload: maxPayload,
		})
		if err != nil {
			return err
		}
		target = overlay
	}

	start := time.Now()
	if err := scenario.NewRunner(logger.Named("scenario"), target).Run(ctx.Context, s); err != nil {
		return err
	}
	logger.Info("Scenario completed",
		zap.Int("steps", len(s.Steps)),
		zap.Int("nodes", overlay.Len()),
		zap.Uint64("splits", overlay.Splits()),
		zap.Duration("took", time.Since(start)),
	)

	return render.Overlay(ctx.App.Writer, overlay, ctx.String("output"))
}
