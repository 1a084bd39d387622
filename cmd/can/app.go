package can

import (
	"fmt"
	"runtime"

	"go.miragespace.co/can/cmd/inspect"
	"go.miragespace.co/can/cmd/serve"
	"go.miragespace.co/can/cmd/simulate"
	"go.miragespace.co/can/util"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Build = "head"
)

var App = New()

// New builds a fresh application, commands included.
func New() *cli.App {
	return &cli.App{
		Name:            "can",
		Usage:           fmt.Sprintf("build for %s on %s", runtime.GOARCH, runtime.GOOS),
		Version:         Build,
		HideHelpCommand: true,
		Description:     "simulate and inspect a content addressable network of peer groups",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Value: false,
				Usage: "enable verbose logging",
			},
			&cli.StringFlag{
				Name:    "log-filter",
				Usage:   `only keep matching log entries, for example "info+:overlay debug:journal"`,
				EnvVars: []string{"CAN_LOG_FILTER"},
			},
		},
		Commands: []*cli.Command{
			simulate.Generate(),
			inspect.Generate(),
			serve.Generate(),
		},
		Before: ConfigLogger,
	}
}

func ConfigLogger(ctx *cli.Context) error {
	var config zap.Config
	if ctx.Bool("verbose") {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}
	// Redirect everything to stderr
	config.OutputPaths = []string{"stderr"}
	logger, err := config.Build()
	if err != nil {
		return err
	}
	logger, err = util.FilterLogger(logger, ctx.String("log-filter"))
	if err != nil {
		return err
	}
	_, err = zap.RedirectStdLogAt(logger.With(zap.String("subsystem", "unknown")), zapcore.InfoLevel)
	if err != nil {
		return fmt.Errorf("redirecting stdlog output: %w", err)
	}
	ctx.App.Metadata["logger"] = logger
	return nil
}
