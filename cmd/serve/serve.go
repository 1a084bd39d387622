package serve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.miragespace.co/can/cmd/inspect"
	"go.miragespace.co/can/cmd/internal/storage"
	"go.miragespace.co/can/util"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Generate() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "replay a journal and serve read only inspection endpoints",
		Description: `Expose /stats, /graph, /metrics, /nodes, /nodes/{id} and /lookup?key= over HTTP for the overlay recorded in data-dir.`,
		ArgsUsage:   " ",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "listen-addr",
				Aliases: []string{"listen"},
				Value:   "127.0.0.1:8080",
				Usage:   "address and port to serve inspection endpoints",
				EnvVars: []string{"CAN_LISTEN"},
			},
			&cli.IntFlag{
				Name:  "rate-limit",
				Value: 20,
				Usage: "requests per second accepted across all clients",
			},
		}, storage.Flags()...),
		Action: cmdServe,
	}
}

func cmdServe(ctx *cli.Context) error {
	logger, ok := ctx.App.Metadata["logger"].(*zap.Logger)
	if !ok || logger == nil {
		return fmt.Errorf("logger is not configured")
	}
	if ctx.Int("rate-limit") <= 0 {
		return fmt.Errorf("rate-limit must be positive")
	}

	j, closeStore, err := inspect.ReplayJournal(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ln, err := net.Listen("tcp", ctx.String("listen-addr"))
	if err != nil {
		return fmt.Errorf("error listening for inspection requests: %w", err)
	}

	sCtx, cancel := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return Serve(sCtx, logger.Named("http"), ln, Router(j.Overlay(), ctx.Int("rate-limit")))
}

// Serve runs handler on ln until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, logger *zap.Logger, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: time.Second * 5,
		ErrorLog: util.GetStdLogger(
			util.DropMessages(logger, "http: TLS handshake error", "http: URL query contains semicolon"),
			"inspectServer",
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Serving inspection endpoints", zap.String("listen", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down inspection endpoints")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

