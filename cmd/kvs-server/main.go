// Command kvs-server serves a caskdb directory over HTTP and, optionally, ZeroMQ.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phuslu/log"
	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"github.com/MikhailWahib/caskdb"
	"github.com/MikhailWahib/caskdb/internal/config"
	"github.com/MikhailWahib/caskdb/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kvs-server:", err)
		os.Exit(1)
	}
}

// transports holds every server the configuration enables.
type transports struct {
	dig.In

	HTTP *server.HTTPServer
	ZMQ  *server.ZMQServer // nil when disabled
}

func buildContainer(args []string) (*dig.Container, error) {
	container := dig.New()
	constructors := []any{
		func() (*config.ServerConfig, error) { return config.LoadServerConfig(args) },
		newLogger,
		openEngine,
		server.NewHandler,
		newHTTPServer,
		newZMQServer,
	}
	for _, c := range constructors {
		if err := container.Provide(c); err != nil {
			return nil, err
		}
	}
	return container, nil
}

func run(ctx context.Context, args []string) error {
	container, err := buildContainer(args)
	if err != nil {
		return err
	}

	return container.Invoke(func(cfg *config.ServerConfig, logger *log.Logger, h *server.Handler, t transports) error {
		logger.Info().
			Str("dir", cfg.DataDir).
			Str("engine", cfg.Engine).
			Str("addr", cfg.Addr).
			Str("zmq_addr", cfg.ZMQAddr).
			Msg("kvs-server starting")

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return t.HTTP.Run(ctx) })
		if t.ZMQ != nil {
			g.Go(func() error { return t.ZMQ.Run(ctx) })
		}
		err := g.Wait()

		if closeErr := h.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close engine")
		}
		logger.Info().Msg("kvs-server stopped")
		return err
	})
}

func newLogger(cfg *config.ServerConfig) *log.Logger {
	return cfg.NewLogger()
}

func openEngine(cfg *config.ServerConfig, logger *log.Logger) (caskdb.KvsEngine, error) {
	engineCfg := caskdb.DefaultConfig()
	engineCfg.Logger = logger
	return caskdb.Open(cfg.DataDir, cfg.Engine, engineCfg)
}

func newHTTPServer(cfg *config.ServerConfig, h *server.Handler, logger *log.Logger) *server.HTTPServer {
	return server.NewHTTPServer(cfg.Addr, h, logger)
}

func newZMQServer(cfg *config.ServerConfig, h *server.Handler, logger *log.Logger) *server.ZMQServer {
	if cfg.ZMQAddr == "" {
		return nil
	}
	return server.NewZMQServer(cfg.ZMQAddr, h, logger)
}
