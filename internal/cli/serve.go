package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/skycast/internal/config"
	"github.com/harun/skycast/internal/logger"
	"github.com/harun/skycast/internal/tracing"
	"github.com/harun/skycast/pkg/gateway"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway server",
	Long: `Run the HTTP gateway. It exposes the assistant at POST /v1/ask, streams
run events over a websocket at /v1/stream, and serves health and metrics
endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := tracing.InitOpenTelemetry("skycast"); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing")
	}
	defer func() {
		if err := tracing.ShutdownOpenTelemetry(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down tracing")
		}
	}()

	server, err := gateway.NewServer(gateway.Config{
		Host:         a.cfg.Gateway.Host,
		Port:         a.cfg.Gateway.Port,
		SharedSecret: a.cfg.Gateway.SharedSecret,
		Runner:       a.runner,
		Logger:       log.Logger,
	})
	if err != nil {
		return err
	}

	if err := server.Start(); err != nil {
		return err
	}

	// Follow config file edits for log level changes; everything else needs
	// a restart.
	watcher, err := config.NewWatcher(config.NewLoader(cfgFile), func(cfg *config.Config) {
		// logger.New reinstalls the global logger with the new level
		if _, err := logger.New(logger.Config{
			Level:     cfg.Logging.Level,
			File:      cfg.Logging.File,
			Console:   true,
			Redaction: cfg.Logging.Redaction,
			MaxSize:   cfg.Logging.MaxSize,
			MaxAge:    cfg.Logging.MaxAge,
			Compress:  cfg.Logging.Compress,
		}); err != nil {
			log.Warn().Err(err).Msg("Ignoring logging config change")
			return
		}
		log.Info().Str("level", cfg.Logging.Level).Msg("Logging reconfigured")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable")
	} else if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher")
	} else {
		defer watcher.Stop()
	}

	fmt.Printf("Gateway listening on %s:%d\n", a.cfg.Gateway.Host, a.cfg.Gateway.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	return server.Stop()
}
