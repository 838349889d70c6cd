package cli

import (
	"fmt"

	"github.com/harun/skycast/internal/config"
	"github.com/harun/skycast/internal/logger"
	"github.com/harun/skycast/pkg/agent"
	"github.com/harun/skycast/pkg/commandqueue"
	"github.com/harun/skycast/pkg/runner"
	"github.com/harun/skycast/pkg/session"
	"github.com/harun/skycast/pkg/tool"
	"github.com/harun/skycast/pkg/weather"
	"github.com/rs/zerolog/log"
)

// app bundles the wired components behind the CLI commands
type app struct {
	cfg      *config.Config
	runner   *runner.Runner
	sessions *session.Service
	queue    *commandqueue.CommandQueue
}

// buildApp loads config, initializes logging, and assembles the runtime
func buildApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if _, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	registry := tool.NewRegistry()
	if err := weather.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register weather tool: %w", err)
	}

	var store *session.Store
	if cfg.Sessions.Persist {
		store, err = session.NewStore(cfg.Sessions.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
	}
	sessions := session.NewService(session.ServiceConfig{Store: store})

	model := cfg.Models.Resolve(cfg.Agent.Model)
	a, err := agent.New(agent.Agent{
		Name:        cfg.Agent.Name,
		Model:       model,
		Description: cfg.Agent.Description,
		Instruction: cfg.Agent.Instruction,
		Tools:       cfg.Agent.Tools,
		Temperature: cfg.Agent.Temperature,
		MaxTokens:   cfg.Agent.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	queue := commandqueue.New()

	r, err := runner.New(runner.Config{
		AppName:      cfg.AppName,
		Agent:        a,
		Sessions:     sessions,
		Tools:        registry,
		Queue:        queue,
		Factory:      agent.NewFactory(cfg.Credentials()),
		Logger:       log.Logger,
		MaxRetries:   cfg.Runner.MaxRetries,
		MaxToolTurns: cfg.Runner.MaxToolTurns,
	})
	if err != nil {
		_ = queue.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		runner:   r,
		sessions: sessions,
		queue:    queue,
	}, nil
}

// close releases the app's resources
func (a *app) close() {
	if err := a.queue.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close command queue")
	}
}
