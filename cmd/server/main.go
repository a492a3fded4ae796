package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentsh/internal/infrastructure/config"
	"github.com/GriffinCanCode/agentsh/internal/infrastructure/logging"
	"github.com/GriffinCanCode/agentsh/internal/infrastructure/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("agentsh", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "listen address")
	flagSet.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "listen port")
	flagSet.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "log level (debug, info, warn, error)")
	flagSet.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "development mode: console logs, gin debug output")
	flagSet.StringVar(&cfg.Exec.PolicyFile, "policy", cfg.Exec.PolicyFile, "YAML safety policy extending the builtin rules")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		_ = logger.Sync()
		return err
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
