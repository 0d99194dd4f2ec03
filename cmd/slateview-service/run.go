package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/slateview-cm/service/internal/config"
	"github.com/slateview-cm/service/internal/login1"
	"github.com/slateview-cm/service/internal/logging"
	"github.com/slateview-cm/service/internal/multisession"
	"github.com/slateview-cm/service/internal/procenv"
	"github.com/slateview-cm/service/internal/supervisor"
	"github.com/slateview-cm/service/internal/worker"
)

func runService() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := setupLogging(cfg); err != nil {
		return err
	}

	log := logging.L("service")
	log.Info("starting session service",
		"version", version,
		"serverPath", cfg.ServerPath,
		"multiSession", cfg.MultiSession,
	)

	conn, err := login1.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Subscribe before bootstrapping so sessions appearing during the
	// initial scan queue up instead of getting lost.
	events, err := login1.NewMonitor(conn).Start(ctx)
	if err != nil {
		return err
	}

	var registry supervisor.Registry
	if cfg.MultiSession {
		registry = multisession.NewRegistry(multisession.NewCommandMultiplexer(cfg.SessionHelperPath))
	}

	sup := supervisor.New(supervisor.Options{
		Inspector:    login1.NewInspector(conn),
		Resolver:     procenv.NewResolver(),
		Registry:     registry,
		Launcher:     worker.NewLauncher(),
		MultiSession: cfg.MultiSession,
		ServerPath:   cfg.ServerPath,
	})

	if err := sup.Run(ctx, events); err != nil {
		return err
	}

	log.Info("session service stopped")
	return nil
}

// setupLogging configures the global logger, optionally onto a rotating
// log file with SIGHUP-triggered reopen.
func setupLogging(cfg *config.Config) error {
	var output io.Writer
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		output = rw

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		go func() {
			for range hup {
				if err := rw.Reopen(); err != nil {
					fmt.Fprintf(os.Stderr, "reopen log file: %v\n", err)
				}
			}
		}()
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	return nil
}
