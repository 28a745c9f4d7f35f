package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftline/relay/config"
	"github.com/driftline/relay/errors"
	"github.com/driftline/relay/logger"
	"github.com/driftline/relay/relay"
	"github.com/driftline/relay/version"
)

// ServeCmd starts the relay daemon.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the sync relay daemon",
	Long: `Start the relay and serve the sync protocol until interrupted.

Configuration is read from --config, or from relay.toml in the working
directory or /etc/relayd, with RELAY_* environment variables taking
precedence. When --watch is set, edits to the config file hot-reload the
relay's limits without a restart.`,
	RunE: runServe,
}

var (
	serveConfigPath string
	serveWatch      bool
	servePort       int
)

func init() {
	ServeCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to config file")
	ServeCmd.Flags().BoolVar(&serveWatch, "watch", false, "Hot-reload limits when the config file changes")
	ServeCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
		if err := cfg.Validate(); err != nil {
			return errors.Wrap(err, "invalid port override")
		}
	}
	if cfg.Log.JSON {
		if err := logger.Initialize(true); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
	}
	log := logger.Logger

	log.Infow("Starting relayd",
		"version", version.Get().Short(),
		"port", cfg.Server.Port,
		"config", cfg.String(),
	)

	r := relay.New(cfg, log)
	if err := r.Start(context.Background()); err != nil {
		return errors.Wrap(err, "failed to start relay")
	}

	var watcher *config.Watcher
	if serveWatch && serveConfigPath != "" {
		watcher, err = config.NewWatcher(serveConfigPath)
		if err != nil {
			log.Warnw("Config watching unavailable", "error", err)
		} else {
			watcher.OnReload(r.ApplyLimits)
			watcher.Start()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Infow("Shutdown signal received", "signal", sig.String())

	if watcher != nil {
		watcher.Stop()
	}
	return r.Stop()
}
