package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/grovetools/deskd/cli"
	"github.com/grovetools/deskd/command"
	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/internal/daemon/engine"
	"github.com/grovetools/deskd/internal/daemon/pidfile"
	"github.com/grovetools/deskd/internal/daemon/server"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/pkg/daemon"
	"github.com/grovetools/deskd/pkg/paths"
	"github.com/grovetools/deskd/pkg/profiling"
	"github.com/grovetools/deskd/tui/components/table"
	"github.com/grovetools/deskd/tui/theme"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewStartCmd returns the command running the daemon in the foreground.
func NewStartCmd() *cobra.Command {
	var prof profiling.Profiler
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long: `Start the deskd daemon in the foreground.

Every enabled service is constructed once. A service whose resource is missing
is reported as unavailable and the rest keep running. The daemon stops on
SIGINT or SIGTERM.

Examples:
  deskd start
  deskd start --config ~/dotfiles/deskd.toml -v
  deskd start --cpu-profile /tmp/deskd.cpu`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, &prof)
		},
	}
	prof.AddFlags(cmd)
	return cmd
}

func runStart(cmd *cobra.Command, prof *profiling.Profiler) error {
	opts := cli.GetOptions(cmd)
	cfg, cfgPath, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewLogger("deskd")
	var logCfg logging.Config
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		logger.WithError(err).Warn("Ignoring invalid logging section")
	}
	logging.Configure(logger.Logger, logCfg, time.Now())
	if opts.Verbose {
		logger.Logger.SetLevel(logrus.DebugLevel)
	}

	if err := prof.Start(); err != nil {
		return err
	}
	defer prof.Stop(logger)

	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create deskd directories: %w", err)
	}

	pidPath := paths.PidFilePath()
	if err := pidfile.Acquire(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(logger)
	eng.Construct(ctx, engine.Factories(cfg, command.NewRunner()))

	srv := server.New(eng, logger)
	srv.SetRunningConfig(daemon.RunningConfig{
		ConfigFile: cfgPath,
		StartedAt:  time.Now(),
		Services:   eng.Available(),
	})

	watchDir, explicit := paths.ConfigDir(), ""
	if opts.ConfigFile != "" {
		watchDir, explicit = filepath.Dir(cfgPath), cfgPath
	}
	watcher, err := daemon.NewConfigWatcher(watchDir, explicit, cfg.Watch.Debounce(), func(_ *config.Config, err error) {
		srv.ConfigReloaded(time.Now(), err)
	})
	if err != nil {
		logger.WithError(err).Warn("Config changes will not be detected")
	} else {
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logger.WithError(err).Warn("Config watcher stopped")
			}
		}()
	}

	engineDone := make(chan struct{})
	go func() {
		eng.Start(ctx)
		close(engineDone)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(socketPath(cfg))
	}()

	logger.WithField("pid", os.Getpid()).Info("Starting daemon")

	select {
	case <-ctx.Done():
		logger.Info("Received stop signal")
	case err := <-serveErr:
		stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Daemon.Timeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
	select {
	case <-engineDone:
	case <-shutdownCtx.Done():
		logger.Warn("Services did not stop within the shutdown timeout")
	}
	return nil
}

// NewStopCmd returns the command stopping a running daemon.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

// NewStatusCmd returns the command reporting the daemon and its services.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and service status",
		Long: `Show whether the daemon runs and the state of each service.

Exits non-zero when the daemon is stopped, for use in scripts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				os.Exit(1)
			}

			return withClient(cmd, func(ctx context.Context, client daemon.Client) error {
				statuses, err := client.Services(ctx)
				if err != nil {
					return err
				}
				if cli.GetOptions(cmd).JSONOutput {
					return printValue(cmd.OutOrStdout(), statuses)
				}

				t := theme.DefaultTheme
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (PID: %d)\n\n", t.Success.Render("Running"), pid)
				tbl := table.New("SERVICE", "STATE", "PASSES", "DETAIL")
				for _, s := range statuses {
					detail := s.LastError
					if s.Error != "" {
						detail = s.Error
					}
					tbl.Row(s.Name, t.RenderStatus(s.State, s.State), strconv.FormatUint(s.Passes, 10), detail)
				}
				fmt.Fprintln(out, tbl.Render())
				return nil
			})
		},
	}
}
