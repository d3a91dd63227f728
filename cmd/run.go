package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/progress/sinks"
	"github.com/JakeFAU/mediacrawler-panel/internal/runconfig"
	"github.com/JakeFAU/mediacrawler-panel/internal/supervisor"
)

// runFlags are the overrides accepted by run and config set.
type runFlags struct {
	keywords string
	platform string
	storage  string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.keywords, "keywords", "k", "", "comma separated search keywords (default: from the crawler settings)")
	cmd.Flags().StringVarP(&f.platform, "platform", "p", "", "target platform: xhs, dy, ks, bili, wb, tieba or zhihu")
	cmd.Flags().StringVarP(&f.storage, "storage", "s", "", "storage format: csv, json, excel, db or sqlite")
}

// apply overlays the flags that were set on base.
func (f *runFlags) apply(cmd *cobra.Command, base runconfig.RunConfiguration) (runconfig.RunConfiguration, error) {
	cfg := base
	if cmd.Flags().Changed("keywords") {
		cfg.Keywords = runconfig.ParseKeywords(f.keywords)
	}
	if cmd.Flags().Changed("platform") {
		p, err := runconfig.ParsePlatform(f.platform)
		if err != nil {
			return cfg, &runconfig.ValidationError{Field: "platform", Reason: err.Error()}
		}
		cfg.Platform = p
	}
	if cmd.Flags().Changed("storage") {
		s, err := runconfig.ParseStorageFormat(f.storage)
		if err != nil {
			return cfg, &runconfig.ValidationError{Field: "storage_format", Reason: err.Error()}
		}
		cfg.StorageFormat = s
	}
	return cfg, nil
}

// newRunCmd creates the 'run' subcommand: launch one crawl and stream its
// output until it exits. Ctrl-C asks the worker to stop.
func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch the crawler and stream its output",
		Long: `Saves the keywords, platform and storage format into the crawler's settings
file, launches the crawler and prints its output until it exits. Values not
given as flags are taken from the settings file. Press Ctrl-C to stop the
crawler; a second Ctrl-C exits immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			current, err := appInstance.Settings().Load()
			if err != nil {
				appInstance.Logger().Warn("using defaults for unset fields", zap.Error(err))
			}
			cfg, err := flags.apply(cmd, current)
			if err != nil {
				return err
			}
			return superviseRun(cmd, appInstance, func(ctx context.Context) (supervisor.Handle, error) {
				return appInstance.Supervisor().Launch(ctx, cfg)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// newInitDBCmd creates the 'init-db' subcommand.
func newInitDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "init-db <sqlite|mysql>",
		Short:     "Run the crawler's database initialisation",
		Args:      cobra.ExactArgs(1),
		ValidArgs: supervisor.InitBackends,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return superviseRun(cmd, appInstance, func(ctx context.Context) (supervisor.Handle, error) {
				return appInstance.Supervisor().InitDB(ctx, args[0])
			})
		},
	}
	return cmd
}

// superviseRun starts a worker with start, echoes its events to the command's
// output and blocks until it exits. An interrupt stops the worker and waits
// for it; the failure of the worker itself is returned as an error.
func superviseRun(cmd *cobra.Command, appInstance App, start func(context.Context) (supervisor.Handle, error)) error {
	appInstance.Hub().Attach(sinks.NewWriterSink(cmd.OutOrStdout()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := appInstance.Supervisor()
	handle, err := start(ctx)
	if err != nil {
		return describeLaunchError(err)
	}
	logger := appInstance.Logger().With(zap.Stringer("run_id", handle.RunID))

	done := make(chan error, 1)
	go func() { done <- sup.Wait(context.Background()) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		// Restore default signal handling so a second interrupt kills the panel.
		stop()
		logger.Info("interrupt received; stopping worker")
		if serr := sup.Stop(); serr != nil {
			return fmt.Errorf("stop worker: %w", serr)
		}
		err = <-done
	}
	if err != nil {
		return err
	}

	exit, ok := sup.LastExit()
	if !ok || exit.RunID != handle.RunID {
		return errors.New("worker exit status unavailable")
	}
	if !exit.Success && !exit.Stopped {
		return fmt.Errorf("%s", supervisor.StatusText(exit))
	}
	return nil
}

func describeLaunchError(err error) error {
	var (
		vErr     *runconfig.ValidationError
		ioErr    *runconfig.ConfigIOError
		spawnErr *supervisor.ProcessSpawnError
	)
	switch {
	case errors.As(err, &vErr):
		return fmt.Errorf("invalid run configuration: %w", err)
	case errors.As(err, &ioErr):
		return fmt.Errorf("crawler settings file %s is not usable: %w", ioErr.Path, err)
	case errors.As(err, &spawnErr):
		return fmt.Errorf("crawler could not be started: %w", err)
	case errors.Is(err, supervisor.ErrBusy):
		return fmt.Errorf("a crawler run is already active: %w", err)
	default:
		return err
	}
}
