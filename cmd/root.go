// Package cmd defines and implements the CLI commands for the crawlerpanel executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/app"
	"github.com/JakeFAU/mediacrawler-panel/internal/config"
	"github.com/JakeFAU/mediacrawler-panel/internal/desktop"
	"github.com/JakeFAU/mediacrawler-panel/internal/logging"
	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
	"github.com/JakeFAU/mediacrawler-panel/internal/results"
	"github.com/JakeFAU/mediacrawler-panel/internal/runconfig"
	"github.com/JakeFAU/mediacrawler-panel/internal/store"
	"github.com/JakeFAU/mediacrawler-panel/internal/supervisor"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// annotationTUI marks commands that own the terminal; their logs go to a file.
const annotationTUI = "tui"

// defaultTUILogFile is used when the panel runs without logging.file.
const defaultTUILogFile = "crawlerpanel.log"

// shutdownTimeout bounds how long shutdown waits for the worker and the hub.
const shutdownTimeout = 15 * time.Second

// App defines the services commands use. Tests inject an App built over
// temporary directories and an in-memory history.
type App interface {
	Close(ctx context.Context)
	Config() config.Config
	Logger() *zap.Logger
	Settings() *runconfig.Synchronizer
	Hub() *progress.Hub
	History() store.RunRepository
	Supervisor() *supervisor.Supervisor
	Explorer() *results.Explorer
	Opener() *desktop.Opener
}

// appFactory builds the App for one command invocation.
type appFactory func(ctx context.Context, cfgPath string, tui bool) (App, error)

// newApp is the application factory. It's a variable so tests can replace it.
var newApp appFactory = func(ctx context.Context, cfgPath string, tui bool) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := buildLogger(cfg.Logging, tui)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func buildLogger(cfg config.LoggingConfig, tui bool) (*zap.Logger, error) {
	file := cfg.File
	if tui && file == "" {
		file = defaultTUILogFile
	}
	if file != "" {
		return logging.NewToFile(cfg.Development, file)
	}
	return logging.New(cfg.Development)
}

// newRootCmd creates and configures the root command. The returned shutdown
// closes the services built for the invocation; it must run after Execute
// whether or not the command failed, so the hub drains every pending event.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile     string
		appInstance App
		closeOnce   sync.Once
	)
	shutdown := func() {
		closeOnce.Do(func() {
			if appInstance == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			appInstance.Close(ctx)
		})
	}

	cmd := &cobra.Command{
		Use:   "crawlerpanel",
		Short: "Control panel for the media crawler.",
		Long: `crawlerpanel configures, launches and monitors the media crawler and lets
you inspect the CSV files it produces. Run "crawlerpanel panel" for the
interactive terminal UI or use the subcommands from scripts.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Build the application services once the flags are parsed and inject
		// them into the command context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, tui := cmd.Annotations[annotationTUI]
			built, err := newApp(cmd.Context(), cfgFile, tui)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			appInstance = built
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, built))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./crawlerpanel.yaml or $HOME/.crawlerpanel/crawlerpanel.yaml)")

	cmd.AddCommand(
		newPanelCmd(),
		newRunCmd(),
		newInitDBCmd(),
		newConfigCmd(),
		newResultsCmd(),
		newHistoryCmd(),
	)
	return cmd, shutdown
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	root, shutdown := newRootCmd()
	err := root.ExecuteContext(context.Background())
	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "crawlerpanel:", err)
		os.Exit(1)
	}
}
