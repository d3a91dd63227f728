package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/mediacrawler-panel/internal/runconfig"
)

// settingsView is what 'config show' prints.
type settingsView struct {
	SettingsFile string                     `yaml:"settings_file"`
	Run          runconfig.RunConfiguration `yaml:"run"`
	Worker       workerView                 `yaml:"worker"`
	ResultsDir   string                     `yaml:"results_dir"`
	History      string                     `yaml:"history_backend"`
}

type workerView struct {
	Command  []string `yaml:"command"`
	Dir      string   `yaml:"dir"`
	Encoding string   `yaml:"encoding"`
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change the crawler run settings",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current run settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			run, err := appInstance.Settings().Load()
			if err != nil {
				return fmt.Errorf("load crawler settings: %w", err)
			}
			view := settingsView{
				SettingsFile: appInstance.Settings().Path(),
				Run:          run,
				Worker: workerView{
					Command:  []string{cfg.Worker.Runtime, cfg.Worker.Entrypoint},
					Dir:      cfg.Worker.Dir,
					Encoding: cfg.Worker.Encoding,
				},
				ResultsDir: appInstance.Explorer().Dir(),
				History:    cfg.History.Backend,
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(view); err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}
			return enc.Close()
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Write keywords, platform or storage format to the crawler settings",
		Long: `Updates the crawler's settings file in place. Only the keyword, platform and
storage assignments are rewritten; comments and all other settings are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("keywords") && !cmd.Flags().Changed("platform") && !cmd.Flags().Changed("storage") {
				return fmt.Errorf("nothing to set: pass --keywords, --platform or --storage")
			}
			settings := appInstance.Settings()
			current, err := settings.Load()
			if err != nil {
				return fmt.Errorf("load crawler settings: %w", err)
			}
			next, err := flags.apply(cmd, current)
			if err != nil {
				return err
			}
			if err := next.Validate(); err != nil {
				return fmt.Errorf("invalid run configuration: %w", err)
			}
			if err := settings.Save(next); err != nil {
				return err
			}
			appInstance.Logger().Debug("settings saved from cli", zap.String("path", settings.Path()))
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s: keywords=%s platform=%s storage=%s\n",
				settings.Path(), next.KeywordString(), next.Platform, next.StorageFormat)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
