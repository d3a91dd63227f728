package cmd

import (
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/mediacrawler-panel/internal/panel"
)

// newPanelCmd creates the 'panel' subcommand, the interactive terminal UI.
func newPanelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "panel",
		Short: "Open the interactive control panel",
		Long: `Opens the terminal control panel: edit keywords, platform and storage
format, start and stop the crawler, watch its output live and browse the
result files it writes. Logs go to logging.file (crawlerpanel.log by default)
so they do not disturb the screen.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationTUI: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			return panel.Run(ctx, panel.Deps{
				Supervisor: appInstance.Supervisor(),
				Settings:   appInstance.Settings(),
				Explorer:   appInstance.Explorer(),
				History:    appInstance.History(),
				Opener:     appInstance.Opener(),
				Logger:     appInstance.Logger().Named("panel"),
			}, appInstance.Hub(), panelIO(cmd)...)
		},
	}
}

// panelIO routes the program through the command's streams when they are
// not the process's own, which lets tests drive the panel headless.
func panelIO(cmd *cobra.Command) []tea.ProgramOption {
	var opts []tea.ProgramOption
	if in := cmd.InOrStdin(); in != os.Stdin {
		opts = append(opts, tea.WithInput(in))
	}
	if out := cmd.OutOrStdout(); out != os.Stdout {
		opts = append(opts, tea.WithOutput(out))
	}
	return opts
}
