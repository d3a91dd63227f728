// Package panel is the interactive terminal front end of the control panel.
//
// The bubbletea program loop is the only goroutine that mutates UI state.
// Worker output reaches it through a progress sink that forwards each batch
// with Program.Send; supervisor calls, result scans and loads run as tea.Cmd
// goroutines and report back as messages. Nothing on the program loop ever
// waits on the progress hub.
package panel

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
	"github.com/JakeFAU/mediacrawler-panel/internal/results"
	"github.com/JakeFAU/mediacrawler-panel/internal/runconfig"
	"github.com/JakeFAU/mediacrawler-panel/internal/store"
	"github.com/JakeFAU/mediacrawler-panel/internal/supervisor"
)

// Supervisor is the part of supervisor.Supervisor the panel drives.
type Supervisor interface {
	Launch(ctx context.Context, cfg runconfig.RunConfiguration) (supervisor.Handle, error)
	InitDB(ctx context.Context, backend string) (supervisor.Handle, error)
	Stop() error
	State() supervisor.State
}

// Settings reads the crawler settings file that seeds the form.
type Settings interface {
	Load() (runconfig.RunConfiguration, error)
	Path() string
}

// Explorer lists and loads result files.
type Explorer interface {
	Dir() string
	Scan() ([]results.ResultFile, error)
	Open(path string) (results.Loaded, error)
	Link(i int) (string, bool)
}

// History lists recorded runs.
type History interface {
	ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.RunRecord, error)
}

// Opener hands URLs and folders to the desktop.
type Opener interface {
	Open(target string) error
	OpenFolder(dir string) error
}

// Deps are the services behind the panel.
type Deps struct {
	Supervisor Supervisor
	Settings   Settings
	Explorer   Explorer
	History    History
	Opener     Opener
	Logger     *zap.Logger
}

// Hub is where the panel subscribes to run events.
type Hub interface {
	Attach(sink progress.Sink)
}

// Run shows the panel until the user quits or ctx ends. The panel attaches
// its sink to hub before the first event can be published.
func Run(ctx context.Context, deps Deps, hub Hub, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(deps), opts...)
	hub.Attach(NewSink(p.Send))

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run panel: %w", err)
	}
	return nil
}
