package panel

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
	"github.com/JakeFAU/mediacrawler-panel/internal/results"
	"github.com/JakeFAU/mediacrawler-panel/internal/runconfig"
	"github.com/JakeFAU/mediacrawler-panel/internal/supervisor"
)

// cellsPerWidthUnit scales results.ColumnWidth to terminal cells.
const cellsPerWidthUnit = 10

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventsMsg:
		return m.handleEvents(msg)

	case settingsMsg:
		m.settingsAt = msg.path
		m.applySettings(msg.cfg)
		if msg.err != nil {
			m.raise("crawler settings not readable (%v); using defaults", msg.err)
		}
		return m, nil

	case launchedMsg:
		if msg.err != nil {
			// A busy slot means another run owns the status line.
			if !errors.Is(msg.err, supervisor.ErrBusy) {
				m.status = "idle"
			}
			m.raise("%s", launchFailure(msg.err))
			return m, nil
		}
		m.logger.Debug("worker launched", zap.Stringer("run_id", msg.handle.RunID), zap.String("mode", msg.mode))
		return m, nil

	case stoppedMsg:
		if msg.err != nil {
			m.raise("could not stop the crawler: %v", msg.err)
		}
		return m, nil

	case scannedMsg:
		if msg.err != nil {
			m.note("result scan failed: %v", msg.err)
			return m, nil
		}
		m.setFiles(msg.files)
		if len(msg.files) == 0 {
			m.note("no result files under %s", m.deps.Explorer.Dir())
			return m, nil
		}
		// The newest file is selected and loaded.
		m.filesTable.SetCursor(0)
		return m, loadCmd(m.deps.Explorer, msg.files[0].Path)

	case loadedMsg:
		if msg.err != nil {
			// Background failure: keep whatever table is on screen.
			m.note("%v", msg.err)
			return m, nil
		}
		m.setData(msg.loaded)
		m.note("loaded %s: %d rows, showing %d columns", filepath.Base(msg.loaded.File),
			len(msg.loaded.Table.Rows), len(msg.loaded.View.Columns))
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.logger.Warn("run history unavailable", zap.Error(msg.err))
			return m, nil
		}
		if len(msg.runs) > 0 {
			last := msg.runs[0]
			m.lastRun = &last
		}
		return m, nil

	case linkOpenedMsg:
		if msg.err != nil {
			m.note("could not open %s: %v", msg.url, msg.err)
			return m, nil
		}
		m.note("opened %s", msg.url)
		return m, nil

	case folderOpenedMsg:
		if msg.err != nil {
			m.note("could not open %s: %v", msg.dir, msg.err)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.alert != "" {
		// The alert is modal: the first key press only dismisses it.
		m.alert = ""
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Start):
		return m.startCrawl()
	case key.Matches(msg, m.keys.Stop):
		return m.stop()
	case key.Matches(msg, m.keys.InitDB):
		return m.initDB()
	case key.Matches(msg, m.keys.Refresh):
		return m, scanCmd(m.deps.Explorer)
	case key.Matches(msg, m.keys.Folder):
		return m, openFolderCmd(m.deps.Opener, m.deps.Explorer.Dir())
	case key.Matches(msg, m.keys.Link):
		return m.openLink()
	case key.Matches(msg, m.keys.Next):
		m.setFocus(cycle(int(m.focus), int(focusCount), 1))
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.setFocus(cycle(int(m.focus), int(focusCount), -1))
		return m, nil
	}

	switch m.focus {
	case focusKeywords:
		if key.Matches(msg, m.keys.Enter) {
			return m.startCrawl()
		}
		var cmd tea.Cmd
		m.keywords, cmd = m.keywords.Update(msg)
		return m, cmd
	case focusPlatform, focusStorage, focusBackend:
		delta := 0
		switch {
		case key.Matches(msg, m.keys.Left):
			delta = -1
		case key.Matches(msg, m.keys.Right), key.Matches(msg, m.keys.Enter):
			delta = 1
		}
		m.shiftSelector(delta)
		return m, nil
	case focusFiles:
		if key.Matches(msg, m.keys.Enter) {
			return m.loadSelected()
		}
		var cmd tea.Cmd
		m.filesTable, cmd = m.filesTable.Update(msg)
		return m, cmd
	case focusData:
		if key.Matches(msg, m.keys.Enter) {
			return m.openLink()
		}
		var cmd tea.Cmd
		m.dataTable, cmd = m.dataTable.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) shiftSelector(delta int) {
	if delta == 0 {
		return
	}
	switch m.focus {
	case focusPlatform:
		m.platform = cycle(m.platform, len(runconfig.Platforms), delta)
	case focusStorage:
		m.storage = cycle(m.storage, len(runconfig.StorageFormats), delta)
	case focusBackend:
		m.backend = cycle(m.backend, len(supervisor.InitBackends), delta)
	}
}

func (m *Model) setFocus(f int) {
	m.focus = focusArea(f)
	m.keywords.Blur()
	m.filesTable.Blur()
	m.dataTable.Blur()
	switch m.focus {
	case focusKeywords:
		m.keywords.Focus()
	case focusFiles:
		m.filesTable.Focus()
	case focusData:
		m.dataTable.Focus()
	}
}

func (m Model) startCrawl() (tea.Model, tea.Cmd) {
	if m.running {
		m.note("a crawl is already running; stop it first")
		return m, nil
	}
	cfg := m.formConfig()
	if err := cfg.Validate(); err != nil {
		m.raise("cannot start: %v", err)
		return m, nil
	}
	m.status = "launching..."
	return m, launchCmd(m.deps.Supervisor, cfg)
}

func (m Model) initDB() (tea.Model, tea.Cmd) {
	if m.running {
		m.note("a crawl is already running; stop it first")
		return m, nil
	}
	backend := supervisor.InitBackends[m.backend]
	m.status = "launching..."
	return m, initDBCmd(m.deps.Supervisor, backend)
}

func (m Model) stop() (tea.Model, tea.Cmd) {
	if !m.running {
		m.note("no crawl is running")
		return m, nil
	}
	return m, stopCmd(m.deps.Supervisor)
}

func (m Model) loadSelected() (tea.Model, tea.Cmd) {
	i := m.filesTable.Cursor()
	if i < 0 || i >= len(m.files) {
		return m, nil
	}
	return m, loadCmd(m.deps.Explorer, m.files[i].Path)
}

func (m Model) openLink() (tea.Model, tea.Cmd) {
	if m.loadedFile == "" {
		m.note("load a result file first")
		return m, nil
	}
	link, ok := m.deps.Explorer.Link(m.dataTable.Cursor())
	if !ok {
		m.note("this row has no link")
		return m, nil
	}
	return m, openLinkCmd(m.deps.Opener, link)
}

// handleEvents appends output in order and applies status changes.
func (m Model) handleEvents(batch eventsMsg) (tea.Model, tea.Cmd) {
	lines := make([]string, 0, len(batch))
	var cmds []tea.Cmd
	for _, evt := range batch {
		if evt.Printable() {
			lines = append(lines, evt.Format())
		}
		switch evt.Stage {
		case progress.StageRunStart:
			wasRunning := m.running
			m.running = true
			m.runID = evt.RunID
			m.status = runningText(evt)
			if !wasRunning {
				cmds = append(cmds, m.spinner.Tick)
			}
		case progress.StageStopping:
			m.status = "stopping..."
		case progress.StageRunDone:
			m.running = false
			m.status = evt.Text
			cmds = append(cmds, scanCmd(m.deps.Explorer), historyCmd(m.deps.History))
		case progress.StageRunError:
			m.running = false
			m.status = "worker error: " + evt.Text
			cmds = append(cmds, scanCmd(m.deps.Explorer), historyCmd(m.deps.History))
		}
	}
	m.appendLog(lines...)
	return m, tea.Batch(cmds...)
}

func runningText(evt progress.Event) string {
	if backend, ok := supervisor.InitBackend(evt.Mode); ok {
		return "initialising " + backend + " database"
	}
	return "running on " + evt.Platform
}

func launchFailure(err error) string {
	var (
		vErr     *runconfig.ValidationError
		ioErr    *runconfig.ConfigIOError
		spawnErr *supervisor.ProcessSpawnError
	)
	switch {
	case errors.As(err, &vErr):
		return "cannot start: " + err.Error()
	case errors.As(err, &ioErr):
		return "crawler settings file not usable: " + err.Error()
	case errors.As(err, &spawnErr):
		return "crawler could not be started: " + err.Error()
	case errors.Is(err, supervisor.ErrBusy):
		return "a crawl is already running"
	default:
		return "launch failed: " + err.Error()
	}
}

func (m *Model) setFiles(files []results.ResultFile) {
	m.files = files
	rows := make([]table.Row, 0, len(files))
	for _, f := range files {
		name := f.Path
		if rel, err := filepath.Rel(m.deps.Explorer.Dir(), f.Path); err == nil {
			name = rel
		}
		rows = append(rows, table.Row{name, f.ModTime.Format("01-02 15:04")})
	}
	m.filesTable.SetRows(rows)
	if m.filesTable.Cursor() >= len(rows) {
		m.filesTable.SetCursor(0)
	}
}

func (m *Model) setData(loaded results.Loaded) {
	view := loaded.View
	cols := make([]table.Column, len(view.Columns))
	for i, c := range view.Columns {
		cols[i] = table.Column{Title: c, Width: results.ColumnWidth(c) / cellsPerWidthUnit}
	}
	rows := make([]table.Row, len(view.Rows))
	for i, r := range view.Rows {
		rows[i] = table.Row(r)
	}
	// Clear rows first: the table renders existing rows against new columns.
	m.dataTable.SetRows(nil)
	m.dataTable.SetColumns(cols)
	m.dataTable.SetRows(rows)
	m.dataTable.SetCursor(0)
	m.loadedFile = loaded.File
	m.loadedTotal = len(loaded.Table.Rows)
}

// resize distributes the window between the log and the two tables.
func (m *Model) resize() {
	const chrome = 10 // title, form, status, alert, help and borders
	avail := m.height - chrome
	if avail < 8 {
		avail = 8
	}
	logH := avail / 2
	tableH := avail - logH - 2

	m.logView.Width = max(m.width-2, 20)
	m.logView.Height = max(logH-2, 3)

	filesW := max(m.width/3, 24)
	m.filesTable.SetWidth(filesW - 2)
	m.filesTable.SetHeight(max(tableH, 3))
	m.filesTable.SetColumns([]table.Column{
		{Title: "file", Width: max(filesW-2-16-4, 10)},
		{Title: "modified", Width: 12},
	})
	m.dataTable.SetWidth(max(m.width-filesW-2, 20))
	m.dataTable.SetHeight(max(tableH, 3))
	m.keywords.Width = max(m.width/3, 20)
	m.help.Width = m.width
	m.logView.SetContent(strings.Join(m.logLines, "\n"))
}
