package panel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/metrics"
	"github.com/JakeFAU/mediacrawler-panel/internal/results"
	"github.com/JakeFAU/mediacrawler-panel/internal/runconfig"
	"github.com/JakeFAU/mediacrawler-panel/internal/store"
	"github.com/JakeFAU/mediacrawler-panel/internal/supervisor"
)

// historyTimeout bounds the footer's history lookup.
const historyTimeout = 5 * time.Second

type focusArea int

const (
	focusKeywords focusArea = iota
	focusPlatform
	focusStorage
	focusBackend
	focusFiles
	focusData
	focusCount
)

var platformLabels = map[runconfig.Platform]string{
	runconfig.PlatformXHS:   "小红书",
	runconfig.PlatformDY:    "抖音",
	runconfig.PlatformKS:    "快手",
	runconfig.PlatformBili:  "B站",
	runconfig.PlatformWB:    "微博",
	runconfig.PlatformTieba: "贴吧",
	runconfig.PlatformZhihu: "知乎",
}

type (
	settingsMsg struct {
		cfg  runconfig.RunConfiguration
		path string
		err  error
	}
	launchedMsg struct {
		mode   string
		handle supervisor.Handle
		err    error
	}
	stoppedMsg struct {
		err error
	}
	scannedMsg struct {
		files []results.ResultFile
		err   error
	}
	loadedMsg struct {
		loaded results.Loaded
		err    error
	}
	historyMsg struct {
		runs []store.RunRecord
		err  error
	}
	linkOpenedMsg struct {
		url string
		err error
	}
	folderOpenedMsg struct {
		dir string
		err error
	}
)

// Model is the bubbletea model of the panel.
type Model struct {
	deps   Deps
	logger *zap.Logger
	keys   keyMap
	help   help.Model

	width  int
	height int
	focus  focusArea

	keywords    textinput.Model
	platform    int
	storage     int
	backend     int
	settingsAt  string
	spinner     spinner.Model
	logView     viewport.Model
	logLines    []string
	filesTable  table.Model
	files       []results.ResultFile
	dataTable   table.Model
	loadedFile  string
	loadedTotal int

	running bool
	runID   uuid.UUID
	status  string
	alert   string
	lastRun *store.RunRecord
}

// New builds the panel model. Sizes are placeholders until the first
// tea.WindowSizeMsg arrives.
func New(deps Deps) Model {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	kw := textinput.New()
	kw.Placeholder = "keywords, comma separated"
	kw.CharLimit = 512
	kw.Width = 40
	kw.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = statusStyle

	files := table.New(
		table.WithColumns([]table.Column{{Title: "file", Width: 30}, {Title: "modified", Width: 16}}),
		table.WithHeight(8),
	)
	data := table.New(table.WithHeight(8))

	return Model{
		deps:       deps,
		logger:     logger,
		keys:       defaultKeys(),
		help:       help.New(),
		keywords:   kw,
		spinner:    spin,
		logView:    viewport.New(80, 10),
		filesTable: files,
		dataTable:  data,
		status:     "idle",
	}
}

// Init loads the crawler settings, the result files and the last run.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		loadSettingsCmd(m.deps.Settings),
		scanCmd(m.deps.Explorer),
		historyCmd(m.deps.History),
	)
}

// formConfig returns the run configuration the form currently describes.
func (m Model) formConfig() runconfig.RunConfiguration {
	return runconfig.RunConfiguration{
		Keywords:      runconfig.ParseKeywords(m.keywords.Value()),
		Platform:      runconfig.Platforms[m.platform],
		StorageFormat: runconfig.StorageFormats[m.storage],
	}
}

// applySettings copies cfg into the form.
func (m *Model) applySettings(cfg runconfig.RunConfiguration) {
	m.keywords.SetValue(cfg.KeywordString())
	m.platform = indexOf(runconfig.Platforms, cfg.Platform)
	m.storage = indexOf(runconfig.StorageFormats, cfg.StorageFormat)
}

func indexOf[T comparable](list []T, v T) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return 0
}

func cycle(i, n, delta int) int {
	return ((i+delta)%n + n) % n
}

// appendLog adds lines to the output view, following the tail unless the
// user has scrolled up.
func (m *Model) appendLog(lines ...string) {
	if len(lines) == 0 {
		return
	}
	follow := m.logView.AtBottom() || len(m.logLines) == 0
	m.logLines = append(m.logLines, lines...)
	m.logView.SetContent(strings.Join(m.logLines, "\n"))
	if follow {
		m.logView.GotoBottom()
	}
}

// note logs a panel-originated message with the same timestamp format as
// worker output.
func (m *Model) note(format string, args ...any) {
	m.appendLog(fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...)))
}

// raise shows a blocking failure until the next key press.
func (m *Model) raise(format string, args ...any) {
	m.alert = fmt.Sprintf(format, args...)
	m.note("%s", m.alert)
}

func loadSettingsCmd(s Settings) tea.Cmd {
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		cfg, err := s.Load()
		return settingsMsg{cfg: cfg, path: s.Path(), err: err}
	}
}

func launchCmd(sup Supervisor, cfg runconfig.RunConfiguration) tea.Cmd {
	return func() tea.Msg {
		h, err := sup.Launch(context.Background(), cfg)
		return launchedMsg{mode: supervisor.ModeCrawl, handle: h, err: err}
	}
}

func initDBCmd(sup Supervisor, backend string) tea.Cmd {
	return func() tea.Msg {
		h, err := sup.InitDB(context.Background(), backend)
		return launchedMsg{mode: supervisor.InitMode(backend), handle: h, err: err}
	}
}

func stopCmd(sup Supervisor) tea.Cmd {
	return func() tea.Msg {
		return stoppedMsg{err: sup.Stop()}
	}
}

func scanCmd(e Explorer) tea.Cmd {
	if e == nil {
		return nil
	}
	return func() tea.Msg {
		files, err := e.Scan()
		return scannedMsg{files: files, err: err}
	}
}

func loadCmd(e Explorer, path string) tea.Cmd {
	return func() tea.Msg {
		loaded, err := e.Open(path)
		return loadedMsg{loaded: loaded, err: err}
	}
}

func historyCmd(h History) tea.Cmd {
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		runs, err := h.ListRuns(ctx, nil, 1, 0)
		return historyMsg{runs: runs, err: err}
	}
}

func openLinkCmd(o Opener, url string) tea.Cmd {
	return func() tea.Msg {
		err := o.Open(url)
		if err == nil {
			metrics.ObserveLinkOpened(url)
		}
		return linkOpenedMsg{url: url, err: err}
	}
}

func openFolderCmd(o Opener, dir string) tea.Cmd {
	return func() tea.Msg {
		return folderOpenedMsg{dir: dir, err: o.OpenFolder(dir)}
	}
}
