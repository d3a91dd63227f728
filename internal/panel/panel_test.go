package panel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
	"github.com/JakeFAU/mediacrawler-panel/internal/results"
	"github.com/JakeFAU/mediacrawler-panel/internal/runconfig"
	"github.com/JakeFAU/mediacrawler-panel/internal/store"
	"github.com/JakeFAU/mediacrawler-panel/internal/supervisor"
)

type mockSupervisor struct {
	mock.Mock
}

func (m *mockSupervisor) Launch(ctx context.Context, cfg runconfig.RunConfiguration) (supervisor.Handle, error) {
	args := m.Called(ctx, cfg)
	return args.Get(0).(supervisor.Handle), args.Error(1)
}

func (m *mockSupervisor) InitDB(ctx context.Context, backend string) (supervisor.Handle, error) {
	args := m.Called(ctx, backend)
	return args.Get(0).(supervisor.Handle), args.Error(1)
}

func (m *mockSupervisor) Stop() error {
	return m.Called().Error(0)
}

func (m *mockSupervisor) State() supervisor.State {
	return m.Called().Get(0).(supervisor.State)
}

type mockOpener struct {
	mock.Mock
}

func (m *mockOpener) Open(target string) error { return m.Called(target).Error(0) }

func (m *mockOpener) OpenFolder(dir string) error { return m.Called(dir).Error(0) }

type stubSettings struct {
	cfg runconfig.RunConfiguration
	err error
}

func (s stubSettings) Load() (runconfig.RunConfiguration, error) { return s.cfg, s.err }

func (stubSettings) Path() string { return "/opt/crawler/config/base_config.py" }

type stubExplorer struct {
	files  []results.ResultFile
	loaded results.Loaded
	err    error
	link   string
}

func (e *stubExplorer) Dir() string { return "/opt/crawler/data" }

func (e *stubExplorer) Scan() ([]results.ResultFile, error) { return e.files, nil }

func (e *stubExplorer) Open(string) (results.Loaded, error) { return e.loaded, e.err }

func (e *stubExplorer) Link(int) (string, bool) { return e.link, e.link != "" }

type stubHistory struct {
	runs []store.RunRecord
}

func (h stubHistory) ListRuns(context.Context, *store.RunStatus, int, int) ([]store.RunRecord, error) {
	return h.runs, nil
}

func newTestModel(sup *mockSupervisor, opener *mockOpener, explorer *stubExplorer) Model {
	if explorer == nil {
		explorer = &stubExplorer{}
	}
	m := New(Deps{
		Supervisor: sup,
		Settings:   stubSettings{cfg: runconfig.Default()},
		Explorer:   explorer,
		History:    stubHistory{},
		Opener:     opener,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 48})
	return next.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func ctrl(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func outputEvent(id uuid.UUID, text string) progress.Event {
	return progress.Event{RunID: id, TS: time.Now(), Stage: progress.StageOutput, Text: text}
}

func TestStartWithoutKeywordsRaisesAlert(t *testing.T) {
	t.Parallel()

	sup := &mockSupervisor{}
	m := newTestModel(sup, nil, nil)

	m, cmd := update(t, m, ctrl(tea.KeyCtrlS))
	require.Nil(t, cmd)
	assert.Contains(t, m.alert, "keywords")
	assert.Contains(t, m.View(), "press any key")
	sup.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything)

	// The next key only dismisses the alert.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Empty(t, m.alert)
	assert.Empty(t, m.keywords.Value())
}

func TestStartLaunchesFormConfiguration(t *testing.T) {
	t.Parallel()

	sup := &mockSupervisor{}
	want := runconfig.RunConfiguration{
		Keywords:      []string{"coffee", "tea"},
		Platform:      runconfig.PlatformDY,
		StorageFormat: runconfig.StorageCSV,
	}
	sup.On("Launch", mock.Anything, want).Return(supervisor.Handle{RunID: uuid.New()}, nil).Once()

	m := newTestModel(sup, nil, nil)
	m = typeText(t, m, "coffee, tea")
	m, _ = update(t, m, ctrl(tea.KeyTab))
	require.Equal(t, focusPlatform, m.focus)
	m, _ = update(t, m, ctrl(tea.KeyRight))

	m, cmd := update(t, m, ctrl(tea.KeyCtrlS))
	require.NotNil(t, cmd)
	assert.Equal(t, "launching...", m.status)

	msg := cmd()
	launched, ok := msg.(launchedMsg)
	require.True(t, ok)
	require.NoError(t, launched.err)
	sup.AssertExpectations(t)
}

func TestLaunchFailureRaisesAlert(t *testing.T) {
	t.Parallel()

	m := newTestModel(&mockSupervisor{}, nil, nil)
	m, _ = update(t, m, launchedMsg{err: &runconfig.ConfigIOError{Op: "stat", Path: "base_config.py", Err: errors.New("missing")}})
	assert.Contains(t, m.alert, "settings file not usable")
	assert.Equal(t, "idle", m.status)

	m, _ = update(t, m, ctrl(tea.KeyEsc))
	m.status = "running on xhs"
	m, _ = update(t, m, launchedMsg{err: supervisor.ErrBusy})
	assert.Equal(t, "a crawl is already running", m.alert)
	assert.Equal(t, "running on xhs", m.status, "a busy slot keeps the live run's status")
}

func TestEventsAppendInOrderAndDriveStatus(t *testing.T) {
	t.Parallel()

	runID := uuid.New()
	m := newTestModel(&mockSupervisor{}, nil, nil)

	m, cmd := update(t, m, eventsMsg{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart, Mode: supervisor.ModeCrawl, Platform: "xhs", Text: "launching"},
		outputEvent(runID, "line 1"),
		outputEvent(runID, "line 2"),
	})
	require.NotNil(t, cmd, "spinner should start")
	assert.True(t, m.running)
	assert.Equal(t, runID, m.runID)
	assert.Equal(t, "running on xhs", m.status)

	m, _ = update(t, m, eventsMsg{outputEvent(runID, "line 3")})
	require.Len(t, m.logLines, 4)
	assert.Contains(t, m.logLines[1], "line 1")
	assert.Contains(t, m.logLines[2], "line 2")
	assert.Contains(t, m.logLines[3], "line 3")

	m, _ = update(t, m, eventsMsg{{RunID: runID, TS: time.Now(), Stage: progress.StageStopping, Text: "stopping worker..."}})
	assert.Equal(t, "stopping...", m.status)

	m, cmd = update(t, m, eventsMsg{{
		RunID: runID, TS: time.Now(), Stage: progress.StageRunDone,
		Outcome: progress.OutcomeStopped, ExitCode: -15, Text: "worker stopped (code -15)",
	}})
	assert.False(t, m.running)
	assert.Equal(t, "worker stopped (code -15)", m.status)
	require.NotNil(t, cmd, "a finished run refreshes files and history")
}

func TestBlankOutputLinesAreShown(t *testing.T) {
	t.Parallel()

	runID := uuid.New()
	m := newTestModel(&mockSupervisor{}, nil, nil)
	before := len(m.logLines)

	m, _ = update(t, m, eventsMsg{outputEvent(runID, "a"), outputEvent(runID, ""), outputEvent(runID, "b")})
	require.Len(t, m.logLines, before+3)
	assert.True(t, strings.HasSuffix(m.logLines[before], "] a"))
	assert.True(t, strings.HasSuffix(m.logLines[before+1], "] "))
	assert.True(t, strings.HasSuffix(m.logLines[before+2], "] b"))
}

func TestScanLoadsNewestFile(t *testing.T) {
	t.Parallel()

	explorer := &stubExplorer{loaded: results.Loaded{
		File:  "/opt/crawler/data/xhs/new.csv",
		Table: results.Table{Columns: []string{"id"}, Rows: [][]string{{"1"}}},
		View:  results.Table{Columns: []string{"id"}, Rows: [][]string{{"1"}}},
	}}
	m := newTestModel(&mockSupervisor{}, nil, explorer)

	m, cmd := update(t, m, scannedMsg{files: []results.ResultFile{
		{Path: "/opt/crawler/data/xhs/new.csv", ModTime: time.Now()},
		{Path: "/opt/crawler/data/xhs/old.csv", ModTime: time.Now().Add(-time.Hour)},
	}})
	require.NotNil(t, cmd)
	loaded, ok := cmd().(loadedMsg)
	require.True(t, ok)
	require.NoError(t, loaded.err)

	m, _ = update(t, m, loaded)
	assert.Equal(t, "/opt/crawler/data/xhs/new.csv", m.loadedFile)
	assert.Equal(t, 0, m.filesTable.Cursor())
}

func TestEmptyScanIsReported(t *testing.T) {
	t.Parallel()

	m := newTestModel(&mockSupervisor{}, nil, nil)
	m, cmd := update(t, m, scannedMsg{files: []results.ResultFile{}})
	require.Nil(t, cmd)
	assert.Contains(t, m.logLines[len(m.logLines)-1], "no result files under /opt/crawler/data")
	assert.Empty(t, m.alert)
}

func TestInitDBEventStatus(t *testing.T) {
	t.Parallel()

	m := newTestModel(&mockSupervisor{}, nil, nil)
	m, _ = update(t, m, eventsMsg{{
		RunID: uuid.New(), TS: time.Now(), Stage: progress.StageRunStart, Mode: supervisor.InitMode("mysql"),
	}})
	assert.Equal(t, "initialising mysql database", m.status)
}

func TestInitDBUsesSelectedBackend(t *testing.T) {
	t.Parallel()

	sup := &mockSupervisor{}
	sup.On("InitDB", mock.Anything, "mysql").Return(supervisor.Handle{RunID: uuid.New()}, nil).Once()

	m := newTestModel(sup, nil, nil)
	for i := 0; i < int(focusBackend); i++ {
		m, _ = update(t, m, ctrl(tea.KeyTab))
	}
	m, _ = update(t, m, ctrl(tea.KeyRight))
	_, cmd := update(t, m, ctrl(tea.KeyCtrlD))
	require.NotNil(t, cmd)
	launched, ok := cmd().(launchedMsg)
	require.True(t, ok)
	assert.Equal(t, supervisor.InitMode("mysql"), launched.mode)
	sup.AssertExpectations(t)
}

func TestStopOnlyWhileRunning(t *testing.T) {
	t.Parallel()

	sup := &mockSupervisor{}
	sup.On("Stop").Return(nil).Once()
	m := newTestModel(sup, nil, nil)

	m, cmd := update(t, m, ctrl(tea.KeyCtrlX))
	require.Nil(t, cmd)
	assert.Contains(t, m.logLines[len(m.logLines)-1], "no crawl is running")

	m.running = true
	_, cmd = update(t, m, ctrl(tea.KeyCtrlX))
	require.NotNil(t, cmd)
	require.Equal(t, stoppedMsg{}, cmd())
	sup.AssertExpectations(t)
}

func TestFailedLoadKeepsPreviousTable(t *testing.T) {
	t.Parallel()

	m := newTestModel(&mockSupervisor{}, nil, nil)
	first := results.Loaded{
		File:  "/opt/crawler/data/a.csv",
		Table: results.Table{Columns: []string{"id", "note_url"}, Rows: [][]string{{"1", "https://x"}, {"2", "https://y"}}},
		View:  results.Table{Columns: []string{"id", "note_url"}, Rows: [][]string{{"1", "https://x"}, {"2", "https://y"}}},
	}
	m, _ = update(t, m, loadedMsg{loaded: first})
	require.Len(t, m.dataTable.Rows(), 2)

	parseErr := &results.ParseError{Path: "b.csv", Line: 3, Err: errors.New("wrong number of fields")}
	m, _ = update(t, m, loadedMsg{err: parseErr})
	assert.Len(t, m.dataTable.Rows(), 2)
	assert.Equal(t, "/opt/crawler/data/a.csv", m.loadedFile)
	assert.Empty(t, m.alert, "load failures are not modal")
	assert.Contains(t, m.logLines[len(m.logLines)-1], "line 3")
}

func TestOpenLink(t *testing.T) {
	t.Parallel()

	opener := &mockOpener{}
	opener.On("Open", "https://www.xiaohongshu.com/explore/1").Return(nil).Once()
	explorer := &stubExplorer{link: "https://www.xiaohongshu.com/explore/1"}
	m := newTestModel(&mockSupervisor{}, opener, explorer)

	_, cmd := update(t, m, ctrl(tea.KeyCtrlL))
	require.Nil(t, cmd, "nothing loaded yet")

	m, _ = update(t, m, loadedMsg{loaded: results.Loaded{
		File: "a.csv",
		View: results.Table{Columns: []string{"note_url"}, Rows: [][]string{{"https://www.xiaohongshu.com/explore/1"}}},
	}})
	_, cmd = update(t, m, ctrl(tea.KeyCtrlL))
	require.NotNil(t, cmd)
	msg, ok := cmd().(linkOpenedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	opener.AssertExpectations(t)

	explorer.link = ""
	m, cmd = update(t, m, ctrl(tea.KeyCtrlL))
	require.Nil(t, cmd)
	assert.Contains(t, m.logLines[len(m.logLines)-1], "no link")
}

func TestSettingsAndFilesPopulateView(t *testing.T) {
	t.Parallel()

	m := newTestModel(&mockSupervisor{}, nil, nil)
	m, _ = update(t, m, settingsMsg{
		cfg:  runconfig.RunConfiguration{Keywords: []string{"高铁司机"}, Platform: runconfig.PlatformZhihu, StorageFormat: runconfig.StorageJSON},
		path: "/opt/crawler/config/base_config.py",
	})
	assert.Equal(t, "高铁司机", m.keywords.Value())
	assert.Equal(t, runconfig.PlatformZhihu, m.formConfig().Platform)
	assert.Equal(t, runconfig.StorageJSON, m.formConfig().StorageFormat)

	m, _ = update(t, m, scannedMsg{files: []results.ResultFile{
		{Path: "/opt/crawler/data/xhs/search.csv", ModTime: time.Now()},
	}})
	require.Len(t, m.filesTable.Rows(), 1)
	assert.Equal(t, "xhs/search.csv", m.filesTable.Rows()[0][0])

	exit := 0
	m, _ = update(t, m, historyMsg{runs: []store.RunRecord{{
		StartedAt: time.Now(), Platform: "zhihu", Keywords: []string{"高铁司机"}, Status: store.RunSuccess, ExitCode: &exit, Lines: 42,
	}}})
	view := m.View()
	assert.Contains(t, view, "知乎 (zhihu)")
	assert.Contains(t, view, "42 lines")
}

func TestMissingSettingsIsModal(t *testing.T) {
	t.Parallel()

	m := newTestModel(&mockSupervisor{}, nil, nil)
	m, _ = update(t, m, settingsMsg{cfg: runconfig.Default(), err: errors.New("open base_config.py: no such file")})
	assert.Contains(t, m.alert, "not readable")
}

func TestSinkForwardsCopies(t *testing.T) {
	t.Parallel()

	var got []tea.Msg
	sink := NewSink(func(msg tea.Msg) { got = append(got, msg) })
	batch := []progress.Event{outputEvent(uuid.New(), "a"), outputEvent(uuid.New(), "b")}

	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Consume(context.Background(), nil))
	batch[0].Text = "mutated"

	require.Len(t, got, 1)
	events := got[0].(eventsMsg)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Text)
	require.NoError(t, sink.Close(context.Background()))
}

func TestQuitWorksWithAlert(t *testing.T) {
	t.Parallel()

	m := newTestModel(&mockSupervisor{}, nil, nil)
	m.alert = "something"
	_, cmd := update(t, m, ctrl(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
