package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/mediacrawler-panel/internal/app"
	"github.com/JakeFAU/mediacrawler-panel/internal/config"
)

const settingsFile = `# crawler settings
PLATFORM = 'xhs'
KEYWORDS = '高铁司机'
SAVE_DATA_OPTION = 'csv'
CRAWL_PAGES = 10
`

const resultCSV = "\ufeffid,nickname,content,create_time,note_url\n" +
	"1,alice,hello,2024-01-01,https://www.xiaohongshu.com/explore/1\n" +
	"2,\"bob\nsmith\",quiet,2024-01-02,not a link\n"

// workspace is a worker directory with settings, a worker script and results.
type workspace struct {
	dir string
	cfg config.Config
}

func newWorkspace(t *testing.T, script string) workspace {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base_config.py"), []byte(settingsFile), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.sh"), []byte(script), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data", "xhs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "xhs", "search.csv"), []byte(resultCSV), 0o600))

	return workspace{dir: dir, cfg: config.Config{
		Worker:        config.WorkerConfig{Runtime: "sh", Entrypoint: "main.sh", Dir: dir, Encoding: "utf-8"},
		CrawlerConfig: config.CrawlerConfigConfig{Paths: []string{"config/base_config.py", "base_config.py"}},
		Results:       config.ResultsConfig{Dir: "data", Extension: ".csv", MaxRows: 1000},
		History:       config.HistoryConfig{Backend: config.HistorySQLite, SQLitePath: filepath.Join(dir, "history.db")},
		Hub:           config.HubConfig{BufferSize: 64, MaxBatchEvents: 8, MaxBatchWaitMs: 5},
	}}
}

// execute runs the CLI against ws and returns everything it printed. The
// application factory is swapped for the duration of the call, so tests in
// this file do not run in parallel.
func execute(t *testing.T, ws workspace, args ...string) (string, error) {
	t.Helper()
	prev := newApp
	newApp = func(ctx context.Context, _ string, _ bool) (App, error) {
		return app.New(ctx, ws.cfg, zaptest.NewLogger(t), app.WithRegisterer(prometheus.NewRegistry()))
	}
	t.Cleanup(func() { newApp = prev })

	var out bytes.Buffer
	root, shutdown := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(context.Background())
	shutdown()
	return out.String(), err
}

func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("worker script needs a POSIX shell")
	}
}

func TestConfigShow(t *testing.T) {
	ws := newWorkspace(t, "")

	out, err := execute(t, ws, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "- 高铁司机")
	assert.Contains(t, out, "platform: xhs")
	assert.Contains(t, out, "storage_format: csv")
	assert.Contains(t, out, filepath.Join(ws.dir, "base_config.py"))
}

func TestConfigSet(t *testing.T) {
	ws := newWorkspace(t, "")

	_, err := execute(t, ws, "config", "set", "--keywords", "coffee,tea", "--platform", "bili")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(ws.dir, "base_config.py"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `KEYWORDS = "coffee,tea"`)
	assert.Contains(t, string(data), `PLATFORM = "bili"`)
	assert.Contains(t, string(data), "SAVE_DATA_OPTION = \"csv\"")
	assert.Contains(t, string(data), "CRAWL_PAGES = 10")

	_, err = execute(t, ws, "config", "set", "--platform", "myspace")
	require.ErrorContains(t, err, "platform")

	_, err = execute(t, ws, "config", "set")
	require.ErrorContains(t, err, "nothing to set")
}

func TestResultsCommands(t *testing.T) {
	ws := newWorkspace(t, "")

	out, err := execute(t, ws, "results", "list")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join("xhs", "search.csv"))

	out, err = execute(t, ws, "results", "show", filepath.Join("xhs", "search.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "nickname")
	assert.NotContains(t, out, "content")
	assert.Contains(t, out, "bob smith")
	assert.Contains(t, out, "2 of 2 rows, 4 of 5 columns")

	out, err = execute(t, ws, "results", "link", filepath.Join("xhs", "search.csv"), "0")
	require.NoError(t, err)
	assert.Equal(t, "https://www.xiaohongshu.com/explore/1\n", out)

	out, err = execute(t, ws, "results", "link", filepath.Join("xhs", "search.csv"), "1")
	require.NoError(t, err)
	assert.Contains(t, out, "row 1 has no link")

	_, err = execute(t, ws, "results", "show", "missing.csv")
	require.ErrorContains(t, err, "missing.csv")
}

func TestRunStreamsOutputAndRecordsHistory(t *testing.T) {
	requirePOSIX(t)
	ws := newWorkspace(t, "echo 'crawling page 1'\necho 'warning' >&2\necho 'done'\n")

	out, err := execute(t, ws, "run", "--keywords", "coffee", "--platform", "dy")
	require.NoError(t, err)
	assert.Contains(t, out, "launching coffee on dy")
	assert.Contains(t, out, "crawling page 1")
	assert.Contains(t, out, "warning")
	assert.Contains(t, out, "worker finished successfully")

	data, err := os.ReadFile(filepath.Join(ws.dir, "base_config.py"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `KEYWORDS = "coffee"`)
	assert.Contains(t, string(data), `PLATFORM = "dy"`)

	out, err = execute(t, ws, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "coffee")
}

func TestRunReportsWorkerFailure(t *testing.T) {
	requirePOSIX(t)
	ws := newWorkspace(t, "echo 'login failed'\nexit 3\n")

	out, err := execute(t, ws, "run")
	require.ErrorContains(t, err, "code 3")
	assert.Contains(t, out, "login failed")

	out, err = execute(t, ws, "history", "--status", "failure")
	require.NoError(t, err)
	assert.Contains(t, out, "高铁司机")

	_, err = execute(t, ws, "history", "--status", "weird")
	require.ErrorContains(t, err, "unknown run status")
}

func TestRunRejectsEmptyKeywords(t *testing.T) {
	ws := newWorkspace(t, "")

	_, err := execute(t, ws, "run", "--keywords", " , ")
	require.ErrorContains(t, err, "invalid run configuration")
}

func TestInitDB(t *testing.T) {
	requirePOSIX(t)
	ws := newWorkspace(t, "echo \"init $1 $2\"\n")

	out, err := execute(t, ws, "init-db", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "init --init_db sqlite")

	_, err = execute(t, ws, "init-db", "oracle")
	require.ErrorContains(t, err, "backend")

	data, err := os.ReadFile(filepath.Join(ws.dir, "base_config.py"))
	require.NoError(t, err)
	assert.Equal(t, settingsFile, string(data), "init-db must not touch the settings")
}
