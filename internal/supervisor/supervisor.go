package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
	"github.com/JakeFAU/mediacrawler-panel/internal/runconfig"
)

// Config describes how the worker is invoked.
type Config struct {
	// Runtime is the interpreter or executable, e.g. "python".
	Runtime string
	// Entrypoint is the first argument, e.g. "main.py".
	Entrypoint string
	// Dir is the working directory of the worker.
	Dir string
	// Encoding of the worker's output: "utf-8" (default) or "gbk".
	Encoding string
	// Env is appended to the panel's own environment.
	Env []string
}

// ConfigStore persists the run configuration right before launch.
type ConfigStore interface {
	Save(cfg runconfig.RunConfiguration) error
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewRunID() (uuid.UUID, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

// timeOrderedIDs issues UUIDv7 run IDs, so history sorted by ID follows launch order.
type timeOrderedIDs struct{}

func (timeOrderedIDs) NewRunID() (uuid.UUID, error) { return uuid.NewV7() }

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(c Clock) Option {
	return func(s *Supervisor) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Supervisor) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithBaseContext sets the context used when the reader goroutine publishes.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Supervisor) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

// Supervisor owns the single worker slot.
type Supervisor struct {
	cfg      Config
	settings ConfigStore
	pub      progress.Publisher
	logger   *zap.Logger
	clock    Clock
	ids      IDGenerator
	baseCtx  context.Context

	mu       sync.Mutex
	state    State
	active   *run
	lastExit *ExitStatus
}

// run is the bookkeeping for one spawned worker.
type run struct {
	handle  Handle
	cmd     *exec.Cmd
	done    chan struct{}
	stopped atomic.Bool

	// pubMu orders the stopping notice against the final status event.
	pubMu    sync.Mutex
	finished bool
}

// New constructs an idle Supervisor. settings may be nil when only InitDB is used.
func New(cfg Config, settings ConfigStore, pub progress.Publisher, opts ...Option) *Supervisor {
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingUTF8
	}
	s := &Supervisor{
		cfg:      cfg,
		settings: settings,
		pub:      pub,
		logger:   zap.NewNop(),
		clock:    clockFunc(time.Now),
		ids:      timeOrderedIDs{},
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the slot state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle returns the live worker, if any.
func (s *Supervisor) Handle() (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Handle{}, false
	}
	return s.active.handle, true
}

// LastExit reports how the most recent run ended.
func (s *Supervisor) LastExit() (ExitStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastExit == nil {
		return ExitStatus{}, false
	}
	return *s.lastExit, true
}

// Wait blocks until the current worker (if any) has exited and the slot is
// free again.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	r := s.active
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for worker: %w", ctx.Err())
	}
}

// Launch persists cfg and starts a crawl. It fails with a runconfig.ValidationError
// when cfg cannot be launched, ErrBusy when a worker is active, a
// runconfig.ConfigIOError when the settings file cannot be written and a
// ProcessSpawnError when the process cannot be started. Nothing is spawned on
// any error and the slot is left Idle.
func (s *Supervisor) Launch(ctx context.Context, cfg runconfig.RunConfiguration) (Handle, error) {
	if err := cfg.Validate(); err != nil {
		return Handle{}, err
	}
	if err := ctx.Err(); err != nil {
		return Handle{}, fmt.Errorf("launch worker: %w", err)
	}
	if err := s.acquire(); err != nil {
		return Handle{}, err
	}
	if s.settings != nil {
		if err := s.settings.Save(cfg); err != nil {
			s.release()
			return Handle{}, fmt.Errorf("save run configuration: %w", err)
		}
	}
	return s.spawn(ModeCrawl, nil, cfg)
}

// InitDB starts the worker in database-initialisation mode. It shares the
// slot with Launch but needs no keywords and leaves the settings file alone.
func (s *Supervisor) InitDB(ctx context.Context, backend string) (Handle, error) {
	if !slices.Contains(InitBackends, backend) {
		return Handle{}, &runconfig.ValidationError{
			Field:  "backend",
			Reason: fmt.Sprintf("unknown database backend %q (want one of %s)", backend, strings.Join(InitBackends, ", ")),
		}
	}
	if err := ctx.Err(); err != nil {
		return Handle{}, fmt.Errorf("launch worker: %w", err)
	}
	if err := s.acquire(); err != nil {
		return Handle{}, err
	}
	return s.spawn(InitMode(backend), []string{"--init_db", backend}, runconfig.RunConfiguration{})
}

// Stop asks a running worker to terminate. The slot moves to Stopping and is
// released by the reader once the process has actually exited. Stop is a no-op
// unless the slot is Running.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning || s.active == nil {
		s.mu.Unlock()
		return nil
	}
	r := s.active
	s.state = StateStopping
	r.stopped.Store(true)
	s.mu.Unlock()

	s.logger.Info("stopping worker", zap.Stringer("run_id", r.handle.RunID), zap.Int("pid", r.handle.PID))
	r.pubMu.Lock()
	if !r.finished {
		s.publish(progress.Event{
			RunID: r.handle.RunID,
			TS:    s.clock.Now(),
			Stage: progress.StageStopping,
			Text:  "stopping worker...",
		})
	}
	r.pubMu.Unlock()

	if err := terminate(r.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("terminate worker failed", zap.Error(err))
		s.mu.Lock()
		if s.active == r && s.state == StateStopping {
			s.state = StateRunning
			r.stopped.Store(false)
		}
		s.mu.Unlock()
		return fmt.Errorf("terminate worker: %w", err)
	}
	return nil
}

func (s *Supervisor) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrBusy
	}
	s.state = StateLaunching
	return nil
}

func (s *Supervisor) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.active = nil
}

func (s *Supervisor) command(args []string) []string {
	return append([]string{s.cfg.Runtime, s.cfg.Entrypoint}, args...)
}

func (s *Supervisor) spawn(mode string, args []string, cfg runconfig.RunConfiguration) (Handle, error) {
	argv := s.command(args)
	runID, err := s.ids.NewRunID()
	if err != nil {
		s.release()
		return Handle{}, fmt.Errorf("allocate run id: %w", err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		s.release()
		return Handle{}, &ProcessSpawnError{Command: argv, Err: err}
	}
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // the worker command comes from operator config
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		s.release()
		s.logger.Error("worker spawn failed", zap.Strings("command", argv), zap.Error(err))
		return Handle{}, &ProcessSpawnError{Command: argv, Err: err}
	}
	// The child holds its own copy; closing ours lets the reader see EOF.
	_ = pw.Close()

	r := &run{
		handle: Handle{
			RunID:     runID,
			PID:       cmd.Process.Pid,
			Mode:      mode,
			Command:   argv,
			StartedAt: s.clock.Now(),
		},
		cmd:  cmd,
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.state = StateRunning
	s.active = r
	s.mu.Unlock()

	s.logger.Info("worker started",
		zap.Stringer("run_id", runID),
		zap.Int("pid", r.handle.PID),
		zap.String("mode", mode),
		zap.Strings("command", argv),
	)
	s.publish(progress.Event{
		RunID:    runID,
		TS:       r.handle.StartedAt,
		Stage:    progress.StageRunStart,
		Text:     startText(mode, argv, cfg),
		Mode:     mode,
		Platform: string(cfg.Platform),
		Keywords: append([]string(nil), cfg.Keywords...),
	})

	go s.supervise(r, pr)
	return r.handle, nil
}

// supervise drains the worker output, reaps the process and releases the slot.
func (s *Supervisor) supervise(r *run, out *os.File) {
	exit, err := s.pump(r, out)
	exit.RunID = r.handle.RunID
	exit.Duration = s.clock.Now().Sub(r.handle.StartedAt)
	if exit.Duration < 0 {
		exit.Duration = 0
	}

	r.pubMu.Lock()
	s.publish(finalEvent(r, exit, err, s.clock.Now()))
	r.finished = true
	r.pubMu.Unlock()

	s.mu.Lock()
	s.state = StateIdle
	s.active = nil
	s.lastExit = &exit
	s.mu.Unlock()
	close(r.done)

	fields := []zap.Field{
		zap.Stringer("run_id", r.handle.RunID),
		zap.Int("exit_code", exit.Code),
		zap.Bool("stopped", exit.Stopped),
		zap.Duration("dur", exit.Duration),
	}
	if err != nil {
		s.logger.Error("worker supervision failed", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info("worker exited", fields...)
}

// pump runs on the reader goroutine. Panics are converted into errors so the
// slot is always released.
func (s *Supervisor) pump(r *run, out *os.File) (exit ExitStatus, err error) {
	waited := false
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("output reader panicked: %v", rec)
			_ = out.Close()
			if !waited {
				_ = r.cmd.Process.Kill()
				exit = classify(r.cmd.Wait(), r.stopped.Load())
			}
		}
	}()

	readErr := s.readLines(r.handle.RunID, out)
	if readErr != nil {
		// Keep the pipe drained so the worker never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, out)
	}
	_ = out.Close()

	waitErr := r.cmd.Wait()
	waited = true
	exit = classify(waitErr, r.stopped.Load())
	if readErr != nil {
		return exit, fmt.Errorf("read worker output: %w", readErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return exit, fmt.Errorf("wait for worker: %w", waitErr)
	}
	return exit, nil
}

func (s *Supervisor) readLines(runID uuid.UUID, out io.Reader) error {
	lines := newLineReader(out, s.cfg.Encoding)
	for {
		text, err := lines.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		s.publish(progress.Event{
			RunID: runID,
			TS:    s.clock.Now(),
			Stage: progress.StageOutput,
			Text:  text,
		})
	}
}

// publish uses the base context so events outlive the launching call.
func (s *Supervisor) publish(evt progress.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(s.baseCtx, evt); err != nil {
		s.logger.Warn("progress event not delivered",
			zap.Stringer("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Error(err),
		)
	}
}

// classify maps a Wait result onto an ExitStatus. Signals are reported as the
// negated signal number.
func classify(waitErr error, stopped bool) ExitStatus {
	exit := ExitStatus{Stopped: stopped}
	if waitErr == nil {
		exit.Success = true
		return exit
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		exit.Code = -1
		return exit
	}
	exit.Code = exitErr.ExitCode()
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		exit.Code = -int(ws.Signal())
	}
	return exit
}

func finalEvent(r *run, exit ExitStatus, err error, now time.Time) progress.Event {
	evt := progress.Event{
		RunID:    r.handle.RunID,
		TS:       now,
		Mode:     r.handle.Mode,
		ExitCode: exit.Code,
		Dur:      exit.Duration,
	}
	if err != nil {
		evt.Stage = progress.StageRunError
		evt.Text = fmt.Sprintf("worker supervision failed: %v", err)
		return evt
	}
	evt.Stage = progress.StageRunDone
	evt.Outcome = Outcome(exit)
	evt.Text = StatusText(exit)
	return evt
}

// Outcome reduces an ExitStatus to the outcome recorded in events and history.
func Outcome(exit ExitStatus) progress.Outcome {
	switch {
	case exit.Stopped:
		return progress.OutcomeStopped
	case exit.Success:
		return progress.OutcomeSuccess
	default:
		return progress.OutcomeFailure
	}
}

// StatusText is the one-line summary shown when a run ends.
func StatusText(exit ExitStatus) string {
	switch Outcome(exit) {
	case progress.OutcomeStopped:
		return fmt.Sprintf("worker stopped (code %d)", exit.Code)
	case progress.OutcomeSuccess:
		return "worker finished successfully"
	default:
		return fmt.Sprintf("worker interrupted (code %d)", exit.Code)
	}
}

func startText(mode string, argv []string, cfg runconfig.RunConfiguration) string {
	if mode == ModeCrawl {
		return fmt.Sprintf("launching %s on %s: %s", cfg.KeywordString(), cfg.Platform, strings.Join(argv, " "))
	}
	return fmt.Sprintf("initialising database: %s", strings.Join(argv, " "))
}
