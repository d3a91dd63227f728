package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls buffering and batching for the Hub.
//   - BufferSize: size of the internal channel (default 4096).
//   - MaxBatchEvents: flush once this many events queue (default 256).
//   - MaxBatchWait: flush after this duration even if the batch is small (default 50ms).
//   - SinkTimeout: per-sink timeout while flushing (default 10s).
//   - BaseContext: parent context passed to sink calls (defaults to context.Background()).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	BufferSize     int
	MaxBatchEvents int
	MaxBatchWait   time.Duration
	SinkTimeout    time.Duration
	BaseContext    context.Context
	Logger         *zap.Logger
}

const (
	defaultBufferSize     = 4096
	defaultMaxBatchEvents = 256
	defaultMaxBatchWait   = 50 * time.Millisecond
	defaultSinkTimeout    = 10 * time.Second
)

// ErrHubClosed is returned by Publish once Close has been called.
var ErrHubClosed = errors.New("progress hub closed")

// Hub is the hand-off between producers and sinks. Producers call Publish from
// any goroutine; one background goroutine batches events and calls every sink in
// registration order. Publish blocks while the buffer is full, so events are
// never dropped or reordered.
type Hub struct {
	cfg    Config
	events chan Event
	stopCh chan struct{}
	doneCh chan struct{}
	logger *zap.Logger
	closed atomic.Bool

	sinksMu sync.RWMutex
	sinks   []Sink

	// publishMu is held shared by every Publish in flight and exclusively by
	// Close while it marks the hub closed, so no accepted event misses the drain.
	publishMu sync.RWMutex

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub initializes a Hub and starts the background batching goroutine using
// the supplied sinks. The returned Hub is immediately ready to accept events.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatchEvents <= 0 {
		cfg.MaxBatchEvents = defaultMaxBatchEvents
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, cfg.BufferSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
	go h.run()
	return h
}

// Attach registers an additional sink. Batches flushed after Attach returns are
// delivered to it.
func (h *Hub) Attach(sink Sink) {
	if h == nil || sink == nil {
		return
	}
	h.sinksMu.Lock()
	defer h.sinksMu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// Publish enqueues an Event, waiting for buffer space if necessary. It returns
// ctx.Err() if ctx ends first and ErrHubClosed after Close.
func (h *Hub) Publish(ctx context.Context, evt Event) error {
	if h == nil {
		return nil
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return fmt.Errorf("invalid event: %w", err)
	}
	h.publishMu.RLock()
	defer h.publishMu.RUnlock()
	if h.closed.Load() {
		return ErrHubClosed
	}
	select {
	case h.events <- evt:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish event: %w", ctx.Err())
	}
}

// Close drains remaining events, flushes sinks, and blocks until the background
// goroutine exits. It is safe to call multiple times; subsequent calls are
// ignored once shutdown begins.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		// Blocked publishers still drain into the running loop.
		h.publishMu.Lock()
		h.closed.Store(true)
		h.publishMu.Unlock()
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

// batcher holds the events awaiting the next flush and the timer that bounds
// how long they wait.
type batcher struct {
	events []Event
	timer  *time.Timer
	armed  bool
}

func (b *batcher) disarm() {
	if b.armed && !b.timer.Stop() {
		select {
		case <-b.timer.C:
		default:
		}
	}
	b.armed = false
}

func (h *Hub) run() {
	defer close(h.doneCh)
	b := &batcher{
		events: make([]Event, 0, h.cfg.MaxBatchEvents),
		timer:  time.NewTimer(h.cfg.MaxBatchWait),
	}
	b.timer.Stop()
	for {
		select {
		case evt := <-h.events:
			h.add(b, evt)
		case <-b.timer.C:
			b.armed = false
			h.flushPending(b)
		case <-h.stopCh:
			b.disarm()
			h.drain(b)
			h.closeSinks()
			return
		}
	}
}

// add queues evt. A full batch is flushed at once, as is a batch ending in a
// status change.
func (h *Hub) add(b *batcher, evt Event) {
	b.events = append(b.events, evt)
	if len(b.events) >= h.cfg.MaxBatchEvents || evt.IsStatus() {
		b.disarm()
		h.flushPending(b)
		return
	}
	if !b.armed {
		b.timer.Reset(h.cfg.MaxBatchWait)
		b.armed = true
	}
}

// drain delivers everything published before Close.
func (h *Hub) drain(b *batcher) {
	for {
		select {
		case evt := <-h.events:
			b.events = append(b.events, evt)
			if len(b.events) >= h.cfg.MaxBatchEvents {
				h.flushPending(b)
			}
		default:
			h.flushPending(b)
			return
		}
	}
}

func (h *Hub) flushPending(b *batcher) {
	h.flush(b.events)
	b.events = b.events[:0]
}

func (h *Hub) snapshotSinks() []Sink {
	h.sinksMu.RLock()
	defer h.sinksMu.RUnlock()
	return append([]Sink(nil), h.sinks...)
}

func (h *Hub) flush(batch []Event) {
	if len(batch) == 0 {
		return
	}
	copyBatch := append([]Event(nil), batch...)
	baseCtx := h.cfg.BaseContext
	for _, sink := range h.snapshotSinks() {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(baseCtx, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, copyBatch); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.snapshotSinks() {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}
