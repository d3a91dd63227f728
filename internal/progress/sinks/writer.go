package sinks

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
)

// WriterSink prints every event as a "[15:04:05] text" line, the format the
// panel's log view uses. The run command points it at stdout.
type WriterSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: bufio.NewWriter(w)}
}

// Consume writes the batch and flushes once.
func (s *WriterSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		if !evt.Printable() {
			continue
		}
		if _, err := fmt.Fprintln(s.w, evt.Format()); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	return nil
}

// Close flushes any buffered output.
func (s *WriterSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}
