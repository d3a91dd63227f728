package panel

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
)

// eventsMsg carries one hub batch onto the program loop.
type eventsMsg []progress.Event

// Sink forwards hub batches to the program loop. Send blocks until the loop
// accepts the message, which keeps delivery lossless and ordered; once the
// program has exited Send returns immediately and the batch is dropped.
type Sink struct {
	send func(tea.Msg)
}

// NewSink wraps a tea.Program's Send.
func NewSink(send func(tea.Msg)) *Sink {
	return &Sink{send: send}
}

// Consume copies the batch and hands it to the program loop.
func (s *Sink) Consume(_ context.Context, batch []progress.Event) error {
	if len(batch) == 0 {
		return nil
	}
	s.send(eventsMsg(append([]progress.Event(nil), batch...)))
	return nil
}

// Close implements progress.Sink.
func (*Sink) Close(context.Context) error {
	return nil
}
