package progress

import "context"

// Sink consumes batches of events. Batches arrive in publish order from a single
// goroutine; implementations must honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Publisher accepts individual events; Hub satisfies this interface so the
// supervisor stays agnostic about how events are buffered or delivered.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, batch []Event) error

// Consume calls f.
func (f SinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

// Close implements Sink; it performs no action.
func (SinkFunc) Close(context.Context) error {
	return nil
}
