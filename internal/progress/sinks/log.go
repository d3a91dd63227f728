package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
)

// LogSink mirrors worker output and status changes into the structured log so
// a run can be audited after the panel has closed.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields. Output lines
// are logged at debug level; status changes at info.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageOutput:
			s.logger.Debug("worker output", append(fields, zap.String("line", evt.Text))...)
		case progress.StageRunStart:
			s.logger.Info("worker started", append(fields,
				zap.String("mode", evt.Mode),
				zap.String("platform", evt.Platform),
				zap.Strings("keywords", evt.Keywords),
			)...)
		case progress.StageRunDone:
			s.logger.Info("worker exited", append(fields,
				zap.Int("exit_code", evt.ExitCode),
				zap.String("outcome", string(evt.Outcome)),
				zap.Duration("dur", evt.Dur),
			)...)
		case progress.StageRunError:
			s.logger.Error("worker supervision failed", append(fields,
				zap.String("note", evt.Text),
				zap.Duration("dur", evt.Dur),
			)...)
		default:
			s.logger.Info("worker status", append(fields, zap.String("note", evt.Text))...)
		}
	}
	return nil
}

// Close implements the Sink interface; it syncs the logger.
func (s *LogSink) Close(context.Context) error {
	_ = s.logger.Sync()
	return nil
}
