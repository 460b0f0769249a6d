package status

import (
	"context"
	"log/slog"
)

// LogSink reports unit-of-work progress to the log. The bot layer
// swaps in a sink that delivers to the user's chat; either way the
// report is best effort and may land nowhere.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(_ context.Context, userID string, message string) {
	s.logger.Info("status_report", "user_id", userID, "message", message)
}
