package realtime

import (
	"context"
	"log/slog"

	domain "github.com/edubridge/mastery-graph/internal/domain/realtime"
)

// LogChannel logs messages instead of delivering them. Used in
// development when Redis is disabled.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a new LogChannel.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger.With("component", "realtime_channel")}
}

// Push implements realtime.Channel.
func (c *LogChannel) Push(ctx context.Context, msg domain.Message) error {
	c.logger.Debug("realtime push (redis disabled)",
		"kind", msg.Kind.String(),
		"student_id", msg.StudentID,
	)
	return nil
}

var _ domain.Channel = (*LogChannel)(nil)
