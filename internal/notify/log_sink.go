package notify

import (
	"context"

	"github.com/Freeeeeet/careconnect/internal/model"
	"go.uber.org/zap"
)

// LogSink пишет события в лог. Используется всегда, даже без внешних каналов.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, event model.Event) error {
	s.logger.Info("Notification",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.Int64("actor_id", event.ActorID),
		zap.Int64("entity_id", event.EntityID),
		zap.Int64s("subject_ids", event.SubjectIDs),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}
