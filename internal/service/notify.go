package service

import (
	"context"

	"github.com/Freeeeeet/careconnect/internal/model"
	"go.uber.org/zap"
)

// publish отправляет событие диспетчеру; ошибки только логируются и не откатывают изменение
func publish(ctx context.Context, notifier Notifier, logger *zap.Logger, event model.Event) {
	if err := notifier.Notify(ctx, event); err != nil {
		logger.Warn("Failed to dispatch notification",
			zap.String("event_type", string(event.Type)),
			zap.Int64("entity_id", event.EntityID),
			zap.Error(err),
		)
	}
}
