package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reminder часть RequestService, нужная планировщику
type Reminder interface {
	RemindStalePending(ctx context.Context, olderThan, window time.Duration) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	reminder Reminder
	interval time.Duration
	age      time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler создаёт планировщик напоминаний о заявках старше age
func NewScheduler(reminder Reminder, interval, age time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		reminder: reminder,
		interval: interval,
		age:      age,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("reminder_age", s.age),
	)

	go s.runReminderTask(ctx)
}

// Stop останавливает фоновые задачи
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
}

// runReminderTask периодически напоминает терапевтам о старых заявках
func (s *Scheduler) runReminderTask(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.remind(ctx)
		case <-s.stopChan:
			s.logger.Info("Reminder task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Reminder task cancelled")
			return
		}
	}
}

func (s *Scheduler) remind(ctx context.Context) {
	// окно равно интервалу: соседние тики не пересекаются
	count, err := s.reminder.RemindStalePending(ctx, s.age, s.interval)
	if err != nil {
		s.logger.Error("Failed to send pending request reminders", zap.Error(err))
		return
	}

	if count > 0 {
		s.logger.Info("Pending request reminders sent", zap.Int("count", count))
	}
}
