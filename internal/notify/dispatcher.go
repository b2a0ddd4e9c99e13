package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Freeeeeet/careconnect/internal/model"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrStopped   = errors.New("notification dispatcher is stopped")
)

const DefaultQueueSize = 256

// Sink доставляет событие в один канал (лог, стрим, мессенджер)
type Sink interface {
	Name() string
	Send(ctx context.Context, event model.Event) error
}

// Dispatcher принимает события из сервисов и раздаёт их всем sink'ам в фоне.
// Notify никогда не блокирует: при переполнении очереди возвращает ErrQueueFull.
type Dispatcher struct {
	queue    chan model.Event
	sinks    []Sink
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewDispatcher создаёт диспетчер с очередью заданного размера
func NewDispatcher(queueSize int, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		queue:    make(chan model.Event, queueSize),
		sinks:    sinks,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Notify ставит событие в очередь
func (d *Dispatcher) Notify(ctx context.Context, event model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-d.stopChan:
		return ErrStopped
	default:
	}

	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start запускает воркер доставки
func (d *Dispatcher) Start(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	d.logger.Info("Starting notification dispatcher", zap.Int("sinks", len(d.sinks)))
	go d.run(ctx)
}

// Stop останавливает воркер, предварительно доставив уже принятые события
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Info("Stopping notification dispatcher")
		close(d.stopChan)
		if d.started.Load() {
			<-d.done
		}
	})
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		case <-d.stopChan:
			d.drain(ctx)
			d.logger.Info("Notification dispatcher stopped")
			return
		case <-ctx.Done():
			d.logger.Info("Notification dispatcher cancelled", zap.Int("dropped", len(d.queue)))
			return
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

// deliver отдаёт событие каждому sink'у; ошибка одного не мешает остальным
func (d *Dispatcher) deliver(ctx context.Context, event model.Event) {
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, event); err != nil {
			d.logger.Warn("Notification sink failed",
				zap.String("sink", sink.Name()),
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", string(event.Type)),
				zap.Error(err),
			)
		}
	}
}
