// internal/app/system/workers/notifier.go
package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/questhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/questhub/internal/app/system/metrics"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultQueueSize is used when NewNotifier is given a non-positive size.
const DefaultQueueSize = 256

// NotificationWriter persists one notification.
type NotificationWriter interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
}

// Notifier is a background worker that writes notifications off the request
// path. Notify never blocks: when the queue is full the event is dropped.
type Notifier struct {
	store        NotificationWriter
	log          *zap.Logger
	queue        chan models.Notification
	writeTimeout time.Duration
	stopCh       chan struct{}
	mu           sync.RWMutex // held for writing while stopping
	stopped      atomic.Bool
	started      atomic.Bool
	wg           sync.WaitGroup
}

// NewNotifier creates a notifier with a queue of the given size.
func NewNotifier(store NotificationWriter, logger *zap.Logger, size int) *Notifier {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Notifier{
		store:        store,
		log:          logger,
		queue:        make(chan models.Notification, size),
		writeTimeout: 5 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the background write loop.
func (w *Notifier) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	w.wg.Add(1)
	go w.run()
	w.log.Info("notification worker started", zap.Int("queue_size", cap(w.queue)))
}

// Stop refuses new events, writes what is already queued and waits for the
// worker to finish.
func (w *Notifier) Stop() {
	w.mu.Lock()
	swapped := w.stopped.CompareAndSwap(false, true)
	w.mu.Unlock()
	if !swapped {
		return
	}
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("notification worker stopped")
}

// Notify queues n for delivery and reports whether it was accepted.
func (w *Notifier) Notify(n models.Notification) bool {
	if n.RecipientID.IsZero() {
		return false
	}
	n.Message = htmlsanitize.StripTags(n.Message)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	// The stopped check and the send happen under one read lock, so an
	// accepted event is always queued before Stop closes stopCh and gets
	// drained.
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped.Load() {
		w.drop(n, "stopped")
		return false
	}
	select {
	case w.queue <- n:
		metrics.Notifications.WithLabelValues("enqueued").Inc()
		metrics.NotifyQueueDepth.Set(float64(len(w.queue)))
		return true
	default:
		w.drop(n, "queue full")
		return false
	}
}

// QueueDepth returns the number of queued events and the queue capacity.
func (w *Notifier) QueueDepth() (int, int) {
	return len(w.queue), cap(w.queue)
}

func (w *Notifier) drop(n models.Notification, reason string) {
	metrics.Notifications.WithLabelValues("dropped").Inc()
	w.log.Warn("notification dropped",
		zap.String("reason", reason),
		zap.String("type", n.Type),
		zap.String("recipient_id", n.RecipientID.Hex()))
}

func (w *Notifier) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			w.drain()
			return
		case n := <-w.queue:
			w.write(n)
		}
	}
}

func (w *Notifier) drain() {
	for {
		select {
		case n := <-w.queue:
			w.write(n)
		default:
			return
		}
	}
}

func (w *Notifier) write(n models.Notification) {
	metrics.NotifyQueueDepth.Set(float64(len(w.queue)))

	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	if _, err := w.store.Create(ctx, n); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		w.log.Error("failed to write notification",
			zap.Error(err),
			zap.String("type", n.Type),
			zap.String("recipient_id", n.RecipientID.Hex()))
		return
	}
	metrics.Notifications.WithLabelValues("delivered").Inc()
}
