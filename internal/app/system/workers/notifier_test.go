package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	mu    sync.Mutex
	saved []models.Notification
	err   error
	gate  chan struct{}
}

func (f *fakeWriter) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Notification{}, f.err
	}
	f.saved = append(f.saved, n)
	return n, nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func note(msg string) models.Notification {
	return models.Notification{
		SenderID:    primitive.NewObjectID(),
		RecipientID: primitive.NewObjectID(),
		Type:        models.NotifyEvidence,
		Message:     msg,
	}
}

func TestNotifier_DeliversQueuedOnStop(t *testing.T) {
	w := &fakeWriter{}
	n := NewNotifier(w, zap.NewNop(), 8)
	n.Start()

	for i := 0; i < 5; i++ {
		if !n.Notify(note("hello")) {
			t.Fatalf("Notify %d rejected", i)
		}
	}
	n.Stop()

	if got := w.count(); got != 5 {
		t.Errorf("delivered %d, want 5", got)
	}
}

func TestNotifier_DropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	w := &fakeWriter{}
	n := NewNotifier(w, zap.New(core), 1)

	// Not started: the single slot fills and the next event is dropped.
	if !n.Notify(note("first")) {
		t.Fatal("first Notify rejected")
	}
	if n.Notify(note("second")) {
		t.Fatal("expected second Notify to be dropped")
	}
	if logs.FilterMessage("notification dropped").Len() != 1 {
		t.Errorf("expected one drop warning, got %d", logs.FilterMessage("notification dropped").Len())
	}
	if depth, capacity := n.QueueDepth(); depth != 1 || capacity != 1 {
		t.Errorf("QueueDepth() = %d/%d, want 1/1", depth, capacity)
	}

	n.Start()
	n.Stop()
	if got := w.count(); got != 1 {
		t.Errorf("delivered %d, want 1", got)
	}

	if n.Notify(note("late")) {
		t.Error("expected Notify after Stop to be rejected")
	}
}

func TestNotifier_NeverBlocks(t *testing.T) {
	w := &fakeWriter{gate: make(chan struct{})}
	n := NewNotifier(w, zap.NewNop(), 2)
	n.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			n.Notify(note("burst"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a stalled writer")
	}

	close(w.gate)
	n.Stop()
}

func TestNotifier_StoreFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	w := &fakeWriter{err: errors.New("write failed")}
	n := NewNotifier(w, zap.New(core), 4)
	n.Start()

	if !n.Notify(note("x")) {
		t.Fatal("Notify rejected")
	}
	n.Stop()

	if logs.FilterMessage("failed to write notification").Len() != 1 {
		t.Error("expected write failure to be logged")
	}
}

func TestNotifier_SanitizesAndSkipsAnonymous(t *testing.T) {
	w := &fakeWriter{}
	n := NewNotifier(w, zap.NewNop(), 4)
	n.Start()

	if n.Notify(models.Notification{Type: models.NotifySystem, Message: "nobody"}) {
		t.Error("expected notification without recipient to be rejected")
	}
	n.Notify(note("<b>Task</b> submitted"))
	n.Stop()

	if w.count() != 1 {
		t.Fatalf("delivered %d, want 1", w.count())
	}
	if got := w.saved[0].Message; got != "Task submitted" {
		t.Errorf("Message: got %q", got)
	}
	if w.saved[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestNotifier_AcceptedEventsSurviveConcurrentStop(t *testing.T) {
	for round := 0; round < 20; round++ {
		w := &fakeWriter{}
		n := NewNotifier(w, zap.NewNop(), 1024)
		n.Start()

		var accepted sync.WaitGroup
		var mu sync.Mutex
		ok := 0
		for i := 0; i < 8; i++ {
			accepted.Add(1)
			go func() {
				defer accepted.Done()
				for j := 0; j < 50; j++ {
					if n.Notify(note("race")) {
						mu.Lock()
						ok++
						mu.Unlock()
					}
				}
			}()
		}
		n.Stop()
		accepted.Wait()

		if got := w.count(); got != ok {
			t.Fatalf("round %d: delivered %d, accepted %d", round, got, ok)
		}
	}
}
