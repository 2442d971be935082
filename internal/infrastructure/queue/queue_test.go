package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	interfaces "studio-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
)

// collectingSender records every delivered job.
type collectingSender struct {
	mu   sync.Mutex
	jobs []interfaces.NotificationJob
	done chan struct{}
	want int
}

func newCollectingSender(want int) *collectingSender {
	return &collectingSender{done: make(chan struct{}), want: want}
}

func (s *collectingSender) Send(_ context.Context, job interfaces.NotificationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	if len(s.jobs) == s.want {
		close(s.done)
	}
	return nil
}

func TestInMemoryQueue_DeliversJobs(t *testing.T) {
	q := NewInMemoryQueue(10, 2)
	sender := newCollectingSender(3)
	q.SetSender(sender)
	q.StartWorkers()
	defer q.StopWorkers()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		job := interfaces.NotificationJob{
			Type:      interfaces.NotifyBookingConfirmed,
			BookingID: uuid.New(),
			ClassID:   uuid.New(),
			UserID:    uuid.New(),
			Timestamp: time.Now(),
		}
		if err := q.EnqueueNotification(ctx, job); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for job delivery")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.jobs) != 3 {
		t.Errorf("Expected 3 delivered jobs, got %d", len(sender.jobs))
	}
}

func TestInMemoryQueue_FullBufferRejects(t *testing.T) {
	// No workers started, so the buffer fills and stays full.
	q := NewInMemoryQueue(1, 1)
	ctx := context.Background()

	first := interfaces.NotificationJob{Type: interfaces.NotifyBookingConfirmed, BookingID: uuid.New()}
	if err := q.EnqueueNotification(ctx, first); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	second := interfaces.NotificationJob{Type: interfaces.NotifyBookingCanceled, BookingID: uuid.New()}
	if err := q.EnqueueNotification(ctx, second); err == nil {
		t.Error("Expected error when queue is full, got nil")
	}
}

func TestInMemoryQueue_StartWithoutSenderIsNoop(t *testing.T) {
	q := NewInMemoryQueue(1, 1)

	// Must not panic and must remain stoppable.
	q.StartWorkers()
	q.StopWorkers()
}
