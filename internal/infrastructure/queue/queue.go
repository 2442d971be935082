package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	interfaces "studio-booking/internal/interfaces/infrastructure"
	"studio-booking/pkg/logger"
)

type Queue struct {
	notificationQueue chan interfaces.NotificationJob

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	sender interfaces.NotificationSender
}

func NewInMemoryQueue(bufferSize, workers int) interfaces.QueueService {
	ctx, cancel := context.WithCancel(context.Background())

	queue := &Queue{
		notificationQueue: make(chan interfaces.NotificationJob, bufferSize),
		workers:           workers,
		ctx:               ctx,
		cancel:            cancel,
		started:           false,
	}

	return queue
}

func (q *Queue) SetSender(sender interfaces.NotificationSender) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sender = sender
}

func (q *Queue) StartWorkers() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return
	}

	if q.sender == nil {
		logger.Warn("Notification sender not set, workers cannot deliver jobs")
		return
	}

	logger.Info("Starting %d notification workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.notificationWorker(i)
	}

	q.started = true
	logger.Info("Notification workers started successfully")
}

func (q *Queue) StopWorkers() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return
	}

	logger.Info("Stopping notification workers...")
	q.cancel()
	q.wg.Wait()
	q.started = false
	logger.Info("Notification workers stopped")
}

func (q *Queue) EnqueueNotification(ctx context.Context, job interfaces.NotificationJob) error {
	select {
	case q.notificationQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("notification queue is full")
	}
}

func (q *Queue) notificationWorker(workerID int) {
	defer q.wg.Done()

	logger.Info("Notification worker %d started", workerID)

	for {
		select {
		case <-q.ctx.Done():
			logger.Info("Notification worker %d stopped", workerID)
			return
		case job := <-q.notificationQueue:
			q.deliverNotification(workerID, job)
		}
	}
}

func (q *Queue) deliverNotification(workerID int, job interfaces.NotificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Delivery is at-most-once. A failed send is logged and dropped,
	// never retried and never surfaced to the booking caller.
	if err := q.sender.Send(ctx, job); err != nil {
		logger.Error("Notification worker %d failed to deliver %s for booking %s: %v",
			workerID, job.Type, job.BookingID, err)
		return
	}

	logger.Debug("Notification worker %d delivered %s for booking %s",
		workerID, job.Type, job.BookingID)
}

var _ interfaces.QueueService = (*Queue)(nil)
