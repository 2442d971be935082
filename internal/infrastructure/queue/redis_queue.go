package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	interfaces "studio-booking/internal/interfaces/infrastructure"
	"studio-booking/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	NotificationQueueKey  = "queue:notifications"
	DefaultDequeueTimeout = 2 * time.Second
	DefaultJobTimeout     = 10 * time.Second
	WorkerSleepDuration   = 50 * time.Millisecond
)

// RedisQueue backs the notification pipeline with a Redis list so jobs
// survive a process restart. Same worker semantics as the in-memory
// queue: at-most-once delivery, failures logged and dropped.
type RedisQueue struct {
	client redis.UniversalClient

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	sender interfaces.NotificationSender
}

func NewRedisQueue(client redis.UniversalClient, workers int) interfaces.QueueService {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisQueue{
		client:  client,
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		started: false,
	}
}

func (rq *RedisQueue) SetSender(sender interfaces.NotificationSender) {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	rq.sender = sender
}

func (rq *RedisQueue) StartWorkers() {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if rq.started {
		return
	}

	if rq.sender == nil {
		logger.Warn("Notification sender not set, workers cannot deliver jobs")
		return
	}

	logger.Info("Starting %d Redis notification workers", rq.workers)

	for i := 0; i < rq.workers; i++ {
		rq.wg.Add(1)
		go rq.notificationWorker(i)
	}

	rq.started = true
	logger.Info("Redis notification workers started successfully")
}

func (rq *RedisQueue) StopWorkers() {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if !rq.started {
		return
	}

	logger.Info("Stopping Redis notification workers...")
	rq.cancel()
	rq.wg.Wait()
	rq.started = false
	logger.Info("Redis notification workers stopped")
}

func (rq *RedisQueue) EnqueueNotification(ctx context.Context, job interfaces.NotificationJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal notification job: %w", err)
	}

	if err := rq.client.LPush(ctx, NotificationQueueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue notification job: %w", err)
	}

	logger.Debug("Enqueued %s notification for booking %s", job.Type, job.BookingID)
	return nil
}

func (rq *RedisQueue) dequeueNotification(ctx context.Context) (*interfaces.NotificationJob, error) {
	result, err := rq.client.BRPop(ctx, DefaultDequeueTimeout, NotificationQueueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		if err == context.DeadlineExceeded {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue notification job: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected Redis BRPOP result format")
	}

	var job interfaces.NotificationJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification job: %w", err)
	}

	return &job, nil
}

func (rq *RedisQueue) notificationWorker(workerID int) {
	defer rq.wg.Done()

	logger.Info("Redis notification worker %d started", workerID)

	for {
		select {
		case <-rq.ctx.Done():
			logger.Info("Redis notification worker %d stopped", workerID)
			return
		default:
			ctx, cancel := context.WithTimeout(context.Background(), DefaultDequeueTimeout)
			job, err := rq.dequeueNotification(ctx)
			cancel()

			if err != nil {
				logger.Error("Redis notification worker %d dequeue error: %v", workerID, err)
				time.Sleep(WorkerSleepDuration)
				continue
			}

			if job != nil {
				rq.deliverNotification(workerID, job)
			} else {
				time.Sleep(WorkerSleepDuration)
			}
		}
	}
}

func (rq *RedisQueue) deliverNotification(workerID int, job *interfaces.NotificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultJobTimeout)
	defer cancel()

	if err := rq.sender.Send(ctx, *job); err != nil {
		logger.Error("Redis notification worker %d failed to deliver %s for booking %s: %v",
			workerID, job.Type, job.BookingID, err)
		return
	}

	logger.Debug("Redis notification worker %d delivered %s for booking %s",
		workerID, job.Type, job.BookingID)
}

var _ interfaces.QueueService = (*RedisQueue)(nil)
