package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifyBookingConfirmed  NotificationType = "booking_confirmed"
	NotifyBookingWaitlisted NotificationType = "booking_waitlisted"
	NotifyBookingCanceled   NotificationType = "booking_canceled"
	NotifyWaitlistPromoted  NotificationType = "waitlist_promoted"
)

// NotificationJob is the fire-and-forget message handed to the queue
// after a booking outcome commits. Delivery failures are logged, never
// retried indefinitely, and never affect the booking result.
type NotificationJob struct {
	Type             NotificationType `json:"type"`
	BookingID        uuid.UUID        `json:"booking_id"`
	ClassID          uuid.UUID        `json:"class_id"`
	UserID           uuid.UUID        `json:"user_id"`
	WaitlistPosition *int             `json:"waitlist_position,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
}

// NotificationSender delivers a single notification attempt.
type NotificationSender interface {
	Send(ctx context.Context, job NotificationJob) error
}

// QueueService decouples notification delivery from booking requests.
type QueueService interface {
	EnqueueNotification(ctx context.Context, job NotificationJob) error
	SetSender(sender NotificationSender)
	StartWorkers()
	StopWorkers()
}
