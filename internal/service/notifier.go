package service

import (
	"context"
	"time"

	domain "studio-booking/internal/domain/booking"
	interfaces "studio-booking/internal/interfaces/infrastructure"
	serviceInterfaces "studio-booking/internal/interfaces/service"
	"studio-booking/pkg/logger"
)

var _ serviceInterfaces.NotificationDispatcher = (*Notifier)(nil)

// Notifier hands booking outcomes to the notification queue. Enqueue
// failures are logged and swallowed; a lost notification never rolls
// back or fails a booking.
type Notifier struct {
	queue interfaces.QueueService
}

func NewNotifier(queue interfaces.QueueService) *Notifier {
	return &Notifier{queue: queue}
}

func (n *Notifier) NotifyBookingConfirmed(booking *domain.Booking) {
	n.enqueue(interfaces.NotifyBookingConfirmed, booking)
}

func (n *Notifier) NotifyBookingWaitlisted(booking *domain.Booking) {
	n.enqueue(interfaces.NotifyBookingWaitlisted, booking)
}

func (n *Notifier) NotifyBookingCanceled(booking *domain.Booking) {
	n.enqueue(interfaces.NotifyBookingCanceled, booking)
}

func (n *Notifier) NotifyWaitlistPromoted(booking *domain.Booking) {
	n.enqueue(interfaces.NotifyWaitlistPromoted, booking)
}

func (n *Notifier) enqueue(notificationType interfaces.NotificationType, booking *domain.Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	job := interfaces.NotificationJob{
		Type:             notificationType,
		BookingID:        booking.BookingID,
		ClassID:          booking.ClassID,
		UserID:           booking.UserID,
		WaitlistPosition: booking.WaitlistPosition,
		Timestamp:        time.Now(),
	}

	if err := n.queue.EnqueueNotification(ctx, job); err != nil {
		logger.Warn("Failed to enqueue %s notification for booking %s: %v", notificationType, booking.BookingID, err)
	}
}
