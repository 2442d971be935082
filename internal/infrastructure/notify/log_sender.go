package notify

import (
	"context"

	interfaces "studio-booking/internal/interfaces/infrastructure"
	"studio-booking/pkg/logger"
)

// LogSender writes notifications to the structured log. It is the
// default transport for development and for deployments without a
// message broker.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(_ context.Context, job interfaces.NotificationJob) error {
	fields := map[string]interface{}{
		"type":       string(job.Type),
		"booking_id": job.BookingID.String(),
		"class_id":   job.ClassID.String(),
		"user_id":    job.UserID.String(),
		"timestamp":  job.Timestamp,
	}
	if job.WaitlistPosition != nil {
		fields["waitlist_position"] = *job.WaitlistPosition
	}

	logger.WithFields(fields).Info("notification dispatched")
	return nil
}

var _ interfaces.NotificationSender = (*LogSender)(nil)
