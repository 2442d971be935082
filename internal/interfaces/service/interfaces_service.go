package service

import (
	"context"

	domain "studio-booking/internal/domain/booking"

	"github.com/google/uuid"
)

// BookRequest carries everything needed to book a class seat.
// IdempotencyKey is optional; duplicate keys replay the stored response.
type BookRequest struct {
	ClassID        uuid.UUID `json:"class_id" validate:"required"`
	UserID         uuid.UUID `json:"user_id" validate:"required"`
	IdempotencyKey string    `json:"-"`
}

// BookResponse reports the booking outcome. A waitlisted outcome is a
// success, not an error; Status tells the caller which one they got.
type BookResponse struct {
	BookingID        uuid.UUID            `json:"booking_id"`
	ClassID          uuid.UUID            `json:"class_id"`
	Status           domain.BookingStatus `json:"status"`
	WaitlistPosition *int                 `json:"waitlist_position,omitempty"`
}

// CancellationResult reports a completed cancellation and, when the
// canceled booking was confirmed and the waitlist was non-empty, the id
// of the booking promoted into the freed seat.
type CancellationResult struct {
	Booking           *domain.Booking `json:"booking"`
	PromotedBookingID *uuid.UUID      `json:"promoted_booking_id,omitempty"`
}

// ClassAvailability is the display-path availability summary.
type ClassAvailability struct {
	ClassID        uuid.UUID `json:"class_id"`
	Capacity       int       `json:"capacity"`
	AvailableSpots int       `json:"available_spots"`
	WaitlistSize   int       `json:"waitlist_size"`
}

type BookingService interface {
	Book(ctx context.Context, req *BookRequest) (*BookResponse, error)
	Cancel(ctx context.Context, bookingID, userID uuid.UUID) (*CancellationResult, error)
	List(ctx context.Context, userID uuid.UUID, filters domain.ListFilters) ([]*domain.BookingView, error)
	GetAvailability(ctx context.Context, classID uuid.UUID) (*ClassAvailability, error)
	ListUpcomingClasses(ctx context.Context) ([]*domain.ClassInstance, error)
}

// NotificationDispatcher is the outbound boundary toward the messaging
// subsystem. Calls are asynchronous and best-effort; none of them block
// or fail a booking operation.
type NotificationDispatcher interface {
	NotifyBookingConfirmed(booking *domain.Booking)
	NotifyBookingWaitlisted(booking *domain.Booking)
	NotifyBookingCanceled(booking *domain.Booking)
	NotifyWaitlistPromoted(booking *domain.Booking)
}
