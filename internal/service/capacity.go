package service

import (
	"context"

	domain "studio-booking/internal/domain/booking"
	interfaces "studio-booking/internal/interfaces/infrastructure"

	"gorm.io/gorm"
)

// CapacityTracker derives available confirmed seats for a class instance
// from committed booking state. The transactional variant is only
// meaningful inside the same transaction that performs the subsequent
// write; a count observed outside the class row lock must never be used
// to authorize a confirmed insert.
type CapacityTracker struct {
	bookings interfaces.BookingRepository
}

func NewCapacityTracker(bookings interfaces.BookingRepository) *CapacityTracker {
	return &CapacityTracker{bookings: bookings}
}

// AvailableSpots returns capacity minus confirmed count, floored at zero,
// against the given transaction's snapshot.
func (t *CapacityTracker) AvailableSpots(ctx context.Context, tx *gorm.DB, class *domain.ClassInstance) (int, error) {
	confirmed, err := t.bookings.CountByStatus(ctx, tx, class.ClassID, domain.StatusConfirmed)
	if err != nil {
		return 0, err
	}

	spots := class.Capacity - int(confirmed)
	if spots < 0 {
		spots = 0
	}
	return spots, nil
}
