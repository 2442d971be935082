package service

import (
	"context"
	"time"

	domain "studio-booking/internal/domain/booking"
	interfaces "studio-booking/internal/interfaces/infrastructure"
	"studio-booking/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WaitlistManager assigns and maintains waitlist ordering per class
// instance. All of its methods run inside the caller's transaction while
// the class row lock is held, so position assignment, promotion and
// compaction are serialized per class.
type WaitlistManager struct {
	bookings interfaces.BookingRepository
}

func NewWaitlistManager(bookings interfaces.BookingRepository) *WaitlistManager {
	return &WaitlistManager{bookings: bookings}
}

// PlaceOnWaitlist appends the user to the class waitlist at position N+1.
// When reinstate is non-nil, the user's prior canceled booking row is
// reused instead of inserting a new one.
func (m *WaitlistManager) PlaceOnWaitlist(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID, reinstate *domain.Booking) (*domain.Booking, error) {
	size, err := m.bookings.CountByStatus(ctx, tx, classID, domain.StatusWaitlisted)
	if err != nil {
		return nil, err
	}
	position := int(size) + 1

	if reinstate != nil {
		reinstate.Status = domain.StatusWaitlisted
		reinstate.WaitlistPosition = &position
		reinstate.CanceledAt = nil
		reinstate.UpdatedAt = time.Now()
		if err := m.bookings.Update(ctx, tx, reinstate); err != nil {
			return nil, err
		}
		return reinstate, nil
	}

	booking := &domain.Booking{
		BookingID:        uuid.New(),
		ClassID:          classID,
		UserID:           userID,
		Status:           domain.StatusWaitlisted,
		WaitlistPosition: &position,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := m.bookings.Create(ctx, tx, booking); err != nil {
		return nil, err
	}

	logger.Info("Placed user %s on waitlist for class %s at position %d", userID, classID, position)
	return booking, nil
}

// PromoteNext confirms the waitlisted booking with the smallest position
// (ties broken by earliest creation) and renumbers the remainder. Returns
// nil when the waitlist is empty.
func (m *WaitlistManager) PromoteNext(ctx context.Context, tx *gorm.DB, classID uuid.UUID) (*domain.Booking, error) {
	next, err := m.bookings.FindFirstWaitlisted(ctx, tx, classID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}

	next.Status = domain.StatusConfirmed
	next.WaitlistPosition = nil
	next.UpdatedAt = time.Now()
	if err := m.bookings.Update(ctx, tx, next); err != nil {
		return nil, err
	}

	if err := m.Compact(ctx, tx, classID); err != nil {
		return nil, err
	}

	logger.Info("Promoted booking %s to confirmed for class %s", next.BookingID, classID)
	return next, nil
}

// Compact renumbers the remaining waitlisted bookings for a class so
// their positions form a contiguous 1..N sequence. Positions are derived
// from a live query rather than decremented in place, so a drifted stored
// value cannot survive a compaction.
func (m *WaitlistManager) Compact(ctx context.Context, tx *gorm.DB, classID uuid.UUID) error {
	return m.bookings.CompactWaitlist(ctx, tx, classID)
}

// Size returns the current waitlist length within the transaction.
func (m *WaitlistManager) Size(ctx context.Context, tx *gorm.DB, classID uuid.UUID) (int, error) {
	size, err := m.bookings.CountByStatus(ctx, tx, classID, domain.StatusWaitlisted)
	return int(size), err
}
