package service

import (
	"context"
	"testing"
	"time"

	domain "studio-booking/internal/domain/booking"
	"studio-booking/internal/infrastructure/repository"

	"github.com/google/uuid"
)

func TestWaitlistManager_PositionsAreSequential(t *testing.T) {
	bookings := repository.NewMockBookingRepository()
	manager := NewWaitlistManager(bookings)
	classID := uuid.New()
	ctx := context.Background()

	for expected := 1; expected <= 3; expected++ {
		booking, err := manager.PlaceOnWaitlist(ctx, nil, classID, uuid.New(), nil)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if booking.WaitlistPosition == nil || *booking.WaitlistPosition != expected {
			t.Errorf("Expected position %d, got %v", expected, booking.WaitlistPosition)
		}
	}

	size, err := manager.Size(ctx, nil, classID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if size != 3 {
		t.Errorf("Expected waitlist size 3, got %d", size)
	}
}

func TestWaitlistManager_PromoteNextEmptyWaitlist(t *testing.T) {
	bookings := repository.NewMockBookingRepository()
	manager := NewWaitlistManager(bookings)

	promoted, err := manager.PromoteNext(context.Background(), nil, uuid.New())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if promoted != nil {
		t.Errorf("Expected nil promotion from empty waitlist, got %v", promoted)
	}
}

func TestWaitlistManager_PromoteNextTakesSmallestPosition(t *testing.T) {
	bookings := repository.NewMockBookingRepository()
	manager := NewWaitlistManager(bookings)
	classID := uuid.New()
	ctx := context.Background()

	first, _ := manager.PlaceOnWaitlist(ctx, nil, classID, uuid.New(), nil)
	second, _ := manager.PlaceOnWaitlist(ctx, nil, classID, uuid.New(), nil)

	promoted, err := manager.PromoteNext(ctx, nil, classID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if promoted.BookingID != first.BookingID {
		t.Errorf("Expected first entry promoted, got %s", promoted.BookingID)
	}
	if promoted.Status != domain.StatusConfirmed {
		t.Errorf("Expected promoted booking confirmed, got %s", promoted.Status)
	}

	remaining, _ := bookings.GetByID(ctx, second.BookingID)
	if remaining.WaitlistPosition == nil || *remaining.WaitlistPosition != 1 {
		t.Errorf("Expected remaining entry compacted to position 1, got %v", remaining.WaitlistPosition)
	}
}

func TestWaitlistManager_ReinstateReusesCanceledRow(t *testing.T) {
	bookings := repository.NewMockBookingRepository()
	manager := NewWaitlistManager(bookings)
	classID := uuid.New()
	userID := uuid.New()
	ctx := context.Background()

	now := time.Now()
	canceled := &domain.Booking{
		BookingID:  uuid.New(),
		ClassID:    classID,
		UserID:     userID,
		Status:     domain.StatusCanceled,
		CanceledAt: &now,
		CreatedAt:  now.Add(-time.Hour),
	}
	if err := bookings.Create(ctx, nil, canceled); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	reinstated, err := manager.PlaceOnWaitlist(ctx, nil, classID, userID, canceled)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reinstated.BookingID != canceled.BookingID {
		t.Errorf("Expected reused booking ID %s, got %s", canceled.BookingID, reinstated.BookingID)
	}

	stored, _ := bookings.GetByID(ctx, canceled.BookingID)
	if stored.Status != domain.StatusWaitlisted {
		t.Errorf("Expected waitlisted status, got %s", stored.Status)
	}
	if stored.CanceledAt != nil {
		t.Errorf("Expected cleared canceled_at, got %v", stored.CanceledAt)
	}
}
