package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	domain "studio-booking/internal/domain/booking"
	interfaces "studio-booking/internal/interfaces/infrastructure"
	serviceInterfaces "studio-booking/internal/interfaces/service"
	"studio-booking/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	UserBookingsTTL    = 60 * time.Second
	AvailableSpotsTTL  = 24 * time.Hour
	IdempotencyKeyTTL  = 24 * time.Hour
	defaultMaxRetries  = 3
	defaultRetryBackof = 25 * time.Millisecond
)

// Policy holds the booking policy knobs loaded from configuration.
type Policy struct {
	CancellationWindow time.Duration
	MaxTxRetries       int
	RetryBackoff       time.Duration
}

var _ serviceInterfaces.BookingService = (*BookingService)(nil)

// BookingService orchestrates booking, cancellation and listing. It
// holds no cached state across calls; correctness under concurrency
// comes entirely from the storage layer's per-class transaction.
type BookingService struct {
	classes         interfaces.ClassCatalog
	bookings        interfaces.BookingRepository
	views           interfaces.BookingViewRepository
	txManager       interfaces.TxManager
	cacheService    interfaces.CacheService
	idempotencyRepo interfaces.IdempotencyRepository
	dispatcher      serviceInterfaces.NotificationDispatcher
	capacity        *CapacityTracker
	waitlist        *WaitlistManager
	policy          Policy
}

type BookRequest = serviceInterfaces.BookRequest
type BookResponse = serviceInterfaces.BookResponse
type CancellationResult = serviceInterfaces.CancellationResult
type ClassAvailability = serviceInterfaces.ClassAvailability

func NewBookingService(
	classes interfaces.ClassCatalog,
	bookings interfaces.BookingRepository,
	views interfaces.BookingViewRepository,
	txManager interfaces.TxManager,
	cacheService interfaces.CacheService,
	idempotencyRepo interfaces.IdempotencyRepository,
	dispatcher serviceInterfaces.NotificationDispatcher,
	policy Policy,
) *BookingService {
	if policy.MaxTxRetries <= 0 {
		policy.MaxTxRetries = defaultMaxRetries
	}
	if policy.RetryBackoff <= 0 {
		policy.RetryBackoff = defaultRetryBackof
	}
	if policy.CancellationWindow <= 0 {
		policy.CancellationWindow = 2 * time.Hour
	}

	return &BookingService{
		classes:         classes,
		bookings:        bookings,
		views:           views,
		txManager:       txManager,
		cacheService:    cacheService,
		idempotencyRepo: idempotencyRepo,
		dispatcher:      dispatcher,
		capacity:        NewCapacityTracker(bookings),
		waitlist:        NewWaitlistManager(bookings),
		policy:          policy,
	}
}

// Book reserves a confirmed seat when capacity allows, otherwise places
// the user on the waitlist. Both outcomes are success; the response
// status tells them apart.
func (s *BookingService) Book(ctx context.Context, req *BookRequest) (*BookResponse, error) {
	logger.Info("Processing booking for user %s and class %s", req.UserID, req.ClassID)

	if req.IdempotencyKey != "" {
		if cached, err := s.replayIdempotent(ctx, req); err != nil {
			return nil, err
		} else if cached != nil {
			logger.Info("Returning stored response for idempotency key %s", req.IdempotencyKey)
			return cached, nil
		}
	}

	class, err := s.classes.GetByID(ctx, req.ClassID)
	if err != nil {
		return nil, internal(err)
	}
	if class == nil {
		return nil, notFound("class instance")
	}
	if !class.StartsAt.After(time.Now()) {
		return nil, policyViolation("class already started")
	}

	var booking *domain.Booking

	err = s.withRetry(ctx, func() error {
		booking = nil
		return s.txManager.Do(ctx, func(tx *gorm.DB) error {
			locked, err := s.classes.GetByIDForUpdate(ctx, tx, req.ClassID)
			if err != nil {
				return err
			}
			if locked == nil {
				return notFound("class instance")
			}
			if !locked.StartsAt.After(time.Now()) {
				return policyViolation("class already started")
			}

			active, err := s.bookings.FindActiveByUserAndClass(ctx, tx, req.UserID, req.ClassID)
			if err != nil {
				return err
			}
			if active != nil {
				return conflict("already booked")
			}

			reinstate, err := s.bookings.FindCanceledByUserAndClass(ctx, tx, req.UserID, req.ClassID)
			if err != nil {
				return err
			}

			spots, err := s.capacity.AvailableSpots(ctx, tx, locked)
			if err != nil {
				return err
			}

			if spots > 0 {
				booking, err = s.confirmSeat(ctx, tx, locked.ClassID, req.UserID, reinstate)
				return err
			}

			booking, err = s.waitlist.PlaceOnWaitlist(ctx, tx, locked.ClassID, req.UserID, reinstate)
			return err
		})
	})
	if err != nil {
		return nil, s.classify(err)
	}

	s.afterBookingWrite(booking)

	response := &BookResponse{
		BookingID:        booking.BookingID,
		ClassID:          booking.ClassID,
		Status:           booking.Status,
		WaitlistPosition: booking.WaitlistPosition,
	}

	if req.IdempotencyKey != "" {
		if err := s.storeIdempotent(ctx, req, response); err != nil {
			logger.Warn("Failed to store idempotency result: %v", err)
		}
	}

	return response, nil
}

// confirmSeat writes a confirmed booking, reusing the caller's prior
// canceled row when one exists.
func (s *BookingService) confirmSeat(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID, reinstate *domain.Booking) (*domain.Booking, error) {
	if reinstate != nil {
		reinstate.Status = domain.StatusConfirmed
		reinstate.WaitlistPosition = nil
		reinstate.CanceledAt = nil
		reinstate.UpdatedAt = time.Now()
		if err := s.bookings.Update(ctx, tx, reinstate); err != nil {
			return nil, err
		}
		logger.Info("Reinstated booking %s for user %s in class %s", reinstate.BookingID, userID, classID)
		return reinstate, nil
	}

	booking := &domain.Booking{
		BookingID: uuid.New(),
		ClassID:   classID,
		UserID:    userID,
		Status:    domain.StatusConfirmed,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.bookings.Create(ctx, tx, booking); err != nil {
		return nil, err
	}

	logger.Info("Confirmed booking %s for user %s in class %s", booking.BookingID, userID, classID)
	return booking, nil
}

// Cancel cancels the caller's booking. Canceling a confirmed booking
// promotes the head of the waitlist inside the same transaction, so a
// concurrent Book can never steal the freed seat.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID uuid.UUID) (*CancellationResult, error) {
	logger.Info("Processing cancellation of booking %s by user %s", bookingID, userID)

	existing, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, internal(err)
	}
	if existing == nil {
		return nil, notFound("booking")
	}
	if existing.UserID != userID {
		return nil, fmt.Errorf("%w: booking belongs to another user", ErrUnauthorized)
	}
	if existing.Status == domain.StatusCanceled {
		return nil, conflict("booking already canceled")
	}

	class, err := s.classes.GetByID(ctx, existing.ClassID)
	if err != nil {
		return nil, internal(err)
	}
	if class == nil {
		return nil, notFound("class instance")
	}
	if time.Until(class.StartsAt) < s.policy.CancellationWindow {
		return nil, policyViolation(fmt.Sprintf("cancellation closed within %s of class start", s.policy.CancellationWindow))
	}

	var canceled *domain.Booking
	var promoted *domain.Booking

	err = s.withRetry(ctx, func() error {
		canceled, promoted = nil, nil
		return s.txManager.Do(ctx, func(tx *gorm.DB) error {
			if _, err := s.classes.GetByIDForUpdate(ctx, tx, existing.ClassID); err != nil {
				return err
			}

			current, err := s.bookings.FindActiveByUserAndClass(ctx, tx, userID, existing.ClassID)
			if err != nil {
				return err
			}
			if current == nil || current.BookingID != bookingID {
				return conflict("booking already canceled")
			}

			wasConfirmed := current.Status == domain.StatusConfirmed
			wasWaitlisted := current.Status == domain.StatusWaitlisted

			now := time.Now()
			current.Status = domain.StatusCanceled
			current.WaitlistPosition = nil
			current.CanceledAt = &now
			current.UpdatedAt = now
			if err := s.bookings.Update(ctx, tx, current); err != nil {
				return err
			}
			canceled = current

			if wasConfirmed {
				promoted, err = s.waitlist.PromoteNext(ctx, tx, existing.ClassID)
				return err
			}
			if wasWaitlisted {
				return s.waitlist.Compact(ctx, tx, existing.ClassID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, s.classify(err)
	}

	s.afterCancellationWrite(canceled, promoted)

	result := &CancellationResult{Booking: canceled}
	if promoted != nil {
		result.PromotedBookingID = &promoted.BookingID
	}
	return result, nil
}

// List returns the user's bookings sorted by class start time, enriched
// with class display fields. Unfiltered lists are served from cache.
func (s *BookingService) List(ctx context.Context, userID uuid.UUID, filters domain.ListFilters) ([]*domain.BookingView, error) {
	unfiltered := filters.Status == nil && filters.From == nil && filters.To == nil

	if unfiltered {
		if cached, err := s.cacheService.GetUserBookings(ctx, userID); err == nil {
			var bookings []*domain.BookingView
			if err := json.Unmarshal(cached, &bookings); err == nil {
				return bookings, nil
			}
			logger.Warn("Failed to unmarshal cached bookings for user %s: %v", userID, err)
		}
	}

	bookings, err := s.views.ListByUser(ctx, userID, filters)
	if err != nil {
		return nil, internal(err)
	}

	if unfiltered {
		if err := s.cacheService.SetUserBookings(ctx, userID, bookings, UserBookingsTTL); err != nil {
			logger.Warn("Failed to cache bookings for user %s: %v", userID, err)
		}
	}

	return bookings, nil
}

// GetAvailability is the display path: the redis gauge backed by a live
// count on miss. Its result must never authorize a confirmed write.
func (s *BookingService) GetAvailability(ctx context.Context, classID uuid.UUID) (*ClassAvailability, error) {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		return nil, internal(err)
	}
	if class == nil {
		return nil, notFound("class instance")
	}

	spots, err := s.cacheService.GetAvailableSpots(ctx, classID)
	if err != nil {
		confirmed, countErr := s.bookings.CountByStatus(ctx, nil, classID, domain.StatusConfirmed)
		if countErr != nil {
			return nil, internal(countErr)
		}
		spots = class.Capacity - int(confirmed)
		if spots < 0 {
			spots = 0
		}
		if setErr := s.cacheService.SetAvailableSpots(ctx, classID, spots, AvailableSpotsTTL); setErr != nil {
			logger.Warn("Failed to cache available spots for class %s: %v", classID, setErr)
		}
	}

	waitlisted, err := s.bookings.CountByStatus(ctx, nil, classID, domain.StatusWaitlisted)
	if err != nil {
		return nil, internal(err)
	}

	return &ClassAvailability{
		ClassID:        classID,
		Capacity:       class.Capacity,
		AvailableSpots: spots,
		WaitlistSize:   int(waitlisted),
	}, nil
}

// ListUpcomingClasses returns classes that have not started yet, soonest
// first.
func (s *BookingService) ListUpcomingClasses(ctx context.Context) ([]*domain.ClassInstance, error) {
	classes, err := s.classes.GetUpcoming(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return classes, nil
}

// afterBookingWrite runs the post-commit side effects of Book: cache
// maintenance and the fire-and-forget notification.
func (s *BookingService) afterBookingWrite(booking *domain.Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.cacheService.DeleteAvailableSpots(ctx, booking.ClassID); err != nil {
		logger.Warn("Failed to invalidate spot gauge for class %s: %v", booking.ClassID, err)
	}
	if err := s.cacheService.InvalidateUserBookings(ctx, booking.UserID); err != nil {
		logger.Warn("Failed to invalidate booking list cache for user %s: %v", booking.UserID, err)
	}

	switch booking.Status {
	case domain.StatusConfirmed:
		s.dispatcher.NotifyBookingConfirmed(booking)
	case domain.StatusWaitlisted:
		s.dispatcher.NotifyBookingWaitlisted(booking)
	}
}

func (s *BookingService) afterCancellationWrite(canceled, promoted *domain.Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.cacheService.DeleteAvailableSpots(ctx, canceled.ClassID); err != nil {
		logger.Warn("Failed to invalidate spot gauge for class %s: %v", canceled.ClassID, err)
	}
	if err := s.cacheService.InvalidateUserBookings(ctx, canceled.UserID); err != nil {
		logger.Warn("Failed to invalidate booking list cache for user %s: %v", canceled.UserID, err)
	}

	s.dispatcher.NotifyBookingCanceled(canceled)

	if promoted != nil {
		if err := s.cacheService.InvalidateUserBookings(ctx, promoted.UserID); err != nil {
			logger.Warn("Failed to invalidate booking list cache for user %s: %v", promoted.UserID, err)
		}
		s.dispatcher.NotifyWaitlistPromoted(promoted)
	}
}

// withRetry retries fn on transient transaction failures (serialization
// conflicts, deadlocks) with jittered backoff. Policy and validation
// errors pass through on the first attempt.
func (s *BookingService) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.policy.MaxTxRetries; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}

		logger.Warn("Transaction conflict on attempt %d/%d: %v", attempt, s.policy.MaxTxRetries, err)

		backoff := time.Duration(attempt) * s.policy.RetryBackoff
		jitter := time.Duration(rand.Int63n(int64(s.policy.RetryBackoff)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return internal(ctx.Err())
		}
	}
	return conflict("concurrent booking activity, retries exhausted")
}

// isRetryable reports whether the error is benign contention worth
// retrying: a postgres serialization failure (40001) or deadlock (40P01).
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrPolicyViolation) || errors.Is(err, ErrUnauthorized) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "40P01") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access")
}

// classify folds storage errors into the service taxonomy while keeping
// already-classified errors untouched.
func (s *BookingService) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrPolicyViolation),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInternal):
		return err
	default:
		return internal(err)
	}
}

func (s *BookingService) replayIdempotent(ctx context.Context, req *BookRequest) (*BookResponse, error) {
	record, err := s.idempotencyRepo.GetByKey(ctx, req.IdempotencyKey)
	if err != nil || record == nil {
		return nil, nil
	}

	if record.IsExpired() {
		if err := s.idempotencyRepo.Delete(ctx, req.IdempotencyKey); err != nil {
			logger.Warn("Failed to delete expired idempotency key %s: %v", req.IdempotencyKey, err)
		}
		return nil, nil
	}

	if record.RequestHash != requestHash(req) {
		return nil, conflict("idempotency key already used with different request data")
	}

	var response BookResponse
	if err := json.Unmarshal([]byte(record.ResponseData), &response); err != nil {
		logger.Warn("Failed to unmarshal stored response for idempotency key %s: %v", req.IdempotencyKey, err)
		return nil, nil
	}
	return &response, nil
}

func (s *BookingService) storeIdempotent(ctx context.Context, req *BookRequest, response *BookResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	record := &domain.IdempotencyRecord{
		Key:          req.IdempotencyKey,
		UserID:       req.UserID,
		RequestHash:  requestHash(req),
		ResponseData: string(data),
		StatusCode:   201,
		ProcessedAt:  time.Now(),
		ExpiresAt:    time.Now().Add(IdempotencyKeyTTL),
	}
	return s.idempotencyRepo.Create(ctx, record)
}

func requestHash(req *BookRequest) string {
	payload, _ := json.Marshal(map[string]string{
		"class_id": req.ClassID.String(),
		"user_id":  req.UserID.String(),
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
