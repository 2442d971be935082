package repository

import (
	"context"

	domain "studio-booking/internal/domain/booking"
	interfaces "studio-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var _ interfaces.BookingRepository = (*BookingRepository)(nil)

// BookingRepository implements the durable booking store on GORM.
// Methods taking a tx run against the caller's transaction; a nil tx
// reads committed state through the base connection.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *BookingRepository) Create(ctx context.Context, tx *gorm.DB, booking *domain.Booking) error {
	return r.conn(tx).WithContext(ctx).Create(booking).Error
}

func (r *BookingRepository) Update(ctx context.Context, tx *gorm.DB, booking *domain.Booking) error {
	// Explicit column map forces NULLs through for cleared pointer
	// fields (waitlist_position on promotion, canceled_at on
	// reinstatement).
	return r.conn(tx).WithContext(ctx).
		Model(booking).
		Select("status", "waitlist_position", "canceled_at", "updated_at").
		Updates(map[string]interface{}{
			"status":            booking.Status,
			"waitlist_position": booking.WaitlistPosition,
			"canceled_at":       booking.CanceledAt,
			"updated_at":        booking.UpdatedAt,
		}).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var booking domain.Booking
	err := r.db.WithContext(ctx).First(&booking, "booking_id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) FindActiveByUserAndClass(ctx context.Context, tx *gorm.DB, userID, classID uuid.UUID) (*domain.Booking, error) {
	var booking domain.Booking
	err := r.conn(tx).WithContext(ctx).
		Where("user_id = ? AND class_id = ? AND status IN ?",
			userID, classID, []domain.BookingStatus{domain.StatusConfirmed, domain.StatusWaitlisted}).
		First(&booking).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

// FindCanceledByUserAndClass returns the user's most recently canceled
// booking for the class, the reinstatement candidate for a re-book.
func (r *BookingRepository) FindCanceledByUserAndClass(ctx context.Context, tx *gorm.DB, userID, classID uuid.UUID) (*domain.Booking, error) {
	var booking domain.Booking
	err := r.conn(tx).WithContext(ctx).
		Where("user_id = ? AND class_id = ? AND status = ?", userID, classID, domain.StatusCanceled).
		Order("canceled_at DESC").
		First(&booking).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) CountByStatus(ctx context.Context, tx *gorm.DB, classID uuid.UUID, status domain.BookingStatus) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&domain.Booking{}).
		Where("class_id = ? AND status = ?", classID, status).
		Count(&count).Error
	return count, err
}

// FindFirstWaitlisted returns the promotion candidate: smallest position,
// ties broken by earliest creation.
func (r *BookingRepository) FindFirstWaitlisted(ctx context.Context, tx *gorm.DB, classID uuid.UUID) (*domain.Booking, error) {
	var booking domain.Booking
	err := r.conn(tx).WithContext(ctx).
		Where("class_id = ? AND status = ?", classID, domain.StatusWaitlisted).
		Order("waitlist_position ASC, created_at ASC").
		First(&booking).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

// CompactWaitlist renumbers a class's waitlisted bookings to a contiguous
// 1..N sequence derived from the current ordering. Runs as one statement
// inside the caller's transaction.
func (r *BookingRepository) CompactWaitlist(ctx context.Context, tx *gorm.DB, classID uuid.UUID) error {
	const compactSQL = `
		UPDATE bookings b
		SET waitlist_position = ranked.rn, updated_at = NOW()
		FROM (
			SELECT booking_id,
			       ROW_NUMBER() OVER (ORDER BY waitlist_position ASC, created_at ASC) AS rn
			FROM bookings
			WHERE class_id = ? AND status = ?
		) ranked
		WHERE b.booking_id = ranked.booking_id
		  AND b.waitlist_position IS DISTINCT FROM ranked.rn`

	return r.conn(tx).WithContext(ctx).
		Exec(compactSQL, classID, domain.StatusWaitlisted).Error
}
