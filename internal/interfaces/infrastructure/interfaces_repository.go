package interfaces

import (
	"context"

	domain "studio-booking/internal/domain/booking"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TxManager runs a function inside a storage transaction. All booking
// mutations for a class instance happen inside one transaction holding a
// row lock on that class, which is what serializes concurrent requests.
type TxManager interface {
	Do(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ClassCatalog is the read-only source of class-instance metadata.
// GetByIDForUpdate locks the class row for the duration of the enclosing
// transaction; every booking mutation for a class goes through that lock.
type ClassCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ClassInstance, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.ClassInstance, error)
	GetUpcoming(ctx context.Context) ([]*domain.ClassInstance, error)
}

// BookingRepository is the durable store for Booking records. Methods
// taking a tx operate on the transaction's snapshot; lookups that pass a
// nil tx read committed state directly.
type BookingRepository interface {
	Create(ctx context.Context, tx *gorm.DB, booking *domain.Booking) error
	Update(ctx context.Context, tx *gorm.DB, booking *domain.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	FindActiveByUserAndClass(ctx context.Context, tx *gorm.DB, userID, classID uuid.UUID) (*domain.Booking, error)
	FindCanceledByUserAndClass(ctx context.Context, tx *gorm.DB, userID, classID uuid.UUID) (*domain.Booking, error)
	CountByStatus(ctx context.Context, tx *gorm.DB, classID uuid.UUID, status domain.BookingStatus) (int64, error)
	FindFirstWaitlisted(ctx context.Context, tx *gorm.DB, classID uuid.UUID) (*domain.Booking, error)
	CompactWaitlist(ctx context.Context, tx *gorm.DB, classID uuid.UUID) error
}

// BookingViewRepository is the read-side lookup used by list queries.
type BookingViewRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID, filters domain.ListFilters) ([]*domain.BookingView, error)
}

// IdempotencyRepository stores replayable request outcomes.
type IdempotencyRepository interface {
	Create(ctx context.Context, record *domain.IdempotencyRecord) error
	GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	Delete(ctx context.Context, key string) error
}
