package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "studio-booking/internal/domain/booking"
	interfaces "studio-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MockClassCatalog is an in-memory ClassCatalog for testing/demo
// purposes. The tx argument is ignored; serialization is the caller's
// concern.
type MockClassCatalog struct {
	classes map[uuid.UUID]*domain.ClassInstance
	mutex   sync.RWMutex
}

func NewMockClassCatalog() *MockClassCatalog {
	return &MockClassCatalog{
		classes: make(map[uuid.UUID]*domain.ClassInstance),
	}
}

func (m *MockClassCatalog) Add(class *domain.ClassInstance) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	copied := *class
	m.classes[class.ClassID] = &copied
}

func (m *MockClassCatalog) GetByID(_ context.Context, id uuid.UUID) (*domain.ClassInstance, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	class, ok := m.classes[id]
	if !ok {
		return nil, nil
	}
	copied := *class
	return &copied, nil
}

func (m *MockClassCatalog) GetByIDForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*domain.ClassInstance, error) {
	return m.GetByID(ctx, id)
}

func (m *MockClassCatalog) GetUpcoming(_ context.Context) ([]*domain.ClassInstance, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	now := time.Now()
	var upcoming []*domain.ClassInstance
	for _, class := range m.classes {
		if class.StartsAt.After(now) {
			copied := *class
			upcoming = append(upcoming, &copied)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].StartsAt.Before(upcoming[j].StartsAt)
	})
	return upcoming, nil
}

var _ interfaces.ClassCatalog = (*MockClassCatalog)(nil)

// MockBookingRepository is an in-memory BookingRepository for
// testing/demo purposes. It mirrors the SQL implementation's ordering
// and compaction semantics.
type MockBookingRepository struct {
	bookings map[uuid.UUID]*domain.Booking
	mutex    sync.RWMutex
}

func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[uuid.UUID]*domain.Booking),
	}
}

func (r *MockBookingRepository) Create(_ context.Context, _ *gorm.DB, booking *domain.Booking) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	copied := *booking
	r.bookings[booking.BookingID] = &copied
	return nil
}

func (r *MockBookingRepository) Update(_ context.Context, _ *gorm.DB, booking *domain.Booking) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored, ok := r.bookings[booking.BookingID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = booking.Status
	stored.WaitlistPosition = copyIntPtr(booking.WaitlistPosition)
	stored.CanceledAt = copyTimePtr(booking.CanceledAt)
	stored.UpdatedAt = booking.UpdatedAt
	return nil
}

func (r *MockBookingRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stored, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	return copyBooking(stored), nil
}

func (r *MockBookingRepository) FindActiveByUserAndClass(_ context.Context, _ *gorm.DB, userID, classID uuid.UUID) (*domain.Booking, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, b := range r.bookings {
		if b.UserID == userID && b.ClassID == classID && b.IsActive() {
			return copyBooking(b), nil
		}
	}
	return nil, nil
}

func (r *MockBookingRepository) FindCanceledByUserAndClass(_ context.Context, _ *gorm.DB, userID, classID uuid.UUID) (*domain.Booking, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *domain.Booking
	for _, b := range r.bookings {
		if b.UserID != userID || b.ClassID != classID || b.Status != domain.StatusCanceled {
			continue
		}
		if latest == nil || (b.CanceledAt != nil && latest.CanceledAt != nil && b.CanceledAt.After(*latest.CanceledAt)) {
			latest = b
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyBooking(latest), nil
}

func (r *MockBookingRepository) CountByStatus(_ context.Context, _ *gorm.DB, classID uuid.UUID, status domain.BookingStatus) (int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var count int64
	for _, b := range r.bookings {
		if b.ClassID == classID && b.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *MockBookingRepository) FindFirstWaitlisted(_ context.Context, _ *gorm.DB, classID uuid.UUID) (*domain.Booking, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	waitlisted := r.waitlistedLocked(classID)
	if len(waitlisted) == 0 {
		return nil, nil
	}
	return copyBooking(waitlisted[0]), nil
}

func (r *MockBookingRepository) CompactWaitlist(_ context.Context, _ *gorm.DB, classID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, b := range r.waitlistedLocked(classID) {
		position := i + 1
		b.WaitlistPosition = &position
		b.UpdatedAt = time.Now()
	}
	return nil
}

// waitlistedLocked returns the class's waitlisted bookings ordered by
// position then creation time. Callers must hold the mutex.
func (r *MockBookingRepository) waitlistedLocked(classID uuid.UUID) []*domain.Booking {
	var waitlisted []*domain.Booking
	for _, b := range r.bookings {
		if b.ClassID == classID && b.Status == domain.StatusWaitlisted {
			waitlisted = append(waitlisted, b)
		}
	}
	sort.Slice(waitlisted, func(i, j int) bool {
		pi, pj := waitlisted[i].WaitlistPosition, waitlisted[j].WaitlistPosition
		if pi != nil && pj != nil && *pi != *pj {
			return *pi < *pj
		}
		if (pi == nil) != (pj == nil) {
			return pj == nil
		}
		return waitlisted[i].CreatedAt.Before(waitlisted[j].CreatedAt)
	})
	return waitlisted
}

var _ interfaces.BookingRepository = (*MockBookingRepository)(nil)

func copyBooking(b *domain.Booking) *domain.Booking {
	copied := *b
	copied.WaitlistPosition = copyIntPtr(b.WaitlistPosition)
	copied.CanceledAt = copyTimePtr(b.CanceledAt)
	return &copied
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
