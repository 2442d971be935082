package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	domain "studio-booking/internal/domain/booking"
	"studio-booking/internal/infrastructure/repository"
	interfaces "studio-booking/internal/interfaces/infrastructure"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// serialTxManager simulates the database's per-class serialization by
// running every transaction under one mutex.
type serialTxManager struct {
	mu sync.Mutex
}

func (m *serialTxManager) Do(_ context.Context, fn func(tx *gorm.DB) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(nil)
}

// noopCache misses every read and accepts every write.
type noopCache struct{}

func (noopCache) GetAvailableSpots(context.Context, uuid.UUID) (int, error) {
	return -1, errors.New("not cached")
}
func (noopCache) SetAvailableSpots(context.Context, uuid.UUID, int, time.Duration) error { return nil }
func (noopCache) DeleteAvailableSpots(context.Context, uuid.UUID) error                  { return nil }
func (noopCache) GetUserBookings(context.Context, uuid.UUID) (json.RawMessage, error) {
	return nil, errors.New("not cached")
}
func (noopCache) SetUserBookings(context.Context, uuid.UUID, interface{}, time.Duration) error {
	return nil
}
func (noopCache) InvalidateUserBookings(context.Context, uuid.UUID) error { return nil }
func (noopCache) Get(context.Context, string) (string, error) {
	return "", errors.New("not cached")
}
func (noopCache) Set(context.Context, string, string, time.Duration) error { return nil }
func (noopCache) Delete(context.Context, string) error                     { return nil }
func (noopCache) GetClient() redis.UniversalClient                         { return nil }
func (noopCache) Health(context.Context) error                             { return nil }
func (noopCache) Close() error                                             { return nil }

type memIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*domain.IdempotencyRecord
}

func newMemIdempotencyRepo() *memIdempotencyRepo {
	return &memIdempotencyRepo{records: make(map[string]*domain.IdempotencyRecord)}
}

func (r *memIdempotencyRepo) Create(_ context.Context, record *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *record
	r.records[record.Key] = &copied
	return nil
}

func (r *memIdempotencyRepo) GetByKey(_ context.Context, key string) (*domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return nil, errors.New("idempotency key not found")
	}
	copied := *record
	return &copied, nil
}

func (r *memIdempotencyRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key)
	return nil
}

// recordingDispatcher counts notifications per type.
type recordingDispatcher struct {
	mu        sync.Mutex
	confirmed int
	waitlist  int
	canceled  int
	promoted  int
}

func (d *recordingDispatcher) NotifyBookingConfirmed(*domain.Booking) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confirmed++
}

func (d *recordingDispatcher) NotifyBookingWaitlisted(*domain.Booking) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitlist++
}

func (d *recordingDispatcher) NotifyBookingCanceled(*domain.Booking) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.canceled++
}

func (d *recordingDispatcher) NotifyWaitlistPromoted(*domain.Booking) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.promoted++
}

type stubViewRepo struct {
	views []*domain.BookingView
}

func (s *stubViewRepo) ListByUser(context.Context, uuid.UUID, domain.ListFilters) ([]*domain.BookingView, error) {
	return s.views, nil
}

type testEnv struct {
	service    *BookingService
	catalog    *repository.MockClassCatalog
	bookings   *repository.MockBookingRepository
	dispatcher *recordingDispatcher
	idem       *memIdempotencyRepo
}

func newTestEnv() *testEnv {
	catalog := repository.NewMockClassCatalog()
	bookings := repository.NewMockBookingRepository()
	dispatcher := &recordingDispatcher{}
	idem := newMemIdempotencyRepo()

	svc := NewBookingService(
		catalog,
		bookings,
		&stubViewRepo{},
		&serialTxManager{},
		noopCache{},
		idem,
		dispatcher,
		Policy{CancellationWindow: 2 * time.Hour, MaxTxRetries: 3, RetryBackoff: time.Millisecond},
	)

	return &testEnv{service: svc, catalog: catalog, bookings: bookings, dispatcher: dispatcher, idem: idem}
}

func (e *testEnv) addClass(capacity int, startsIn time.Duration) uuid.UUID {
	class := &domain.ClassInstance{
		ClassID:         uuid.New(),
		Title:           "Vinyasa Flow",
		Instructor:      "Maya",
		Location:        "Studio A",
		StartsAt:        time.Now().Add(startsIn),
		DurationMinutes: 60,
		Capacity:        capacity,
	}
	e.catalog.Add(class)
	return class.ClassID
}

func TestBook_ConfirmsUntilCapacityThenWaitlists(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(2, 48*time.Hour)
	ctx := context.Background()

	first, err := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: uuid.New()})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first.Status != domain.StatusConfirmed {
		t.Errorf("Expected first booking confirmed, got %s", first.Status)
	}

	second, err := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: uuid.New()})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if second.Status != domain.StatusConfirmed {
		t.Errorf("Expected second booking confirmed, got %s", second.Status)
	}

	third, err := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: uuid.New()})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if third.Status != domain.StatusWaitlisted {
		t.Errorf("Expected third booking waitlisted, got %s", third.Status)
	}
	if third.WaitlistPosition == nil || *third.WaitlistPosition != 1 {
		t.Errorf("Expected waitlist position 1, got %v", third.WaitlistPosition)
	}

	confirmed, _ := env.bookings.CountByStatus(ctx, nil, classID, domain.StatusConfirmed)
	if confirmed != 2 {
		t.Errorf("Expected 2 confirmed bookings, got %d", confirmed)
	}
}

func TestBook_ConcurrentRequestsForLastSeat(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(1, 48*time.Hour)
	ctx := context.Background()

	userA, userB := uuid.New(), uuid.New()
	results := make([]*BookResponse, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userA})
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userB})
	}()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
	}

	confirmedCount, waitlistedCount := 0, 0
	for _, res := range results {
		switch res.Status {
		case domain.StatusConfirmed:
			confirmedCount++
		case domain.StatusWaitlisted:
			waitlistedCount++
			if res.WaitlistPosition == nil || *res.WaitlistPosition != 1 {
				t.Errorf("Expected waitlist position 1, got %v", res.WaitlistPosition)
			}
		}
	}

	if confirmedCount != 1 || waitlistedCount != 1 {
		t.Errorf("Expected exactly 1 confirmed and 1 waitlisted, got %d confirmed, %d waitlisted",
			confirmedCount, waitlistedCount)
	}
}

func TestBook_DuplicateActiveBookingConflicts(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(5, 48*time.Hour)
	userID := uuid.New()
	ctx := context.Background()

	if _, err := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userID}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userID})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected conflict error, got %v", err)
	}
}

func TestBook_UnknownClassNotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.service.Book(context.Background(), &BookRequest{ClassID: uuid.New(), UserID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestBook_StartedClassRejected(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(5, -time.Hour)

	_, err := env.service.Book(context.Background(), &BookRequest{ClassID: classID, UserID: uuid.New()})
	if !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("Expected policy violation, got %v", err)
	}
}

func TestCancel_ConfirmedPromotesWaitlistHead(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(1, 48*time.Hour)
	ctx := context.Background()

	userA, userB, userC := uuid.New(), uuid.New(), uuid.New()

	bookingA, _ := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userA})
	bookingB, _ := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userB})
	bookingC, _ := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userC})

	if bookingB.Status != domain.StatusWaitlisted || bookingC.Status != domain.StatusWaitlisted {
		t.Fatal("Expected B and C to be waitlisted")
	}

	result, err := env.service.Cancel(ctx, bookingA.BookingID, userA)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.PromotedBookingID == nil || *result.PromotedBookingID != bookingB.BookingID {
		t.Errorf("Expected booking B promoted, got %v", result.PromotedBookingID)
	}

	promoted, _ := env.bookings.GetByID(ctx, bookingB.BookingID)
	if promoted.Status != domain.StatusConfirmed {
		t.Errorf("Expected promoted booking confirmed, got %s", promoted.Status)
	}
	if promoted.WaitlistPosition != nil {
		t.Errorf("Expected cleared waitlist position, got %v", promoted.WaitlistPosition)
	}

	remaining, _ := env.bookings.GetByID(ctx, bookingC.BookingID)
	if remaining.WaitlistPosition == nil || *remaining.WaitlistPosition != 1 {
		t.Errorf("Expected C compacted to position 1, got %v", remaining.WaitlistPosition)
	}

	env.dispatcher.mu.Lock()
	defer env.dispatcher.mu.Unlock()
	if env.dispatcher.promoted != 1 {
		t.Errorf("Expected 1 promotion notification, got %d", env.dispatcher.promoted)
	}
}

func TestCancel_WaitlistedCompactsPositions(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(1, 48*time.Hour)
	ctx := context.Background()

	holder := uuid.New()
	env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: holder})

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	bookings := make([]*BookResponse, len(users))
	for i, u := range users {
		bookings[i], _ = env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: u})
	}

	// Cancel the middle waitlist entry
	if _, err := env.service.Cancel(ctx, bookings[1].BookingID, users[1]); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	first, _ := env.bookings.GetByID(ctx, bookings[0].BookingID)
	third, _ := env.bookings.GetByID(ctx, bookings[2].BookingID)

	if first.WaitlistPosition == nil || *first.WaitlistPosition != 1 {
		t.Errorf("Expected first entry at position 1, got %v", first.WaitlistPosition)
	}
	if third.WaitlistPosition == nil || *third.WaitlistPosition != 2 {
		t.Errorf("Expected third entry compacted to position 2, got %v", third.WaitlistPosition)
	}

	// The freed waitlist slot must not have promoted anyone
	confirmed, _ := env.bookings.CountByStatus(ctx, nil, classID, domain.StatusConfirmed)
	if confirmed != 1 {
		t.Errorf("Expected 1 confirmed booking, got %d", confirmed)
	}
}

func TestCancel_OwnershipEnforced(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(5, 48*time.Hour)
	ctx := context.Background()

	owner := uuid.New()
	booking, _ := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: owner})

	_, err := env.service.Cancel(ctx, booking.BookingID, uuid.New())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected unauthorized error, got %v", err)
	}
}

func TestCancel_AlreadyCanceledConflicts(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(5, 48*time.Hour)
	ctx := context.Background()

	userID := uuid.New()
	booking, _ := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userID})

	if _, err := env.service.Cancel(ctx, booking.BookingID, userID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err := env.service.Cancel(ctx, booking.BookingID, userID)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected conflict error, got %v", err)
	}
}

func TestCancel_InsideCancellationWindowRejected(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(5, time.Hour)
	ctx := context.Background()

	userID := uuid.New()
	booking, _ := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userID})

	_, err := env.service.Cancel(ctx, booking.BookingID, userID)
	if !errors.Is(err, ErrPolicyViolation) {
		t.Errorf("Expected policy violation, got %v", err)
	}

	// The booking must be untouched
	current, _ := env.bookings.GetByID(ctx, booking.BookingID)
	if current.Status != domain.StatusConfirmed {
		t.Errorf("Expected booking still confirmed, got %s", current.Status)
	}
}

func TestCancel_UnknownBookingNotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.service.Cancel(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestBook_ReinstatesCanceledBooking(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(1, 48*time.Hour)
	ctx := context.Background()

	userID := uuid.New()
	original, _ := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userID})

	if _, err := env.service.Cancel(ctx, original.BookingID, userID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	rebooked, err := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: userID})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rebooked.BookingID != original.BookingID {
		t.Errorf("Expected reinstated booking ID %s, got %s", original.BookingID, rebooked.BookingID)
	}
	if rebooked.Status != domain.StatusConfirmed {
		t.Errorf("Expected reinstated booking confirmed, got %s", rebooked.Status)
	}

	stored, _ := env.bookings.GetByID(ctx, original.BookingID)
	if stored.CanceledAt != nil {
		t.Errorf("Expected cleared canceled_at, got %v", stored.CanceledAt)
	}
}

func TestBook_IdempotencyKeyReplaysResponse(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(5, 48*time.Hour)
	ctx := context.Background()

	req := &BookRequest{ClassID: classID, UserID: uuid.New(), IdempotencyKey: "replay-key"}

	first, err := env.service.Book(ctx, req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	second, err := env.service.Book(ctx, req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if second.BookingID != first.BookingID {
		t.Errorf("Expected replayed booking ID %s, got %s", first.BookingID, second.BookingID)
	}

	confirmed, _ := env.bookings.CountByStatus(ctx, nil, classID, domain.StatusConfirmed)
	if confirmed != 1 {
		t.Errorf("Expected exactly 1 booking despite duplicate request, got %d", confirmed)
	}
}

func TestBook_IdempotencyKeyReuseWithDifferentPayloadConflicts(t *testing.T) {
	env := newTestEnv()
	classA := env.addClass(5, 48*time.Hour)
	classB := env.addClass(5, 48*time.Hour)
	ctx := context.Background()

	userID := uuid.New()
	if _, err := env.service.Book(ctx, &BookRequest{ClassID: classA, UserID: userID, IdempotencyKey: "shared-key"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err := env.service.Book(ctx, &BookRequest{ClassID: classB, UserID: userID, IdempotencyKey: "shared-key"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected conflict error, got %v", err)
	}
}

func TestGetAvailability_CountsFromStore(t *testing.T) {
	env := newTestEnv()
	classID := env.addClass(10, 48*time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.service.Book(ctx, &BookRequest{ClassID: classID, UserID: uuid.New()}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	availability, err := env.service.GetAvailability(ctx, classID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if availability.Capacity != 10 {
		t.Errorf("Expected capacity 10, got %d", availability.Capacity)
	}
	if availability.AvailableSpots != 7 {
		t.Errorf("Expected 7 available spots, got %d", availability.AvailableSpots)
	}
	if availability.WaitlistSize != 0 {
		t.Errorf("Expected empty waitlist, got %d", availability.WaitlistSize)
	}
}

func TestList_ReturnsViewRows(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()

	views := []*domain.BookingView{
		{BookingID: uuid.New(), Status: domain.StatusConfirmed, ClassTitle: "Vinyasa Flow"},
		{BookingID: uuid.New(), Status: domain.StatusWaitlisted, ClassTitle: "Power Yoga"},
	}
	env.service.views = &stubViewRepo{views: views}

	got, err := env.service.List(context.Background(), userID, domain.ListFilters{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 bookings, got %d", len(got))
	}
	if got[0].ClassTitle != "Vinyasa Flow" {
		t.Errorf("Expected first row Vinyasa Flow, got %s", got[0].ClassTitle)
	}
}

var _ interfaces.CacheService = noopCache{}
var _ interfaces.IdempotencyRepository = (*memIdempotencyRepo)(nil)
