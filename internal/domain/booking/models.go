package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClassInstance represents a scheduled class. The booking engine reads
// class metadata but never mutates it; class CRUD lives elsewhere.
type ClassInstance struct {
	ClassID         uuid.UUID `json:"class_id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Title           string    `json:"title" gorm:"not null"`
	Instructor      string    `json:"instructor" gorm:"not null"`
	Location        string    `json:"location"`
	StartsAt        time.Time `json:"starts_at" gorm:"not null"`
	DurationMinutes int       `json:"duration_minutes" gorm:"not null;check:duration_minutes > 0"`
	Capacity        int       `json:"capacity" gorm:"not null;check:capacity >= 1"`
	Status          string    `json:"status" gorm:"not null;default:scheduled"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ClassInstance) TableName() string {
	return "class_instances"
}

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	StatusConfirmed  BookingStatus = "confirmed"
	StatusWaitlisted BookingStatus = "waitlisted"
	StatusCanceled   BookingStatus = "canceled"
)

// Booking represents a user's booking for a class instance.
// WaitlistPosition is set only while the booking is waitlisted and
// CanceledAt only once it has been canceled.
type Booking struct {
	BookingID        uuid.UUID     `json:"booking_id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ClassID          uuid.UUID     `json:"class_id" gorm:"type:uuid;not null;index:idx_bookings_class_status"`
	UserID           uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;index"`
	Status           BookingStatus `json:"status" gorm:"type:text;not null;index:idx_bookings_class_status"`
	WaitlistPosition *int          `json:"waitlist_position,omitempty"`
	CreatedAt        time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
	CanceledAt       *time.Time    `json:"canceled_at,omitempty"`

	Class ClassInstance `json:"class,omitempty" gorm:"foreignKey:ClassID"`
}

// IsActive reports whether the booking occupies a seat or a waitlist slot.
func (b *Booking) IsActive() bool {
	return b.Status == StatusConfirmed || b.Status == StatusWaitlisted
}

// BookingView is the read model returned by list queries, enriched with
// denormalized class display fields.
type BookingView struct {
	BookingID        uuid.UUID     `json:"booking_id" db:"booking_id"`
	ClassID          uuid.UUID     `json:"class_id" db:"class_id"`
	Status           BookingStatus `json:"status" db:"status"`
	WaitlistPosition *int          `json:"waitlist_position,omitempty" db:"waitlist_position"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	ClassTitle       string        `json:"class_title" db:"class_title"`
	Instructor       string        `json:"instructor" db:"instructor"`
	Location         string        `json:"location" db:"location"`
	StartsAt         time.Time     `json:"starts_at" db:"starts_at"`
	DurationMinutes  int           `json:"duration_minutes" db:"duration_minutes"`
}

// ListFilters narrows a user's booking list query.
type ListFilters struct {
	Status *BookingStatus `json:"status,omitempty"`
	From   *time.Time     `json:"from,omitempty"`
	To     *time.Time     `json:"to,omitempty"`
}

// IdempotencyRecord stores the replayable outcome of a processed booking
// request keyed by the caller-supplied Idempotency-Key header.
type IdempotencyRecord struct {
	Key          string    `json:"key"`
	UserID       uuid.UUID `json:"user_id"`
	RequestHash  string    `json:"request_hash"`
	ResponseData string    `json:"response_data"`
	StatusCode   int       `json:"status_code"`
	ProcessedAt  time.Time `json:"processed_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (k *IdempotencyRecord) IsExpired() bool {
	return time.Now().After(k.ExpiresAt)
}
