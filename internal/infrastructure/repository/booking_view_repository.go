package repository

import (
	"context"
	"fmt"

	domain "studio-booking/internal/domain/booking"
	interfaces "studio-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ interfaces.BookingViewRepository = (*BookingViewRepository)(nil)

// BookingViewRepository serves the read side of booking lists with a
// single join against the class catalog, via sqlx rather than the ORM.
type BookingViewRepository struct {
	db *sqlx.DB
}

func NewBookingViewRepository(db *sqlx.DB) *BookingViewRepository {
	return &BookingViewRepository{db: db}
}

// NewBookingViewConnection opens the sqlx connection used by the read
// model, sharing the DSN of the primary database.
func NewBookingViewConnection(host, user, password, dbname string, port int, sslmode string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		host, user, password, dbname, port, sslmode)

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect read model: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	return db, nil
}

func (r *BookingViewRepository) ListByUser(ctx context.Context, userID uuid.UUID, filters domain.ListFilters) ([]*domain.BookingView, error) {
	query := `
		SELECT b.booking_id, b.class_id, b.status, b.waitlist_position, b.created_at,
		       c.title AS class_title, c.instructor, c.location, c.starts_at, c.duration_minutes
		FROM bookings b
		JOIN class_instances c ON c.class_id = b.class_id
		WHERE b.user_id = $1`

	args := []interface{}{userID}

	if filters.Status != nil {
		args = append(args, *filters.Status)
		query += fmt.Sprintf(" AND b.status = $%d", len(args))
	}
	if filters.From != nil {
		args = append(args, *filters.From)
		query += fmt.Sprintf(" AND c.starts_at >= $%d", len(args))
	}
	if filters.To != nil {
		args = append(args, *filters.To)
		query += fmt.Sprintf(" AND c.starts_at <= $%d", len(args))
	}

	query += " ORDER BY c.starts_at ASC, b.created_at ASC"

	var views []*domain.BookingView
	if err := r.db.SelectContext(ctx, &views, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings for user %s: %w", userID, err)
	}

	return views, nil
}
