package repository

import (
	"context"
	"time"

	domain "studio-booking/internal/domain/booking"
	interfaces "studio-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ interfaces.ClassCatalog = (*ClassRepository)(nil)

// ClassRepository is the read-only catalog adapter. The booking engine
// never writes class rows; it only reads them and locks them to
// serialize per-class booking activity.
type ClassRepository struct {
	db *gorm.DB
}

func NewClassRepository(db *gorm.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

func (r *ClassRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClassInstance, error) {
	var class domain.ClassInstance
	err := r.db.WithContext(ctx).First(&class, "class_id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &class, nil
}

// GetByIDForUpdate locks the class row for the duration of tx. Every
// booking mutation for the class takes this lock first, which is the
// serialization point for capacity checks, promotions and compaction.
func (r *ClassRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.ClassInstance, error) {
	var class domain.ClassInstance
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&class, "class_id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &class, nil
}

func (r *ClassRepository) GetUpcoming(ctx context.Context) ([]*domain.ClassInstance, error) {
	var classes []*domain.ClassInstance
	err := r.db.WithContext(ctx).
		Where("starts_at > ?", time.Now()).
		Order("starts_at ASC").
		Find(&classes).Error
	if err != nil {
		return nil, err
	}
	return classes, nil
}
