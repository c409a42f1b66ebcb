package repository

import (
	"context"

	"github.com/pyrelog/pyre/internal/app/model"
	"gorm.io/gorm"
)

// LifecycleEventRepository defines the data access contract for the
// lifecycle audit trail written by the event consumer.
type LifecycleEventRepository interface {
	Create(ctx context.Context, event *model.LifecycleEvent) error
	CountByKind(ctx context.Context, kind string) (int64, error)
}

type lifecycleEventRepository struct {
	db *gorm.DB
}

// NewLifecycleEventRepository returns a GORM-backed LifecycleEventRepository.
func NewLifecycleEventRepository(db *gorm.DB) LifecycleEventRepository {
	return &lifecycleEventRepository{db: db}
}

func (r *lifecycleEventRepository) Create(ctx context.Context, event *model.LifecycleEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *lifecycleEventRepository) CountByKind(ctx context.Context, kind string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.LifecycleEvent{}).
		Where("kind = ?", kind).
		Count(&count).Error
	return count, err
}
