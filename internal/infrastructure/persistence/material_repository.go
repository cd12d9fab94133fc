package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/catalog"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/hobbylab/backend/internal/infrastructure/event"
	"gorm.io/gorm"
)

// GormMaterialRepository implements catalog.MaterialRepository. Save runs
// the aggregate write and the outbox staging in one transaction: either the
// material change and its events are durable together or neither is.
type GormMaterialRepository struct {
	db     *gorm.DB
	writer *event.OutboxWriter
}

// NewGormMaterialRepository creates a new material repository
func NewGormMaterialRepository(db *gorm.DB, writer *event.OutboxWriter) *GormMaterialRepository {
	return &GormMaterialRepository{db: db, writer: writer}
}

// Save persists the material and its buffered events atomically
func (r *GormMaterialRepository) Save(ctx context.Context, material *catalog.Material) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(material).Error; err != nil {
			return fmt.Errorf("failed to save material: %w", err)
		}

		if r.writer != nil {
			if err := r.writer.Stage(ctx, tx, material); err != nil {
				return fmt.Errorf("failed to stage material events: %w", err)
			}
		}
		return nil
	})
}

// FindByID finds a material by ID within a tenant
func (r *GormMaterialRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Material, error) {
	var material catalog.Material
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&material).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &material, nil
}

// FindAll lists materials for a tenant
func (r *GormMaterialRepository) FindAll(ctx context.Context, tenantID uuid.UUID) ([]catalog.Material, error) {
	var materials []catalog.Material
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&materials).Error
	return materials, err
}

// Ensure GormMaterialRepository implements MaterialRepository
var _ catalog.MaterialRepository = (*GormMaterialRepository)(nil)
