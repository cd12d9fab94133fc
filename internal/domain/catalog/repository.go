package catalog

import (
	"context"

	"github.com/google/uuid"
)

// MaterialRepository defines the interface for material persistence.
// Save implementations must persist the aggregate's pending events to the
// outbox in the same transaction as the field changes, then clear the
// buffer.
type MaterialRepository interface {
	// Save persists the material and its buffered events atomically
	Save(ctx context.Context, material *Material) error

	// FindByID finds a material by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Material, error)

	// FindAll lists materials for a tenant
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]Material, error)
}
