package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MaterialStatus represents the lifecycle status of a material
type MaterialStatus string

const (
	MaterialStatusActive   MaterialStatus = "active"
	MaterialStatusArchived MaterialStatus = "archived"
)

// Material is a consumable workshop supply (putty, glue, primer, basing
// sand). It is the aggregate root for material operations; every state
// change buffers a domain event that the outbox writer persists atomically
// with the change itself.
type Material struct {
	shared.TenantAggregateRoot
	Name         string          `gorm:"type:varchar(200);not null"`
	Brand        string          `gorm:"type:varchar(100)"`
	Unit         string          `gorm:"type:varchar(20);not null"` // e.g. "ml", "g", "pcs"
	PackageSize  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PackagePrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status       MaterialStatus  `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (Material) TableName() string {
	return "materials"
}

// NewMaterial creates a new material and raises MaterialCreated
func NewMaterial(tenantID uuid.UUID, name, brand, unit string, packageSize, packagePrice decimal.Decimal) (*Material, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Material name is required")
	}
	if strings.TrimSpace(unit) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Material unit is required")
	}
	if packageSize.IsNegative() || packagePrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Package size and price must not be negative")
	}

	material := &Material{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(name),
		Brand:               strings.TrimSpace(brand),
		Unit:                unit,
		PackageSize:         packageSize,
		PackagePrice:        packagePrice,
		Status:              MaterialStatusActive,
	}

	material.RaiseEvent(NewMaterialCreated(material))

	return material, nil
}

// ChangePackagePrice updates the package price and raises
// MaterialPackagePriceChanged. A no-op when the price is unchanged.
func (m *Material) ChangePackagePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "Package price must not be negative")
	}
	if m.Status != MaterialStatusActive {
		return shared.ErrInvalidState
	}
	if m.PackagePrice.Equal(price) {
		return nil
	}

	old := m.PackagePrice
	m.PackagePrice = price
	m.UpdatedAt = time.Now().UTC()
	m.IncrementVersion()

	m.RaiseEvent(NewMaterialPackagePriceChanged(m, old))

	return nil
}

// Archive retires the material from active use
func (m *Material) Archive() error {
	if m.Status == MaterialStatusArchived {
		return shared.ErrInvalidState
	}

	m.Status = MaterialStatusArchived
	m.UpdatedAt = time.Now().UTC()
	m.IncrementVersion()

	m.RaiseEvent(NewMaterialArchived(m))

	return nil
}
