package catalog

import (
	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event name constants. These are wire identifiers: once events of a kind
// have been persisted the name never changes, only the version moves.
const (
	EventNameMaterialCreated             = "material-created"
	EventNameMaterialPackagePriceChanged = "material-package-price-changed"
	EventNameMaterialArchived            = "material-archived"
)

// MaterialCreated is raised when a new material enters the catalog
type MaterialCreated struct {
	MaterialID   uuid.UUID       `json:"material_id"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand,omitempty"`
	Unit         string          `json:"unit"`
	PackageSize  decimal.Decimal `json:"package_size"`
	PackagePrice decimal.Decimal `json:"package_price"`
}

// EventName returns the stable event identifier
func (MaterialCreated) EventName() string { return EventNameMaterialCreated }

// EventVersion returns the payload schema version
func (MaterialCreated) EventVersion() int { return 1 }

// NewMaterialCreated builds the payload from the aggregate
func NewMaterialCreated(m *Material) MaterialCreated {
	return MaterialCreated{
		MaterialID:   m.ID,
		Name:         m.Name,
		Brand:        m.Brand,
		Unit:         m.Unit,
		PackageSize:  m.PackageSize,
		PackagePrice: m.PackagePrice,
	}
}

// MaterialPackagePriceChanged is raised when a material's package price moves
type MaterialPackagePriceChanged struct {
	MaterialID uuid.UUID       `json:"material_id"`
	OldPrice   decimal.Decimal `json:"old_price"`
	NewPrice   decimal.Decimal `json:"new_price"`
}

// EventName returns the stable event identifier
func (MaterialPackagePriceChanged) EventName() string {
	return EventNameMaterialPackagePriceChanged
}

// EventVersion returns the payload schema version
func (MaterialPackagePriceChanged) EventVersion() int { return 1 }

// NewMaterialPackagePriceChanged builds the payload from the aggregate
func NewMaterialPackagePriceChanged(m *Material, oldPrice decimal.Decimal) MaterialPackagePriceChanged {
	return MaterialPackagePriceChanged{
		MaterialID: m.ID,
		OldPrice:   oldPrice,
		NewPrice:   m.PackagePrice,
	}
}

// MaterialArchived is raised when a material is retired from active use
type MaterialArchived struct {
	MaterialID uuid.UUID `json:"material_id"`
	Name       string    `json:"name"`
}

// EventName returns the stable event identifier
func (MaterialArchived) EventName() string { return EventNameMaterialArchived }

// EventVersion returns the payload schema version
func (MaterialArchived) EventVersion() int { return 1 }

// NewMaterialArchived builds the payload from the aggregate
func NewMaterialArchived(m *Material) MaterialArchived {
	return MaterialArchived{MaterialID: m.ID, Name: m.Name}
}

// Interface checks
var (
	_ shared.Event = MaterialCreated{}
	_ shared.Event = MaterialPackagePriceChanged{}
	_ shared.Event = MaterialArchived{}
)
