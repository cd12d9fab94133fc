// Package materials holds the cross-boundary contracts the catalog context
// publishes about materials. These are deliberately versioned and distinct
// from the internal domain events: the internal shape can churn freely,
// what other contexts are told only changes through a new contract version.
package materials

import (
	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
)

// Module is the topic namespace: topics look like
// "materials.material-created.v1" and subscribers use "materials.*.v1".
const Module = "materials"

// Contract name constants
const (
	EventNameMaterialCreated      = "material-created"
	EventNameMaterialPriceChanged = "material-price-changed"
	EventNameMaterialArchived     = "material-archived"
)

// MaterialCreatedV1 announces a new material to other contexts. Prices
// cross the boundary as strings so consumers are not forced onto any
// particular decimal representation.
type MaterialCreatedV1 struct {
	MaterialID   uuid.UUID `json:"material_id"`
	Name         string    `json:"name"`
	Brand        string    `json:"brand,omitempty"`
	Unit         string    `json:"unit"`
	PackageSize  string    `json:"package_size"`
	PackagePrice string    `json:"package_price"`
}

// EventName returns the stable contract identifier
func (MaterialCreatedV1) EventName() string { return EventNameMaterialCreated }

// EventVersion returns the contract version
func (MaterialCreatedV1) EventVersion() int { return 1 }

// EventModule returns the publishing module
func (MaterialCreatedV1) EventModule() string { return Module }

// MaterialPriceChangedV1 announces a package price move
type MaterialPriceChangedV1 struct {
	MaterialID uuid.UUID `json:"material_id"`
	OldPrice   string    `json:"old_price"`
	NewPrice   string    `json:"new_price"`
}

// EventName returns the stable contract identifier
func (MaterialPriceChangedV1) EventName() string { return EventNameMaterialPriceChanged }

// EventVersion returns the contract version
func (MaterialPriceChangedV1) EventVersion() int { return 1 }

// EventModule returns the publishing module
func (MaterialPriceChangedV1) EventModule() string { return Module }

// MaterialArchivedV1 announces a material's retirement
type MaterialArchivedV1 struct {
	MaterialID uuid.UUID `json:"material_id"`
	Name       string    `json:"name"`
}

// EventName returns the stable contract identifier
func (MaterialArchivedV1) EventName() string { return EventNameMaterialArchived }

// EventVersion returns the contract version
func (MaterialArchivedV1) EventVersion() int { return 1 }

// EventModule returns the publishing module
func (MaterialArchivedV1) EventModule() string { return Module }

// Interface checks
var (
	_ shared.ModuleEvent = MaterialCreatedV1{}
	_ shared.ModuleEvent = MaterialPriceChangedV1{}
	_ shared.ModuleEvent = MaterialArchivedV1{}
)

// Register adds every materials contract to a registry. Called once at
// startup on the integration registry of publishers and consumers alike.
func Register(registry interface {
	Register(protos ...shared.Event) error
}) error {
	return registry.Register(
		MaterialCreatedV1{},
		MaterialPriceChangedV1{},
		MaterialArchivedV1{},
	)
}
