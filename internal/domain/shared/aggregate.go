package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots. Each instance
// owns an in-memory buffer of events it raised during the current unit of
// work; domain logic fills the buffer, the outbox writer drains it at commit.
// The buffer is strictly single-threaded: it belongs to one aggregate within
// one request and is never accessed concurrently.
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	RaiseEvent(event Event)
	PendingEvents() []Event
	ClearEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version       int     `gorm:"not null;default:1"`
	pendingEvents []Event `gorm:"-"`
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// RaiseEvent buffers an event for dispatch after the next successful commit.
// Buffer order is preserved all the way to the outbox rows.
func (a *BaseAggregateRoot) RaiseEvent(event Event) {
	a.pendingEvents = append(a.pendingEvents, event)
}

// PendingEvents returns the buffered events in the order they were raised
func (a *BaseAggregateRoot) PendingEvents() []Event {
	return a.pendingEvents
}

// ClearEvents empties the buffer. Called once per unit of work, whether or
// not the commit ultimately succeeds.
func (a *BaseAggregateRoot) ClearEvents() {
	a.pendingEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// TenantAggregateRoot extends BaseAggregateRoot with multi-tenant support
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// NewTenantAggregateRoot creates a new tenant-scoped aggregate root
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		TenantID:          tenantID,
	}
}
