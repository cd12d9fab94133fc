package persistence

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/catalog"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/hobbylab/backend/internal/infrastructure/event"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// outboxProbe mirrors the outbox schema so tests can migrate and inspect the
// table without reaching into the event package's internals.
type outboxProbe struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name          string    `gorm:"type:varchar(255);not null"`
	Version       int       `gorm:"type:smallint;not null"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Username      string    `gorm:"type:varchar(255)"`
	OccurredAt    time.Time `gorm:"not null"`
	CorrelationID *uuid.UUID
	CausationID   *uuid.UUID
	Payload       []byte    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null;index"`
	ProcessedAt   *time.Time
	Attempts      int    `gorm:"not null;default:0"`
	LastError     string `gorm:"type:text"`
}

func newCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&catalog.Material{}))
	require.NoError(t, db.Table(event.TableOutbox).AutoMigrate(&outboxProbe{}))
	return db
}

func newCatalogRegistry(t *testing.T) *event.TypeRegistry {
	t.Helper()
	registry := event.NewTypeRegistry()
	require.NoError(t, registry.Register(
		catalog.MaterialCreated{},
		catalog.MaterialPackagePriceChanged{},
		catalog.MaterialArchived{},
	))
	return registry
}

func catalogContext() context.Context {
	correlation := uuid.New()
	return shared.WithMetadata(context.Background(), shared.Metadata{
		TenantID:      uuid.New(),
		Username:      "alex",
		CorrelationID: &correlation,
	})
}

func TestGormMaterialRepository_SaveStagesEventsAtomically(t *testing.T) {
	db := newCatalogTestDB(t)
	registry := newCatalogRegistry(t)
	repo := NewGormMaterialRepository(db, event.NewOutboxWriter(registry))
	ctx := catalogContext()

	material, err := catalog.NewMaterial(uuid.New(), "Green Stuff", "GW", "g", decimal.NewFromInt(100), decimal.NewFromInt(12))
	require.NoError(t, err)
	require.NoError(t, material.ChangePackagePrice(decimal.NewFromInt(14)))

	require.NoError(t, repo.Save(ctx, material))
	assert.Empty(t, material.PendingEvents(), "buffer is drained on save")

	var rows []outboxProbe
	require.NoError(t, db.Table(event.TableOutbox).Order("created_at ASC, id ASC").Find(&rows).Error)
	require.Len(t, rows, 2, "one pending row per buffered event")

	assert.Equal(t, "material-created", rows[0].Name)
	assert.Equal(t, "material-package-price-changed", rows[1].Name)
	for _, row := range rows {
		assert.Nil(t, row.ProcessedAt)
		assert.Zero(t, row.Attempts)
	}

	// Decodes back through the registry into the typed payload.
	env, err := event.NewEnvelopeSerializer(registry).Deserialize(rows[1].Payload)
	require.NoError(t, err)
	changed, ok := env.Event.(catalog.MaterialPackagePriceChanged)
	require.True(t, ok)
	assert.True(t, changed.NewPrice.Equal(decimal.NewFromInt(14)))
}

func TestGormMaterialRepository_SaveRollsBackWithStagingFailure(t *testing.T) {
	db := newCatalogTestDB(t)

	// An empty registry makes staging fail after the material row is written.
	repo := NewGormMaterialRepository(db, event.NewOutboxWriter(event.NewTypeRegistry()))
	ctx := catalogContext()

	material, err := catalog.NewMaterial(uuid.New(), "Plastic Glue", "", "ml", decimal.NewFromInt(20), decimal.NewFromInt(5))
	require.NoError(t, err)

	require.Error(t, repo.Save(ctx, material))

	var materials int64
	require.NoError(t, db.Model(&catalog.Material{}).Count(&materials).Error)
	assert.Zero(t, materials, "the business write rolls back with the staging failure")

	var events int64
	require.NoError(t, db.Table(event.TableOutbox).Count(&events).Error)
	assert.Zero(t, events)
}

func TestGormMaterialRepository_FindByID(t *testing.T) {
	db := newCatalogTestDB(t)
	repo := NewGormMaterialRepository(db, event.NewOutboxWriter(newCatalogRegistry(t)))
	ctx := catalogContext()

	tenantID := uuid.New()
	material, err := catalog.NewMaterial(tenantID, "Primer", "Vallejo", "ml", decimal.NewFromInt(60), decimal.NewFromInt(9))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, material))

	found, err := repo.FindByID(ctx, tenantID, material.ID)
	require.NoError(t, err)
	assert.Equal(t, "Primer", found.Name)
	assert.True(t, found.PackagePrice.Equal(decimal.NewFromInt(9)))

	// Another tenant cannot see it.
	_, err = repo.FindByID(ctx, uuid.New(), material.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormMaterialRepository_FindAll(t *testing.T) {
	db := newCatalogTestDB(t)
	repo := NewGormMaterialRepository(db, event.NewOutboxWriter(newCatalogRegistry(t)))
	ctx := catalogContext()

	tenantID := uuid.New()
	for _, name := range []string{"Putty", "Sand", "Varnish"} {
		m, err := catalog.NewMaterial(tenantID, name, "", "g", decimal.NewFromInt(1), decimal.NewFromInt(1))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, m))
	}
	other, err := catalog.NewMaterial(uuid.New(), "Not Yours", "", "g", decimal.NewFromInt(1), decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, other))

	materials, err := repo.FindAll(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, materials, 3)
}
