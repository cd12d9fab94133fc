package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/catalog"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMaterialRepo is an in-memory MaterialRepository. It records the
// pending event count at save time so tests can assert the service left
// event capture to the repository.
type mockMaterialRepo struct {
	materials     map[uuid.UUID]*catalog.Material
	pendingAtSave []int
}

func newMockMaterialRepo() *mockMaterialRepo {
	return &mockMaterialRepo{materials: make(map[uuid.UUID]*catalog.Material)}
}

func (r *mockMaterialRepo) Save(_ context.Context, material *catalog.Material) error {
	r.pendingAtSave = append(r.pendingAtSave, len(material.PendingEvents()))
	material.ClearEvents()
	r.materials[material.ID] = material
	return nil
}

func (r *mockMaterialRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*catalog.Material, error) {
	m, ok := r.materials[id]
	if !ok || m.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return m, nil
}

func (r *mockMaterialRepo) FindAll(_ context.Context, tenantID uuid.UUID) ([]catalog.Material, error) {
	var result []catalog.Material
	for _, m := range r.materials {
		if m.TenantID == tenantID {
			result = append(result, *m)
		}
	}
	return result, nil
}

var _ catalog.MaterialRepository = (*mockMaterialRepo)(nil)

func TestMaterialService_Create(t *testing.T) {
	repo := newMockMaterialRepo()
	svc := NewMaterialService(repo)
	tenantID := uuid.New()

	resp, err := svc.Create(context.Background(), tenantID, CreateMaterialRequest{
		Name:         "Vallejo Plastic Putty",
		Brand:        "Vallejo",
		Unit:         "ml",
		PackageSize:  decimal.NewFromInt(17),
		PackagePrice: decimal.NewFromFloat(3.50),
	})
	require.NoError(t, err)

	assert.Equal(t, "Vallejo Plastic Putty", resp.Name)
	assert.Equal(t, "active", resp.Status)
	require.Len(t, repo.pendingAtSave, 1)
	assert.Equal(t, 1, repo.pendingAtSave[0], "created event should reach the repository")
}

func TestMaterialService_Create_InvalidInput(t *testing.T) {
	svc := NewMaterialService(newMockMaterialRepo())

	_, err := svc.Create(context.Background(), uuid.New(), CreateMaterialRequest{
		Name: "",
		Unit: "ml",
	})
	require.Error(t, err)
}

func TestMaterialService_ChangePrice(t *testing.T) {
	repo := newMockMaterialRepo()
	svc := NewMaterialService(repo)
	tenantID := uuid.New()

	created, err := svc.Create(context.Background(), tenantID, CreateMaterialRequest{
		Name:         "Super Glue",
		Unit:         "g",
		PackageSize:  decimal.NewFromInt(20),
		PackagePrice: decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	resp, err := svc.ChangePrice(context.Background(), tenantID, created.ID, ChangePriceRequest{
		PackagePrice: decimal.NewFromInt(6),
	})
	require.NoError(t, err)

	assert.True(t, resp.PackagePrice.Equal(decimal.NewFromInt(6)))
	require.Len(t, repo.pendingAtSave, 2)
	assert.Equal(t, 1, repo.pendingAtSave[1], "price change event should reach the repository")
}

func TestMaterialService_ChangePrice_WrongTenant(t *testing.T) {
	repo := newMockMaterialRepo()
	svc := NewMaterialService(repo)

	created, err := svc.Create(context.Background(), uuid.New(), CreateMaterialRequest{
		Name:         "Primer",
		Unit:         "ml",
		PackageSize:  decimal.NewFromInt(400),
		PackagePrice: decimal.NewFromInt(12),
	})
	require.NoError(t, err)

	_, err = svc.ChangePrice(context.Background(), uuid.New(), created.ID, ChangePriceRequest{
		PackagePrice: decimal.NewFromInt(13),
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMaterialService_Archive(t *testing.T) {
	repo := newMockMaterialRepo()
	svc := NewMaterialService(repo)
	tenantID := uuid.New()

	created, err := svc.Create(context.Background(), tenantID, CreateMaterialRequest{
		Name:         "Basing Sand",
		Unit:         "g",
		PackageSize:  decimal.NewFromInt(200),
		PackagePrice: decimal.NewFromInt(4),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Archive(context.Background(), tenantID, created.ID))

	got, err := svc.Get(context.Background(), tenantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "archived", got.Status)

	// Archived materials reject price changes
	_, err = svc.ChangePrice(context.Background(), tenantID, created.ID, ChangePriceRequest{
		PackagePrice: decimal.NewFromInt(9),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestMaterialService_List(t *testing.T) {
	repo := newMockMaterialRepo()
	svc := NewMaterialService(repo)
	tenantID := uuid.New()

	for _, name := range []string{"Putty", "Glue"} {
		_, err := svc.Create(context.Background(), tenantID, CreateMaterialRequest{
			Name:         name,
			Unit:         "pcs",
			PackageSize:  decimal.NewFromInt(1),
			PackagePrice: decimal.NewFromInt(2),
		})
		require.NoError(t, err)
	}
	_, err := svc.Create(context.Background(), uuid.New(), CreateMaterialRequest{
		Name:         "Other tenant's glue",
		Unit:         "pcs",
		PackageSize:  decimal.NewFromInt(1),
		PackagePrice: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	list, err := svc.List(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
