package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// MaterialService handles material-related business operations. All event
// capture happens inside the repository: Save commits the aggregate and its
// buffered events in one transaction, so this layer never touches the
// outbox directly.
type MaterialService struct {
	repo catalog.MaterialRepository
}

// NewMaterialService creates a new MaterialService
func NewMaterialService(repo catalog.MaterialRepository) *MaterialService {
	return &MaterialService{repo: repo}
}

// CreateMaterialRequest is the input for creating a material
type CreateMaterialRequest struct {
	Name         string          `json:"name" binding:"required"`
	Brand        string          `json:"brand"`
	Unit         string          `json:"unit" binding:"required"`
	PackageSize  decimal.Decimal `json:"package_size" binding:"required"`
	PackagePrice decimal.Decimal `json:"package_price" binding:"required"`
}

// ChangePriceRequest is the input for a package price change
type ChangePriceRequest struct {
	PackagePrice decimal.Decimal `json:"package_price" binding:"required"`
}

// MaterialResponse is the API shape of a material
type MaterialResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand,omitempty"`
	Unit         string          `json:"unit"`
	PackageSize  decimal.Decimal `json:"package_size"`
	PackagePrice decimal.Decimal `json:"package_price"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Create creates a new material
func (s *MaterialService) Create(ctx context.Context, tenantID uuid.UUID, req CreateMaterialRequest) (*MaterialResponse, error) {
	material, err := catalog.NewMaterial(tenantID, req.Name, req.Brand, req.Unit, req.PackageSize, req.PackagePrice)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, material); err != nil {
		return nil, err
	}

	resp := toMaterialResponse(material)
	return &resp, nil
}

// ChangePrice updates the package price of a material
func (s *MaterialService) ChangePrice(ctx context.Context, tenantID, id uuid.UUID, req ChangePriceRequest) (*MaterialResponse, error) {
	material, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := material.ChangePackagePrice(req.PackagePrice); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, material); err != nil {
		return nil, err
	}

	resp := toMaterialResponse(material)
	return &resp, nil
}

// Archive retires a material
func (s *MaterialService) Archive(ctx context.Context, tenantID, id uuid.UUID) error {
	material, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := material.Archive(); err != nil {
		return err
	}

	return s.repo.Save(ctx, material)
}

// Get retrieves a single material
func (s *MaterialService) Get(ctx context.Context, tenantID, id uuid.UUID) (*MaterialResponse, error) {
	material, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := toMaterialResponse(material)
	return &resp, nil
}

// List retrieves all materials for a tenant
func (s *MaterialService) List(ctx context.Context, tenantID uuid.UUID) ([]MaterialResponse, error) {
	materials, err := s.repo.FindAll(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	responses := make([]MaterialResponse, len(materials))
	for i := range materials {
		responses[i] = toMaterialResponse(&materials[i])
	}
	return responses, nil
}

func toMaterialResponse(m *catalog.Material) MaterialResponse {
	return MaterialResponse{
		ID:           m.ID,
		Name:         m.Name,
		Brand:        m.Brand,
		Unit:         m.Unit,
		PackageSize:  m.PackageSize,
		PackagePrice: m.PackagePrice,
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
