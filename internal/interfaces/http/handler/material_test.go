package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appcatalog "github.com/hobbylab/backend/internal/application/catalog"
	"github.com/hobbylab/backend/internal/domain/catalog"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/hobbylab/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memMaterialRepo is an in-memory MaterialRepository for handler tests
type memMaterialRepo struct {
	materials map[uuid.UUID]*catalog.Material
}

func newMemMaterialRepo() *memMaterialRepo {
	return &memMaterialRepo{materials: make(map[uuid.UUID]*catalog.Material)}
}

func (r *memMaterialRepo) Save(_ context.Context, m *catalog.Material) error {
	m.ClearEvents()
	r.materials[m.ID] = m
	return nil
}

func (r *memMaterialRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*catalog.Material, error) {
	m, ok := r.materials[id]
	if !ok || m.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return m, nil
}

func (r *memMaterialRepo) FindAll(_ context.Context, tenantID uuid.UUID) ([]catalog.Material, error) {
	var result []catalog.Material
	for _, m := range r.materials {
		if m.TenantID == tenantID {
			result = append(result, *m)
		}
	}
	return result, nil
}

func setupMaterialRouter() (*gin.Engine, *memMaterialRepo) {
	repo := newMemMaterialRepo()
	svc := appcatalog.NewMaterialService(repo)
	h := NewMaterialHandler(svc)

	engine := gin.New()
	engine.Use(middleware.Metadata())
	api := engine.Group("/api/v1")
	h.RegisterRoutes(api)
	return engine, repo
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, tenantID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderTenantID, tenantID.String())
	req.Header.Set(middleware.HeaderUsername, "tester")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestMaterialHandler_Create(t *testing.T) {
	engine, _ := setupMaterialRouter()
	tenantID := uuid.New()

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/materials", gin.H{
		"name":          "Plastic Putty",
		"brand":         "Vallejo",
		"unit":          "ml",
		"package_size":  "17",
		"package_price": "3.50",
	}, tenantID)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			ID     uuid.UUID `json:"id"`
			Name   string    `json:"name"`
			Status string    `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Plastic Putty", resp.Data.Name)
	assert.Equal(t, "active", resp.Data.Status)
}

func TestMaterialHandler_Create_InvalidBody(t *testing.T) {
	engine, _ := setupMaterialRouter()

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/materials", gin.H{
		"unit": "ml",
	}, uuid.New())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMaterialHandler_ChangePriceAndGet(t *testing.T) {
	engine, _ := setupMaterialRouter()
	tenantID := uuid.New()

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/materials", gin.H{
		"name":          "Super Glue",
		"unit":          "g",
		"package_size":  "20",
		"package_price": "5",
	}, tenantID)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			ID uuid.UUID `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, engine, http.MethodPut, "/api/v1/materials/"+created.Data.ID.String()+"/price", gin.H{
		"package_price": "6",
	}, tenantID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/materials/"+created.Data.ID.String(), nil, tenantID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data struct {
			PackagePrice string `json:"package_price"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "6", got.Data.PackagePrice)
}

func TestMaterialHandler_Get_WrongTenantIs404(t *testing.T) {
	engine, _ := setupMaterialRouter()
	tenantID := uuid.New()

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/materials", gin.H{
		"name":          "Primer",
		"unit":          "ml",
		"package_size":  "400",
		"package_price": "12",
	}, tenantID)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			ID uuid.UUID `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/materials/"+created.Data.ID.String(), nil, uuid.New())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMaterialHandler_Archive_ThenPriceChangeRejected(t *testing.T) {
	engine, _ := setupMaterialRouter()
	tenantID := uuid.New()

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/materials", gin.H{
		"name":          "Basing Sand",
		"unit":          "g",
		"package_size":  "200",
		"package_price": "4",
	}, tenantID)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			ID uuid.UUID `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/materials/"+created.Data.ID.String()+"/archive", nil, tenantID)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, engine, http.MethodPut, "/api/v1/materials/"+created.Data.ID.String()+"/price", gin.H{
		"package_price": "9",
	}, tenantID)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMaterialHandler_InvalidTenantHeader(t *testing.T) {
	engine, _ := setupMaterialRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/materials", nil)
	req.Header.Set(middleware.HeaderTenantID, "not-a-uuid")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
