package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/application/catalog"
	"github.com/hobbylab/backend/internal/interfaces/http/middleware"
)

// MaterialHandler handles material HTTP requests
type MaterialHandler struct {
	BaseHandler
	service *catalog.MaterialService
}

// NewMaterialHandler creates a new material handler
func NewMaterialHandler(service *catalog.MaterialService) *MaterialHandler {
	return &MaterialHandler{service: service}
}

// RegisterRoutes registers material routes
func (h *MaterialHandler) RegisterRoutes(rg *gin.RouterGroup) {
	materials := rg.Group("/materials")
	{
		materials.POST("", h.Create)
		materials.GET("", h.List)
		materials.GET("/:id", h.Get)
		materials.PUT("/:id/price", h.ChangePrice)
		materials.POST("/:id/archive", h.Archive)
	}
}

// Create creates a new material
func (h *MaterialHandler) Create(c *gin.Context) {
	var req catalog.CreateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	md := middleware.GetMetadata(c)
	resp, err := h.service.Create(c.Request.Context(), md.TenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// List lists materials for the tenant
func (h *MaterialHandler) List(c *gin.Context) {
	md := middleware.GetMetadata(c)
	resp, err := h.service.List(c.Request.Context(), md.TenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Get retrieves a single material
func (h *MaterialHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid material ID")
		return
	}

	md := middleware.GetMetadata(c)
	resp, err := h.service.Get(c.Request.Context(), md.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// ChangePrice updates the package price of a material
func (h *MaterialHandler) ChangePrice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid material ID")
		return
	}

	var req catalog.ChangePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	md := middleware.GetMetadata(c)
	resp, err := h.service.ChangePrice(c.Request.Context(), md.TenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Archive retires a material
func (h *MaterialHandler) Archive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid material ID")
		return
	}

	md := middleware.GetMetadata(c)
	if err := h.service.Archive(c.Request.Context(), md.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
