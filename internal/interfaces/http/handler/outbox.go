package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/application/event"
)

// OutboxHandler exposes the operator surface of the outbox tables: stats,
// exhausted message inspection and requeueing. Mounted under /system, it is
// not part of the tenant-facing API.
type OutboxHandler struct {
	BaseHandler
	service *event.OutboxService
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(service *event.OutboxService) *OutboxHandler {
	return &OutboxHandler{service: service}
}

// RegisterRoutes registers outbox admin routes
func (h *OutboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	outbox := rg.Group("/system/outbox")
	{
		outbox.GET("/stats", h.GetStats)
		outbox.GET("/:outbox/exhausted", h.ListExhausted)
		outbox.GET("/:outbox/messages/:id", h.GetMessage)
		outbox.POST("/:outbox/messages/:id/requeue", h.Requeue)
		outbox.POST("/:outbox/exhausted/requeue", h.RequeueAllExhausted)
	}
}

// GetStats returns delivery counts for both outboxes
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

// ListExhausted lists messages that used up their retries
func (h *OutboxHandler) ListExhausted(c *gin.Context) {
	var filter event.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.service.ListExhausted(c.Request.Context(), c.Param("outbox"), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Messages, result.Total, result.Page, result.PageSize)
}

// GetMessage retrieves a single outbox message
func (h *OutboxHandler) GetMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid message ID")
		return
	}

	msg, err := h.service.GetMessage(c.Request.Context(), c.Param("outbox"), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, msg)
}

// Requeue re-arms a single message for dispatch
func (h *OutboxHandler) Requeue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid message ID")
		return
	}

	if err := h.service.Requeue(c.Request.Context(), c.Param("outbox"), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// RequeueAllExhausted re-arms every exhausted message in an outbox
func (h *OutboxHandler) RequeueAllExhausted(c *gin.Context) {
	count, err := h.service.RequeueAllExhausted(c.Request.Context(), c.Param("outbox"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"requeued": count})
}
