package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/hobbylab/backend/internal/interfaces/http/dto"
)

// Header names carrying request metadata
const (
	HeaderTenantID      = "X-Tenant-ID"
	HeaderUsername      = "X-Username"
	HeaderCorrelationID = "X-Correlation-ID"
)

// DefaultTenantID is the development fallback when no tenant header is set
var DefaultTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Metadata extracts tenant, username and correlation id from request
// headers and attaches them to the request context as shared.Metadata.
// Everything downstream reads that one value: the envelope factory stamps
// it onto events, loggers use it for fields. A correlation id is minted
// here when the caller did not send one, so every event chain started by
// an HTTP request is traceable.
func Metadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := DefaultTenantID
		if raw := c.GetHeader(HeaderTenantID); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest,
					dto.NewErrorResponse(dto.ErrCodeBadRequest, "Invalid "+HeaderTenantID+" header"))
				return
			}
			tenantID = parsed
		}

		correlationID := uuid.New()
		if raw := c.GetHeader(HeaderCorrelationID); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest,
					dto.NewErrorResponse(dto.ErrCodeBadRequest, "Invalid "+HeaderCorrelationID+" header"))
				return
			}
			correlationID = parsed
		}

		md := shared.Metadata{
			TenantID:      tenantID,
			Username:      c.GetHeader(HeaderUsername),
			CorrelationID: &correlationID,
		}

		c.Request = c.Request.WithContext(shared.WithMetadata(c.Request.Context(), md))
		c.Header(HeaderCorrelationID, correlationID.String())
		c.Next()
	}
}

// GetMetadata returns the request metadata attached by the Metadata
// middleware.
func GetMetadata(c *gin.Context) shared.Metadata {
	md, _ := shared.MetadataFrom(c.Request.Context())
	return md
}
