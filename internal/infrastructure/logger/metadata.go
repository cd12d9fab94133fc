package logger

import (
	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// WithMetadata enriches a logger with the request metadata that also rides
// on event envelopes. The metadata is passed explicitly rather than fished
// out of an ambient context, so call sites always show where it came from.
func WithMetadata(log *zap.Logger, md shared.Metadata) *zap.Logger {
	fields := make([]zap.Field, 0, 3)
	if md.TenantID != uuid.Nil {
		fields = append(fields, zap.String("tenant_id", md.TenantID.String()))
	}
	if md.Username != "" {
		fields = append(fields, zap.String("username", md.Username))
	}
	if md.CorrelationID != nil {
		fields = append(fields, zap.String("correlation_id", md.CorrelationID.String()))
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// EnvelopeFields returns the standard log fields for an envelope, used so
// dispatch, publish and consume logs stay greppable by the same keys.
func EnvelopeFields(env *shared.Envelope) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", env.EventID.String()),
		zap.String("event", env.Key().String()),
		zap.String("tenant_id", env.TenantID.String()),
	}
	if env.CorrelationID != nil {
		fields = append(fields, zap.String("correlation_id", env.CorrelationID.String()))
	}
	return fields
}
