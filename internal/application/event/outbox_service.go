package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Outbox names accepted by the admin operations
const (
	OutboxDomain      = "domain"
	OutboxIntegration = "integration"
)

// OutboxService exposes operator-facing management of the outbox tables:
// delivery stats, inspection of exhausted messages and requeueing them.
// Exhausted messages are never deleted by the core, so this service is the
// only way they leave that state.
type OutboxService struct {
	repos       map[string]shared.OutboxRepository
	maxAttempts int
	logger      *zap.Logger
}

// NewOutboxService creates an admin service over the domain and the
// integration outbox.
func NewOutboxService(
	domain shared.OutboxRepository,
	integration shared.OutboxRepository,
	maxAttempts int,
	logger *zap.Logger,
) *OutboxService {
	if maxAttempts <= 0 {
		maxAttempts = shared.DefaultMaxAttempts
	}
	return &OutboxService{
		repos: map[string]shared.OutboxRepository{
			OutboxDomain:      domain,
			OutboxIntegration: integration,
		},
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// MessageDTO represents an outbox message for the admin API. The payload is
// omitted; it is the serialized envelope and can be large.
type MessageDTO struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Version       int        `json:"version"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	Username      string     `json:"username,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
	CorrelationID *uuid.UUID `json:"correlation_id,omitempty"`
	CausationID   *uuid.UUID `json:"causation_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
}

// ListFilter represents pagination for exhausted message queries
type ListFilter struct {
	Page     int `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize int `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// ListResult represents a paginated message list
type ListResult struct {
	Messages   []MessageDTO `json:"messages"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

// StatsDTO aggregates delivery state per outbox
type StatsDTO struct {
	Domain      shared.OutboxCounts `json:"domain"`
	Integration shared.OutboxCounts `json:"integration"`
}

// GetStats returns pending/processed/exhausted counts for both outboxes
func (s *OutboxService) GetStats(ctx context.Context) (*StatsDTO, error) {
	domain, err := s.repos[OutboxDomain].CountByState(ctx, s.maxAttempts)
	if err != nil {
		s.logger.Error("Failed to count domain outbox", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to get outbox stats")
	}

	integration, err := s.repos[OutboxIntegration].CountByState(ctx, s.maxAttempts)
	if err != nil {
		s.logger.Error("Failed to count integration outbox", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to get outbox stats")
	}

	return &StatsDTO{Domain: domain, Integration: integration}, nil
}

// ListExhausted pages through messages that used up their retries
func (s *OutboxService) ListExhausted(ctx context.Context, outbox string, filter ListFilter) (*ListResult, error) {
	repo, err := s.repo(outbox)
	if err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	msgs, total, err := repo.FindExhausted(ctx, s.maxAttempts, page, pageSize)
	if err != nil {
		s.logger.Error("Failed to find exhausted messages",
			zap.String("outbox", outbox),
			zap.Error(err),
		)
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve exhausted messages")
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	dtos := make([]MessageDTO, len(msgs))
	for i, msg := range msgs {
		dtos[i] = toMessageDTO(msg)
	}

	return &ListResult{
		Messages:   dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetMessage retrieves a single message by ID
func (s *OutboxService) GetMessage(ctx context.Context, outbox string, id uuid.UUID) (*MessageDTO, error) {
	repo, err := s.repo(outbox)
	if err != nil {
		return nil, err
	}

	msg, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, shared.NewDomainError("MESSAGE_NOT_FOUND", "Outbox message not found")
	}

	dto := toMessageDTO(msg)
	return &dto, nil
}

// Requeue resets the attempt counter on an unprocessed message so the
// dispatcher picks it up again.
func (s *OutboxService) Requeue(ctx context.Context, outbox string, id uuid.UUID) error {
	repo, err := s.repo(outbox)
	if err != nil {
		return err
	}

	if err := repo.Requeue(ctx, id); err != nil {
		s.logger.Error("Failed to requeue message",
			zap.String("outbox", outbox),
			zap.String("id", id.String()),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("Outbox message requeued",
		zap.String("outbox", outbox),
		zap.String("id", id.String()),
	)
	return nil
}

// RequeueAllExhausted resets every exhausted message in the given outbox
// and returns how many were re-armed.
func (s *OutboxService) RequeueAllExhausted(ctx context.Context, outbox string) (int64, error) {
	repo, err := s.repo(outbox)
	if err != nil {
		return 0, err
	}

	var count int64
	pageSize := 100

	// Requeueing removes messages from the exhausted set, so always read
	// page one until the set drains.
	for {
		msgs, _, err := repo.FindExhausted(ctx, s.maxAttempts, 1, pageSize)
		if err != nil {
			s.logger.Error("Failed to find exhausted messages", zap.Error(err))
			return count, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve exhausted messages")
		}
		if len(msgs) == 0 {
			break
		}

		var requeued int64
		for _, msg := range msgs {
			if err := repo.Requeue(ctx, msg.ID); err != nil {
				s.logger.Error("Failed to requeue message",
					zap.String("id", msg.ID.String()),
					zap.Error(err),
				)
				continue
			}
			requeued++
		}
		count += requeued

		// No progress means the remaining messages keep failing; stop
		// instead of spinning on them.
		if requeued == 0 || len(msgs) < pageSize {
			break
		}
	}

	s.logger.Info("Requeued exhausted messages",
		zap.String("outbox", outbox),
		zap.Int64("count", count),
	)
	return count, nil
}

func (s *OutboxService) repo(outbox string) (shared.OutboxRepository, error) {
	repo, ok := s.repos[outbox]
	if !ok {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown outbox: "+outbox)
	}
	return repo, nil
}

// toMessageDTO converts a domain OutboxMessage to its API shape
func toMessageDTO(msg *shared.OutboxMessage) MessageDTO {
	return MessageDTO{
		ID:            msg.ID,
		Name:          msg.Name,
		Version:       msg.Version,
		TenantID:      msg.TenantID,
		Username:      msg.Username,
		OccurredAt:    msg.OccurredAt,
		CorrelationID: msg.CorrelationID,
		CausationID:   msg.CausationID,
		CreatedAt:     msg.CreatedAt,
		ProcessedAt:   msg.ProcessedAt,
		Attempts:      msg.Attempts,
		LastError:     msg.LastError,
	}
}
