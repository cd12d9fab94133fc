package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outbox table names. The domain outbox and the integration outbox share a
// schema and a repository implementation; they differ only in which
// background loop drains them.
const (
	TableOutbox            = "outbox_messages"
	TableIntegrationOutbox = "integration_outbox_messages"
)

// outboxRow is the persistence shape of shared.OutboxMessage
type outboxRow struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name          string     `gorm:"type:varchar(255);not null"`
	Version       int        `gorm:"type:smallint;not null"`
	TenantID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Username      string     `gorm:"type:varchar(255)"`
	OccurredAt    time.Time  `gorm:"not null"`
	CorrelationID *uuid.UUID `gorm:"type:uuid"`
	CausationID   *uuid.UUID `gorm:"type:uuid"`
	Payload       []byte     `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time  `gorm:"not null;index"`
	ProcessedAt   *time.Time
	Attempts      int    `gorm:"not null;default:0"`
	LastError     string `gorm:"type:text"`
}

func (r *outboxRow) toDomain() *shared.OutboxMessage {
	return &shared.OutboxMessage{
		ID:            r.ID,
		Name:          r.Name,
		Version:       r.Version,
		TenantID:      r.TenantID,
		Username:      r.Username,
		OccurredAt:    r.OccurredAt,
		CorrelationID: r.CorrelationID,
		CausationID:   r.CausationID,
		Payload:       r.Payload,
		CreatedAt:     r.CreatedAt,
		ProcessedAt:   r.ProcessedAt,
		Attempts:      r.Attempts,
		LastError:     r.LastError,
	}
}

func rowFromDomain(m *shared.OutboxMessage) *outboxRow {
	return &outboxRow{
		ID:            m.ID,
		Name:          m.Name,
		Version:       m.Version,
		TenantID:      m.TenantID,
		Username:      m.Username,
		OccurredAt:    m.OccurredAt,
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		Payload:       m.Payload,
		CreatedAt:     m.CreatedAt,
		ProcessedAt:   m.ProcessedAt,
		Attempts:      m.Attempts,
		LastError:     m.LastError,
	}
}

// GormOutboxRepository implements shared.OutboxRepository over a named
// outbox table.
type GormOutboxRepository struct {
	db    *gorm.DB
	table string
}

// NewGormOutboxRepository creates a repository for the given outbox table
func NewGormOutboxRepository(db *gorm.DB, table string) *GormOutboxRepository {
	return &GormOutboxRepository{db: db, table: table}
}

// WithTx returns a repository instance bound to the given transaction
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: tx, table: r.table}
}

// Save persists messages. Callers staging events with a business write pass
// the transaction via WithTx so both commit or neither does.
func (r *GormOutboxRepository) Save(ctx context.Context, msgs ...*shared.OutboxMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	rows := make([]*outboxRow, len(msgs))
	for i, m := range msgs {
		rows[i] = rowFromDomain(m)
	}
	return r.db.WithContext(ctx).Table(r.table).Create(rows).Error
}

// ClaimPending selects up to limit unprocessed, unexhausted messages,
// oldest first. On Postgres inside a transaction the rows are leased with
// FOR UPDATE SKIP LOCKED so competing dispatchers pass over each other's
// batches; the lease only reduces wasted work, the inbox unique constraint
// is what prevents duplicate effect.
func (r *GormOutboxRepository) ClaimPending(ctx context.Context, limit, maxAttempts int) ([]*shared.OutboxMessage, error) {
	q := r.db.WithContext(ctx).Table(r.table).
		Where("processed_at IS NULL AND attempts < ?", maxAttempts).
		Order("created_at ASC, id ASC").
		Limit(limit)

	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var rows []outboxRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	msgs := make([]*shared.OutboxMessage, len(rows))
	for i := range rows {
		msgs[i] = rows[i].toDomain()
	}
	return msgs, nil
}

// MarkProcessed is a compare-and-set: it only transitions rows that are
// still pending, so two workers finishing the same row record one outcome.
func (r *GormOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Table(r.table).
		Where("id = ? AND processed_at IS NULL", id).
		Update("processed_at", time.Now().UTC()).Error
}

// MarkFailed increments the attempt counter and records the failure cause
func (r *GormOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	return r.db.WithContext(ctx).Table(r.table).
		Where("id = ? AND processed_at IS NULL", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause,
		}).Error
}

// FindByID retrieves a single message
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxMessage, error) {
	var row outboxRow
	err := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// FindExhausted pages through messages that ran out of retries without ever
// being processed. These are stuck and need operator attention; they are
// skipped by ClaimPending but never deleted.
func (r *GormOutboxRepository) FindExhausted(ctx context.Context, maxAttempts, page, pageSize int) ([]*shared.OutboxMessage, int64, error) {
	base := r.db.WithContext(ctx).Table(r.table).
		Where("processed_at IS NULL AND attempts >= ?", maxAttempts)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []outboxRow
	offset := (page - 1) * pageSize
	if err := base.Session(&gorm.Session{}).
		Order("created_at ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	msgs := make([]*shared.OutboxMessage, len(rows))
	for i := range rows {
		msgs[i] = rows[i].toDomain()
	}
	return msgs, total, nil
}

// Requeue re-arms an unprocessed message for another round of retries
func (r *GormOutboxRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Table(r.table).
		Where("id = ? AND processed_at IS NULL", id).
		Updates(map[string]any{
			"attempts":   0,
			"last_error": "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrInvalidState
	}
	return nil
}

// CountByState returns pending/processed/exhausted totals
func (r *GormOutboxRepository) CountByState(ctx context.Context, maxAttempts int) (shared.OutboxCounts, error) {
	var counts shared.OutboxCounts

	err := r.db.WithContext(ctx).Table(r.table).
		Where("processed_at IS NULL AND attempts < ?", maxAttempts).
		Count(&counts.Pending).Error
	if err != nil {
		return counts, err
	}

	err = r.db.WithContext(ctx).Table(r.table).
		Where("processed_at IS NOT NULL").
		Count(&counts.Processed).Error
	if err != nil {
		return counts, err
	}

	err = r.db.WithContext(ctx).Table(r.table).
		Where("processed_at IS NULL AND attempts >= ?", maxAttempts).
		Count(&counts.Exhausted).Error
	return counts, err
}

// Ensure GormOutboxRepository implements OutboxRepository
var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
