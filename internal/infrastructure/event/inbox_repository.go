package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// inboxRow is the persistence shape of the dedup ledger. The composite
// unique index is the correctness boundary for at-most-once effect.
type inboxRow struct {
	EventID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inbox_event_handler,priority:1"`
	Handler     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_inbox_event_handler,priority:2"`
	ProcessedAt time.Time `gorm:"not null"`
	Attempts    int       `gorm:"not null;default:1"`
}

func (inboxRow) TableName() string {
	return "inbox_messages"
}

// GormInboxRepository implements shared.InboxRepository
type GormInboxRepository struct {
	db *gorm.DB
}

// NewGormInboxRepository creates a new inbox repository
func NewGormInboxRepository(db *gorm.DB) *GormInboxRepository {
	return &GormInboxRepository{db: db}
}

// WithTx returns a repository instance bound to the given transaction
func (r *GormInboxRepository) WithTx(tx *gorm.DB) *GormInboxRepository {
	return &GormInboxRepository{db: tx}
}

// Seen reports whether (eventID, handler) was already applied
func (r *GormInboxRepository) Seen(ctx context.Context, eventID uuid.UUID, handler string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&inboxRow{}).
		Where("event_id = ? AND handler = ?", eventID, handler).
		Count(&count).Error
	return count > 0, err
}

// Record inserts the dedup row, ignoring a duplicate
func (r *GormInboxRepository) Record(ctx context.Context, eventID uuid.UUID, handler string) error {
	row := inboxRow{
		EventID:     eventID,
		Handler:     handler,
		ProcessedAt: time.Now().UTC(),
		Attempts:    1,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// Claim inserts the dedup row via insert-or-ignore and reports whether this
// caller won it. Bound to the consuming transaction, a lost claim means the
// message was already applied; a handler failure after a won claim rolls
// the row back along with the side effects, so redelivery retries cleanly.
func (r *GormInboxRepository) Claim(ctx context.Context, eventID uuid.UUID, handler string) (bool, error) {
	row := inboxRow{
		EventID:     eventID,
		Handler:     handler,
		ProcessedAt: time.Now().UTC(),
		Attempts:    1,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Ensure GormInboxRepository implements InboxRepository
var _ shared.InboxRepository = (*GormInboxRepository)(nil)
