package event

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockOutboxRepo is an in-memory OutboxRepository for service tests
type mockOutboxRepo struct {
	msgs map[uuid.UUID]*shared.OutboxMessage
}

func newMockOutboxRepo() *mockOutboxRepo {
	return &mockOutboxRepo{msgs: make(map[uuid.UUID]*shared.OutboxMessage)}
}

func (r *mockOutboxRepo) Save(_ context.Context, msgs ...*shared.OutboxMessage) error {
	for _, m := range msgs {
		r.msgs[m.ID] = m
	}
	return nil
}

func (r *mockOutboxRepo) ClaimPending(_ context.Context, limit, maxAttempts int) ([]*shared.OutboxMessage, error) {
	var result []*shared.OutboxMessage
	for _, m := range r.msgs {
		if m.Pending() && m.Attempts < maxAttempts {
			result = append(result, m)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (r *mockOutboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	if m, ok := r.msgs[id]; ok {
		m.MarkProcessed()
	}
	return nil
}

func (r *mockOutboxRepo) MarkFailed(_ context.Context, id uuid.UUID, cause string) error {
	if m, ok := r.msgs[id]; ok {
		m.MarkFailed(cause)
	}
	return nil
}

func (r *mockOutboxRepo) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxMessage, error) {
	if m, ok := r.msgs[id]; ok {
		return m, nil
	}
	return nil, shared.ErrNotFound
}

func (r *mockOutboxRepo) FindExhausted(_ context.Context, maxAttempts, page, pageSize int) ([]*shared.OutboxMessage, int64, error) {
	var result []*shared.OutboxMessage
	for _, m := range r.msgs {
		if m.Exhausted(maxAttempts) {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (page - 1) * pageSize
	if start >= len(result) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *mockOutboxRepo) Requeue(_ context.Context, id uuid.UUID) error {
	m, ok := r.msgs[id]
	if !ok {
		return shared.ErrNotFound
	}
	return m.Requeue()
}

func (r *mockOutboxRepo) CountByState(_ context.Context, maxAttempts int) (shared.OutboxCounts, error) {
	var counts shared.OutboxCounts
	for _, m := range r.msgs {
		switch {
		case !m.Pending():
			counts.Processed++
		case m.Exhausted(maxAttempts):
			counts.Exhausted++
		default:
			counts.Pending++
		}
	}
	return counts, nil
}

var _ shared.OutboxRepository = (*mockOutboxRepo)(nil)

func stagedMessage(attempts int, processed bool) *shared.OutboxMessage {
	msg := &shared.OutboxMessage{
		ID:         uuid.New(),
		Name:       "material-created",
		Version:    1,
		TenantID:   uuid.New(),
		OccurredAt: time.Now().UTC(),
		Payload:    []byte(`{}`),
		CreatedAt:  time.Now().UTC(),
		Attempts:   attempts,
	}
	if processed {
		msg.MarkProcessed()
	}
	return msg
}

func newService(domain, integration *mockOutboxRepo) *OutboxService {
	return NewOutboxService(domain, integration, 5, zap.NewNop())
}

func TestOutboxService_GetStats(t *testing.T) {
	domain := newMockOutboxRepo()
	integration := newMockOutboxRepo()

	require.NoError(t, domain.Save(context.Background(),
		stagedMessage(0, false),
		stagedMessage(0, true),
		stagedMessage(5, false),
	))
	require.NoError(t, integration.Save(context.Background(),
		stagedMessage(2, false),
	))

	svc := newService(domain, integration)
	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Domain.Pending)
	assert.Equal(t, int64(1), stats.Domain.Processed)
	assert.Equal(t, int64(1), stats.Domain.Exhausted)
	assert.Equal(t, int64(1), stats.Integration.Pending)
	assert.Equal(t, int64(0), stats.Integration.Exhausted)
}

func TestOutboxService_ListExhausted(t *testing.T) {
	domain := newMockOutboxRepo()
	for i := 0; i < 3; i++ {
		require.NoError(t, domain.Save(context.Background(), stagedMessage(5, false)))
	}
	require.NoError(t, domain.Save(context.Background(), stagedMessage(0, false)))

	svc := newService(domain, newMockOutboxRepo())

	result, err := svc.ListExhausted(context.Background(), OutboxDomain, ListFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Total)
	assert.Len(t, result.Messages, 2)
	assert.Equal(t, 2, result.TotalPages)
	assert.Equal(t, 5, result.Messages[0].Attempts)
}

func TestOutboxService_ListExhausted_UnknownOutbox(t *testing.T) {
	svc := newService(newMockOutboxRepo(), newMockOutboxRepo())

	_, err := svc.ListExhausted(context.Background(), "bogus", ListFilter{})
	require.Error(t, err)
}

func TestOutboxService_GetMessage(t *testing.T) {
	domain := newMockOutboxRepo()
	msg := stagedMessage(1, false)
	msg.LastError = "handler blew up"
	require.NoError(t, domain.Save(context.Background(), msg))

	svc := newService(domain, newMockOutboxRepo())

	dto, err := svc.GetMessage(context.Background(), OutboxDomain, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, dto.ID)
	assert.Equal(t, "handler blew up", dto.LastError)

	_, err = svc.GetMessage(context.Background(), OutboxDomain, uuid.New())
	require.Error(t, err)
}

func TestOutboxService_Requeue(t *testing.T) {
	domain := newMockOutboxRepo()
	msg := stagedMessage(5, false)
	require.NoError(t, domain.Save(context.Background(), msg))

	svc := newService(domain, newMockOutboxRepo())

	require.NoError(t, svc.Requeue(context.Background(), OutboxDomain, msg.ID))
	assert.Equal(t, 0, msg.Attempts)
	assert.Empty(t, msg.LastError)
}

func TestOutboxService_Requeue_ProcessedMessageRejected(t *testing.T) {
	domain := newMockOutboxRepo()
	msg := stagedMessage(0, true)
	require.NoError(t, domain.Save(context.Background(), msg))

	svc := newService(domain, newMockOutboxRepo())

	err := svc.Requeue(context.Background(), OutboxDomain, msg.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestOutboxService_RequeueAllExhausted(t *testing.T) {
	integration := newMockOutboxRepo()
	for i := 0; i < 4; i++ {
		require.NoError(t, integration.Save(context.Background(), stagedMessage(5, false)))
	}
	require.NoError(t, integration.Save(context.Background(), stagedMessage(0, true)))

	svc := newService(newMockOutboxRepo(), integration)

	count, err := svc.RequeueAllExhausted(context.Background(), OutboxIntegration)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Integration.Exhausted)
	assert.Equal(t, int64(4), stats.Integration.Pending)
}
