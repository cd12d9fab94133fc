package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// toolAcquired is the v1 test payload
type toolAcquired struct {
	ToolID uuid.UUID `json:"tool_id"`
	Label  string    `json:"label"`
}

func (toolAcquired) EventName() string { return "tool-acquired" }
func (toolAcquired) EventVersion() int { return 1 }

// toolAcquiredV2 adds a location field on top of v1
type toolAcquiredV2 struct {
	ToolID   uuid.UUID `json:"tool_id"`
	Label    string    `json:"label"`
	Location string    `json:"location"`
}

func (toolAcquiredV2) EventName() string { return "tool-acquired" }
func (toolAcquiredV2) EventVersion() int { return 2 }

// toolRetired is a cross-boundary test payload with a module
type toolRetired struct {
	ToolID uuid.UUID `json:"tool_id"`
}

func (toolRetired) EventName() string   { return "tool-retired" }
func (toolRetired) EventVersion() int   { return 1 }
func (toolRetired) EventModule() string { return "workshop" }

// unnamedEvent declares no name, which registration must reject
type unnamedEvent struct{}

func (unnamedEvent) EventName() string { return "" }
func (unnamedEvent) EventVersion() int { return 1 }

func newTestRegistry(t *testing.T) *TypeRegistry {
	t.Helper()
	r := NewTypeRegistry()
	require.NoError(t, r.Register(toolAcquired{}, toolAcquiredV2{}, toolRetired{}))
	require.NoError(t, r.RegisterUpgrader("tool-acquired", 1, func(payload []byte) ([]byte, error) {
		var v1 toolAcquired
		if err := json.Unmarshal(payload, &v1); err != nil {
			return nil, err
		}
		return json.Marshal(toolAcquiredV2{ToolID: v1.ToolID, Label: v1.Label, Location: "unknown"})
	}))
	return r
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache memory database survives gorm's connection pool
	// opening more than one connection.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.Table(TableOutbox).AutoMigrate(&outboxRow{}))
	require.NoError(t, db.Table(TableIntegrationOutbox).AutoMigrate(&outboxRow{}))
	require.NoError(t, db.AutoMigrate(&inboxRow{}))
	return db
}

func testMetadata() shared.Metadata {
	correlation := uuid.New()
	return shared.Metadata{
		TenantID:      uuid.New(),
		Username:      "alex",
		CorrelationID: &correlation,
	}
}

func testContext(md shared.Metadata) context.Context {
	return shared.WithMetadata(context.Background(), md)
}

// stagePayload wraps, serializes and saves a payload into the given table,
// returning the envelope it was staged under.
func stagePayload(t *testing.T, db *gorm.DB, table string, registry *TypeRegistry, payload shared.Event) *shared.Envelope {
	t.Helper()

	ctx := testContext(testMetadata())
	env, err := NewEnvelopeFactory(registry).Wrap(ctx, payload)
	require.NoError(t, err)

	data, err := NewEnvelopeSerializer(registry).Serialize(env)
	require.NoError(t, err)

	repo := NewGormOutboxRepository(db, table)
	require.NoError(t, repo.Save(ctx, shared.NewOutboxMessage(env, data)))
	return env
}

// countingHandler records invocations and fails the first failUntil calls
type countingHandler struct {
	name      string
	calls     int
	failUntil int
	panics    bool
	seen      []*shared.Envelope
}

func (h *countingHandler) HandlerName() string { return h.name }

func (h *countingHandler) Handle(_ context.Context, env *shared.Envelope) error {
	h.calls++
	h.seen = append(h.seen, env)
	if h.panics {
		panic("handler blew up")
	}
	if h.calls <= h.failUntil {
		return fmt.Errorf("transient failure %d", h.calls)
	}
	return nil
}
