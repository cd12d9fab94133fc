package materials

import (
	"context"
	"fmt"

	"github.com/hobbylab/backend/internal/domain/catalog"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/hobbylab/backend/internal/infrastructure/event"
	"gorm.io/gorm"
)

// Translator is a domain-event handler that converts internal catalog
// events into materials contracts and enqueues them into the integration
// outbox. The new envelope keeps the correlation id and takes the domain
// event's id as causation, so the causal chain survives the boundary.
// Dedup against dispatcher retries comes from the inbox row written under
// this handler's name.
type Translator struct {
	db     *gorm.DB
	writer *event.OutboxWriter
}

// NewTranslator creates the translation handler. The writer must target
// the integration outbox and carry the integration registry.
func NewTranslator(db *gorm.DB, writer *event.OutboxWriter) *Translator {
	return &Translator{db: db, writer: writer}
}

// HandlerName returns the inbox identity of the translator
func (t *Translator) HandlerName() string {
	return "materials-integration-translator"
}

// Keys returns the domain event keys the translator subscribes to
func (t *Translator) Keys() []shared.EventKey {
	return []shared.EventKey{
		{Name: catalog.EventNameMaterialCreated, Version: 1},
		{Name: catalog.EventNameMaterialPackagePriceChanged, Version: 1},
		{Name: catalog.EventNameMaterialArchived, Version: 1},
	}
}

// Handle translates one domain event and stages the result
func (t *Translator) Handle(ctx context.Context, env *shared.Envelope) error {
	contract, err := translate(env.Event)
	if err != nil {
		return err
	}

	out, err := t.writer.Factory().WrapCaused(ctx, contract, env)
	if err != nil {
		return err
	}

	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return t.writer.StageEnvelope(ctx, tx, out)
	})
}

func translate(raw shared.Event) (shared.Event, error) {
	switch e := raw.(type) {
	case catalog.MaterialCreated:
		return MaterialCreatedV1{
			MaterialID:   e.MaterialID,
			Name:         e.Name,
			Brand:        e.Brand,
			Unit:         e.Unit,
			PackageSize:  e.PackageSize.String(),
			PackagePrice: e.PackagePrice.String(),
		}, nil
	case catalog.MaterialPackagePriceChanged:
		return MaterialPriceChangedV1{
			MaterialID: e.MaterialID,
			OldPrice:   e.OldPrice.String(),
			NewPrice:   e.NewPrice.String(),
		}, nil
	case catalog.MaterialArchived:
		return MaterialArchivedV1{
			MaterialID: e.MaterialID,
			Name:       e.Name,
		}, nil
	default:
		return nil, fmt.Errorf("no materials contract for %T", raw)
	}
}

// Ensure Translator implements EventHandler
var _ shared.EventHandler = (*Translator)(nil)
