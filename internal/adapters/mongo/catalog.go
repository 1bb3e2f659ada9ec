package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/event-offer-pricing/internal/domain"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("events"),
		logger: logger,
	}
}

// EventDoc stores ticket_price as a string so decimal amounts survive the
// round trip unchanged.
type EventDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Venue       string    `bson:"venue"`
	Date        time.Time `bson:"date"`
	TicketPrice string    `bson:"ticket_price"`
	Currency    string    `bson:"currency"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toDoc(e domain.Event) EventDoc {
	return EventDoc{
		ID:          e.ID.String(),
		Name:        e.Name,
		Description: e.Description,
		Venue:       e.Venue,
		Date:        e.Date,
		TicketPrice: e.TicketPrice.String(),
		Currency:    e.Currency,
	}
}

func (d EventDoc) toDomain() (domain.Event, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Event{}, errors.Wrap(err, "event id")
	}
	price, err := decimal.NewFromString(d.TicketPrice)
	if err != nil {
		return domain.Event{}, errors.Wrapf(err, "event %s ticket price", d.ID)
	}
	return domain.Event{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Venue:       d.Venue,
		Date:        d.Date,
		TicketPrice: price,
		Currency:    d.Currency,
	}, nil
}

func (c *CatalogRepository) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	var doc EventDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Event{}, errors.Wrapf(domain.ErrNotFound, "event %s", id)
	}
	if err != nil {
		c.logger.Error("failed to get event: ", err)
		return domain.Event{}, errors.Wrap(err, "find event")
	}
	return doc.toDomain()
}

func (c *CatalogRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	doc := toDoc(event)
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	_, err := c.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(domain.ErrConflict, "event %s", event.ID)
	}
	if err != nil {
		c.logger.Error("failed to create event: ", err)
		return errors.Wrap(err, "insert event")
	}
	return nil
}
