package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/event-offer-pricing/internal/domain"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"action"`
	EventID   string    `bson:"event_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, eventID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		EventID:   eventID.String(),
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log: ", err)
		return err
	}
	return nil
}

// LogOffer records an offer mutation such as offer.created or offer.toggled.
func (a *AuditLogger) LogOffer(ctx context.Context, action string, offer domain.Offer) error {
	data := map[string]interface{}{
		"offer_id":         offer.ID.String(),
		"offer_type":       string(offer.Type),
		"title":            offer.Title,
		"price_adjustment": offer.PriceAdjustment.String(),
		"is_active":        offer.IsActive,
	}
	return a.LogEvent(ctx, action, offer.EventID, data)
}
