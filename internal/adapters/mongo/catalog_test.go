package mongo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	mongoadapter "github.com/robertarktes/event-offer-pricing/internal/adapters/mongo"
	"github.com/robertarktes/event-offer-pricing/internal/domain"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mongoContainer.Terminate(ctx) })

	host, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+host+":"+port.Port()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Disconnect(ctx) })
	return client.Database("offers_test")
}

func TestCatalogRepository(t *testing.T) {
	db := setupMongo(t)
	catalog := mongoadapter.NewCatalogRepository(db, observability.NewDiscardLogger())
	ctx := context.Background()

	event := domain.Event{
		ID:          uuid.New(),
		Name:        "Open mic",
		Venue:       "Blue Frog",
		Date:        time.Date(2025, 3, 7, 20, 0, 0, 0, time.UTC),
		TicketPrice: decimal.RequireFromString("499.50"),
		Currency:    "₹",
	}
	if err := catalog.CreateEvent(ctx, event); err != nil {
		t.Fatal(err)
	}
	if err := catalog.CreateEvent(ctx, event); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict on duplicate id, got %v", err)
	}

	got, err := catalog.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != event.Name || !got.TicketPrice.Equal(event.TicketPrice) || !got.Date.Equal(event.Date) {
		t.Errorf("unexpected event %+v", got)
	}

	if _, err := catalog.GetEvent(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestAuditLogger_LogOffer(t *testing.T) {
	db := setupMongo(t)
	audit := mongoadapter.NewAuditLogger(db, observability.NewDiscardLogger())
	ctx := context.Background()

	offer := domain.Offer{
		ID:              uuid.New(),
		EventID:         uuid.New(),
		Type:            domain.OfferStudentDiscount,
		PriceAdjustment: decimal.NewFromInt(250),
		IsActive:        true,
	}
	if err := audit.LogOffer(ctx, "offer.created", offer); err != nil {
		t.Fatal(err)
	}

	var entry mongoadapter.AuditLog
	err := db.Collection("audit_logs").FindOne(ctx, bson.M{"event_id": offer.EventID.String()}).Decode(&entry)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Action != "offer.created" || entry.Data["offer_type"] != "student_discount" {
		t.Errorf("unexpected audit entry %+v", entry)
	}
}
