package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/sweetshop/pkg/config"
)

// Event is a best-effort fact emitted by the core ("order created",
// "stock changed", "status changed"). Losing one must never fail the
// business operation that produced it.
type Event struct {
	ID        string    `bson:"_id,omitempty"`
	Service   string    `bson:"service"`
	Action    string    `bson:"action"`
	EntityID  string    `bson:"entity_id"`
	Data      bson.M    `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
}

// EventSink receives core events. The Mongo-backed implementation below
// is the production sink; tests substitute an in-memory one.
type EventSink interface {
	Record(ctx context.Context, event *Event) error
}

type MongoEventSink struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoEventSink(cfg *config.MongoDBConfig) (*MongoEventSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &MongoEventSink{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoEventSink) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoEventSink) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoEventSink) Record(ctx context.Context, event *Event) error {
	collection := m.database.Collection(m.config.Collection)
	event.CreatedAt = time.Now()
	_, err := collection.InsertOne(ctx, event)
	return err
}

// ListEvents returns the most recent events for an entity, newest first.
func (m *MongoEventSink) ListEvents(ctx context.Context, entityID string, limit int64) ([]*Event, error) {
	collection := m.database.Collection(m.config.Collection)

	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*Event
	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}

	return events, nil
}
