package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo refuses documents above 16MiB; keep headroom for the envelope fields.
const defaultMongoMaxValueBytes = 15 << 20

const bsonObjectTooLarge = 10334

type snapshotDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type MongoStore struct {
	collection *mongo.Collection
	maxBytes   int
}

func NewMongoStore(db *mongo.Database, maxValueBytes int) *MongoStore {
	if maxValueBytes <= 0 {
		maxValueBytes = defaultMongoMaxValueBytes
	}
	return &MongoStore{
		collection: db.Collection("cart_snapshots"),
		maxBytes:   maxValueBytes,
	}
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func (m *MongoStore) Get(ctx context.Context, key string) (string, error) {
	var doc snapshotDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get snapshot: %w", err)
	}
	return doc.Value, nil
}

func (m *MongoStore) Set(ctx context.Context, key, value string) error {
	if len(value) > m.maxBytes {
		return fmt.Errorf("%w: value of %d bytes exceeds %d", ErrQuotaExceeded, len(value), m.maxBytes)
	}

	doc := snapshotDocument{Key: key, Value: value, UpdatedAt: time.Now()}
	opts := options.Replace().SetUpsert(true)
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts)
	if err != nil {
		var serverErr mongo.ServerError
		if errors.As(err, &serverErr) && serverErr.HasErrorCode(bsonObjectTooLarge) {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

func (m *MongoStore) Remove(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// CreateIndexes expires snapshots that have not been written for 90 days.
func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
