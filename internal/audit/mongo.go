package audit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "action_logs"

// ConnectMongo connects and pings. The database is the one named in the URI path.
func ConnectMongo(ctx context.Context, mongoURI string) (*mongo.Database, error) {
	uri, err := url.Parse(mongoURI)
	if err != nil {
		return nil, fmt.Errorf("parse mongodb uri: %w", err)
	}
	dbName := strings.TrimPrefix(uri.Path, "/")
	if dbName == "" {
		dbName = "assassin"
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client.Database(dbName), nil
}

// Mongo stores audit entries in the action_logs collection.
type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(ctx context.Context, db *mongo.Database) (*Mongo, error) {
	coll := db.Collection(collectionName)

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, fmt.Errorf("create %s index: %w", collectionName, err)
	}
	return &Mongo{coll: coll}, nil
}

func (m *Mongo) Append(ctx context.Context, entry models.ActionLog) error {
	_, err := m.coll.InsertOne(ctx, entry)
	return err
}

// Recent returns the latest n entries, newest first.
func (m *Mongo) Recent(ctx context.Context, n int) ([]models.ActionLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(n))
	cursor, err := m.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []models.ActionLog{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.coll.Database().Client().Disconnect(ctx)
}
