package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"picoyplaca/internal/constants"
	"picoyplaca/pkg/metrics"
)

// MongoRepository archives audit records in MongoDB.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(constants.AuditMongoCollection),
	}
}

func (r *MongoRepository) Name() string {
	return constants.AuditSinkMongoDB
}

// Write upserts by record id, so replayed events do not duplicate entries.
func (r *MongoRepository) Write(ctx context.Context, rec Record) (err error) {
	defer observeMongo("upsert", time.Now(), &err)

	_, err = r.collection.ReplaceOne(ctx,
		bson.M{"_id": rec.ID},
		rec,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to archive audit record %s: %w", rec.ID, err)
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, f Filter) (records []Record, err error) {
	defer observeMongo("list", time.Now(), &err)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(f.Limit))

	cursor, err := r.collection.Find(ctx, mongoFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find audit records: %w", err)
	}
	defer cursor.Close(ctx)

	records = []Record{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode audit records: %w", err)
	}
	return records, nil
}

func mongoFilter(f Filter) bson.M {
	filter := bson.M{}
	if f.User != "" {
		filter["user"] = f.User
	}
	if f.VehiclePlate != "" {
		filter["vehicle_plate"] = f.VehiclePlate
	}
	if f.CityID != "" {
		filter["city_id"] = f.CityID
	}
	if f.VehicleID != "" {
		filter["vehicle_id"] = f.VehicleID
	}

	created := bson.M{}
	if !f.From.IsZero() {
		created["$gte"] = f.From
	}
	if !f.To.IsZero() {
		created["$lte"] = f.To
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}
	return filter
}

func observeMongo(operation string, start time.Time, err *error) {
	metrics.ObserveQuery("audit_archive", operation, start, *err)
}
