package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"picoyplaca/internal/constants"
)

// EnsureAuditCollection creates the indexes the audit archive is queried by.
// The collection itself is created on first insert.
func EnsureAuditCollection(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(constants.AuditMongoCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_logs_created_at"),
		},
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_logs_user_created_at"),
		},
		{
			Keys:    bson.D{{Key: "city_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_logs_city_created_at"),
		},
		{
			Keys:    bson.D{{Key: "vehicle_plate", Value: 1}},
			Options: options.Index().SetName("idx_audit_logs_vehicle_plate"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}
