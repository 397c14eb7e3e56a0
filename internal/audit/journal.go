// Package audit keeps an append only journal of payment callback attempts.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Error kinds recorded on failed attempts.
const (
	KindValidation       = "validation"
	KindOrderNotFound    = "order_not_found"
	KindInvalidSignature = "invalid_signature"
	KindConflict         = "conflict"
	KindGatewayRejected  = "gateway_rejected"
	KindGatewayDown      = "gateway_unavailable"
	KindInternal         = "internal"
)

// Entry is one callback attempt. ErrorKind is empty for successful ones.
type Entry struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID           int64              `bson:"user_id" json:"user_id"`
	OrderID          string             `bson:"order_id" json:"order_id"`
	PaymentID        string             `bson:"payment_id" json:"payment_id"`
	State            string             `bson:"state" json:"state"`
	ErrorKind        string             `bson:"error_kind,omitempty" json:"error_kind,omitempty"`
	Error            string             `bson:"error,omitempty" json:"error,omitempty"`
	AlreadyConfirmed bool               `bson:"already_confirmed" json:"already_confirmed"`
	RequestID        string             `bson:"request_id,omitempty" json:"request_id,omitempty"`
	ReceivedAt       time.Time          `bson:"received_at" json:"received_at"`
}

type Journal struct {
	collection *mongo.Collection
}

func NewJournal(db *mongo.Database) *Journal {
	return &Journal{
		collection: db.Collection("payment_callbacks"),
	}
}

func (j *Journal) Record(ctx context.Context, entry Entry) error {
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}
	if _, err := j.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to record callback: %w", err)
	}
	return nil
}

// ListByOrder returns the attempts against an order, oldest first.
func (j *Journal) ListByOrder(ctx context.Context, orderID string) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: 1}})
	cur, err := j.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query callbacks: %w", err)
	}
	defer cur.Close(ctx)

	entries := make([]Entry, 0)
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode callbacks: %w", err)
	}
	return entries, nil
}

func (j *Journal) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "received_at", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "received_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(180 * 24 * 60 * 60), // 180 days TTL
		},
	}

	_, err := j.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
