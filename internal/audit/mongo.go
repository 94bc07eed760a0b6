package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/prodaja/internal/model"
)

const (
	logsCollection     = "listing_logs"
	countersCollection = "counters"
)

// Mongo keeps the log in a MongoDB collection. IDs are sequential and come
// from a counter document, so ordering matches the SQLite backend.
type Mongo struct {
	client   *mongo.Client
	logs     *mongo.Collection
	counters *mongo.Collection
}

type logDocument struct {
	ID             int64     `bson:"_id"`
	AttemptID      string    `bson:"attempt_id"`
	PhoneID        int64     `bson:"phone_id"`
	Platform       string    `bson:"platform"`
	Success        bool      `bson:"success"`
	AttemptedPrice *string   `bson:"attempted_price"`
	Fee            *string   `bson:"fee"`
	Message        string    `bson:"message"`
	ListedBy       string    `bson:"listed_by,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}

// NewMongo connects to uri and returns a Log stored in database dbName.
func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(dbName)
	return &Mongo{
		client:   client,
		logs:     db.Collection(logsCollection),
		counters: db.Collection(countersCollection),
	}, nil
}

// Append stores e under the next sequential ID.
func (l *Mongo) Append(ctx context.Context, e *model.ListingLogEntry) error {
	if e.Message == "" {
		return fmt.Errorf("%w: listing log message is required", model.ErrValidation)
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := l.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": logsCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return fmt.Errorf("allocating listing log id: %w", err)
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	// BSON dates carry millisecond precision.
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)

	doc := logDocument{
		ID:             counter.Seq,
		AttemptID:      e.AttemptID,
		PhoneID:        e.PhoneID,
		Platform:       string(e.Platform),
		Success:        e.Success,
		AttemptedPrice: nullDecimalString(e.AttemptedPrice),
		Fee:            nullDecimalString(e.Fee),
		Message:        e.Message,
		ListedBy:       e.ListedBy,
		CreatedAt:      e.CreatedAt,
	}
	if _, err := l.logs.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("appending listing log: %w", err)
	}

	e.ID = doc.ID
	return nil
}

// List returns entries matching filter, newest first.
func (l *Mongo) List(ctx context.Context, filter model.ListingFilter) ([]model.ListingLogEntry, error) {
	query := bson.M{}
	if filter.PhoneID > 0 {
		query["phone_id"] = filter.PhoneID
	}
	if filter.Platform != "" {
		query["platform"] = string(filter.Platform)
	}
	if filter.Success != nil {
		query["success"] = *filter.Success
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(filter.EffectiveLimit()))

	cursor, err := l.logs.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("listing listing logs: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []model.ListingLogEntry
	for cursor.Next(ctx) {
		var doc logDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding listing log: %w", err)
		}
		e, err := doc.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, cursor.Err()
}

// Close disconnects from MongoDB.
func (l *Mongo) Close(ctx context.Context) error {
	return l.client.Disconnect(ctx)
}

func (d logDocument) entry() (model.ListingLogEntry, error) {
	price, err := parseNullDecimal(d.AttemptedPrice)
	if err != nil {
		return model.ListingLogEntry{}, fmt.Errorf("decoding attempted price of listing log %d: %w", d.ID, err)
	}
	fee, err := parseNullDecimal(d.Fee)
	if err != nil {
		return model.ListingLogEntry{}, fmt.Errorf("decoding fee of listing log %d: %w", d.ID, err)
	}
	return model.ListingLogEntry{
		ID:             d.ID,
		AttemptID:      d.AttemptID,
		PhoneID:        d.PhoneID,
		Platform:       model.Platform(d.Platform),
		Success:        d.Success,
		AttemptedPrice: price,
		Fee:            fee,
		Message:        d.Message,
		ListedBy:       d.ListedBy,
		CreatedAt:      d.CreatedAt.UTC(),
	}, nil
}

func nullDecimalString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

var _ Log = (*Mongo)(nil)
var _ Log = (*SQLite)(nil)
