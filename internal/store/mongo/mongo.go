// Package mongo reads and writes transactions stored as documents in a
// MongoDB collection, one document per transaction.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"finreport/internal/core"
	"finreport/internal/store"
)

const connectTimeout = 10 * time.Second

type Config struct {
	URI        string
	Database   string
	Collection string
}

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// document is the stored shape. _id may be an ObjectID when documents were
// written by other tools.
type document struct {
	ID          any       `bson:"_id"`
	UserID      string    `bson:"userId"`
	Amount      float64   `bson:"amount"`
	Type        string    `bson:"type"`
	Category    string    `bson:"category"`
	Date        time.Time `bson:"date"`
	Title       string    `bson:"title,omitempty"`
	Description string    `bson:"description,omitempty"`
	CreatedAt   time.Time `bson:"createdAt,omitempty"`
}

// Connect dials the server, verifies it with a ping and ensures the
// (userId, date) index exists.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Store{client: client, collection: coll}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// findOptions sorts by date with _id as tie-breaker so skip/limit pages
// never overlap or leave gaps.
func findOptions(page *store.Pagination) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	if page != nil && page.Limit > 0 {
		opts.SetLimit(int64(page.Limit)).SetSkip(int64(max(page.Offset, 0)))
	}
	return opts
}

func (s *Store) FetchTransactions(ctx context.Context, userID string, filter store.Filter, page *store.Pagination) ([]core.Transaction, error) {
	cursor, err := s.collection.Find(ctx, buildFilter(userID, filter), findOptions(page))
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var out []core.Transaction
	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		out = append(out, doc.toTransaction())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *Store) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	docs := make([]any, 0, len(txs))
	for _, tx := range txs {
		docs = append(docs, fromTransaction(tx))
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}

func (s *Store) DeleteUserTransactions(ctx context.Context, userID string) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) CountUserTransactions(ctx context.Context, userID string) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func buildFilter(userID string, f store.Filter) bson.M {
	q := bson.M{"userId": userID}
	date := bson.M{}
	if !f.From.IsZero() {
		date["$gte"] = f.From
	}
	if !f.To.IsZero() {
		date["$lte"] = f.To
	}
	if len(date) > 0 {
		q["date"] = date
	}
	return q
}

func (d document) toTransaction() core.Transaction {
	typ, err := core.ParseType(d.Type)
	if err != nil {
		typ = core.TransactionType(d.Type) // rejected later by core.Ingest
	}
	return core.Transaction{
		ID:          idString(d.ID),
		UserID:      d.UserID,
		Amount:      d.Amount,
		Type:        typ,
		Category:    d.Category,
		Date:        d.Date,
		Title:       d.Title,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
}

func fromTransaction(tx core.Transaction) document {
	var id any = tx.ID
	if tx.ID == "" {
		id = primitive.NewObjectID()
	}
	created := tx.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return document{
		ID:          id,
		UserID:      tx.UserID,
		Amount:      tx.Amount,
		Type:        string(tx.Type),
		Category:    core.NormalizeCategory(tx.Category),
		Date:        tx.Date,
		Title:       tx.Title,
		Description: tx.Description,
		CreatedAt:   created,
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}
