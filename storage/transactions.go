package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// TransactionsCollection is the MongoDB collection backing the transaction routes
const TransactionsCollection = "transactions"

var (
	// ErrNotFound is returned when no document matches the id
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID is returned for ids that are not ObjectID hex strings
	ErrInvalidID = errors.New("invalid document id")
)

// DocumentCursor interface for mocking
type DocumentCursor interface {
	Next(ctx context.Context) bool
	Decode(v interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// DocumentCollection interface for mocking
type DocumentCollection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (DocumentCursor, error)
	FindOne(ctx context.Context, filter interface{}, dst interface{}) error
	InsertOne(ctx context.Context, document interface{}) (interface{}, error)
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}) (int64, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
}

// mongoDocumentCollection adapts *mongo.Collection to DocumentCollection
type mongoDocumentCollection struct {
	*mongo.Collection
}

func (m *mongoDocumentCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (DocumentCursor, error) {
	cursor, err := m.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (m *mongoDocumentCollection) FindOne(ctx context.Context, filter interface{}, dst interface{}) error {
	return m.Collection.FindOne(ctx, filter).Decode(dst)
}

func (m *mongoDocumentCollection) InsertOne(ctx context.Context, document interface{}) (interface{}, error) {
	result, err := m.Collection.InsertOne(ctx, document)
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

func (m *mongoDocumentCollection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}) (int64, error) {
	result, err := m.Collection.ReplaceOne(ctx, filter, replacement)
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

func (m *mongoDocumentCollection) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	result, err := m.Collection.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (m *mongoDocumentCollection) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return m.Collection.CountDocuments(ctx, filter)
}

// TransactionStorage persists transaction documents. Documents are stored as
// given; the only field it manages is _id.
type TransactionStorage struct {
	collection func() (DocumentCollection, error)
	timeout    time.Duration
	logger     *zap.SugaredLogger
}

// NewTransactionStorage creates storage that resolves its collection through
// the connector on every call, so it can be built before the store is up
func NewTransactionStorage(conn *Connector, timeout time.Duration, logger *zap.SugaredLogger) *TransactionStorage {
	return &TransactionStorage{
		collection: func() (DocumentCollection, error) {
			db, err := conn.Database()
			if err != nil {
				return nil, err
			}
			return &mongoDocumentCollection{Collection: db.Collection(TransactionsCollection)}, nil
		},
		timeout: timeout,
		logger:  logger,
	}
}

func (s *TransactionStorage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// parseID converts a hex id into an ObjectID filter
func parseID(id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	return bson.M{"_id": oid}, nil
}

// List returns documents newest first
func (s *TransactionStorage) List(ctx context.Context, limit, offset int64) ([]bson.M, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "_id", Value: -1}})
	findOptions.SetLimit(limit)
	findOptions.SetSkip(offset)

	cursor, err := coll.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	docs := make([]bson.M, 0)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode transaction: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return docs, nil
}

// Count returns the total number of documents
func (s *TransactionStorage) Count(ctx context.Context) (int64, error) {
	coll, err := s.collection()
	if err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	count, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// Get returns a single document
func (s *TransactionStorage) Get(ctx context.Context, id string) (bson.M, error) {
	filter, err := parseID(id)
	if err != nil {
		return nil, err
	}
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc bson.M
	if err := coll.FindOne(ctx, filter, &doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return doc, nil
}

// Create inserts doc and returns its generated id. Any _id in doc is replaced.
func (s *TransactionStorage) Create(ctx context.Context, doc bson.M) (string, error) {
	coll, err := s.collection()
	if err != nil {
		return "", err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	oid := primitive.NewObjectID()
	stored := make(bson.M, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["_id"] = oid

	if _, err := coll.InsertOne(ctx, stored); err != nil {
		return "", fmt.Errorf("failed to insert transaction: %w", err)
	}

	s.logger.Debugw("Transaction created", "id", oid.Hex())
	return oid.Hex(), nil
}

// Replace overwrites the document with the given id
func (s *TransactionStorage) Replace(ctx context.Context, id string, doc bson.M) error {
	filter, err := parseID(id)
	if err != nil {
		return err
	}
	coll, err := s.collection()
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	replacement := make(bson.M, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		replacement[k] = v
	}

	matched, err := coll.ReplaceOne(ctx, filter, replacement)
	if err != nil {
		return fmt.Errorf("failed to replace transaction: %w", err)
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document with the given id
func (s *TransactionStorage) Delete(ctx context.Context, id string) error {
	filter, err := parseID(id)
	if err != nil {
		return err
	}
	coll, err := s.collection()
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	deleted, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}
