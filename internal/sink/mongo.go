package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoBatchSize is used when no batch size is configured.
const DefaultMongoBatchSize = 500

const mongoFlushTimeout = 20 * time.Second

// inserter is the subset of *mongo.Collection used by MongoSink.
type inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// MongoSink buffers events and stores them with InsertMany, either when the
// buffer reaches batchSize or on Close.
type MongoSink struct {
	coll      inserter
	client    *mongo.Client
	batchSize int
	buf       []interface{}
}

// NewMongoSink connects to uri and targets database.collection.
func NewMongoSink(ctx context.Context, uri, database, collection string, batchSize int) (*MongoSink, error) {
	cctx, cancel := context.WithTimeout(ctx, mongoFlushTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	logrus.Infof("connected to mongodb | db=%s collection=%s", database, collection)

	s := newMongoSink(client.Database(database).Collection(collection), batchSize)
	s.client = client
	return s, nil
}

func newMongoSink(coll inserter, batchSize int) *MongoSink {
	if batchSize <= 0 {
		batchSize = DefaultMongoBatchSize
	}
	return &MongoSink{coll: coll, batchSize: batchSize}
}

// Write buffers the event, flushing when the batch is full.
//
// A failed Write leaves evt out of the buffer, so calling Write again with
// the same event stores it once. Documents buffered by earlier writes stay
// pending until the next flush.
func (s *MongoSink) Write(evt Event) error {
	s.buf = append(s.buf, bson.M(evt))
	if len(s.buf) < s.batchSize {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoFlushTimeout)
	defer cancel()
	if err := s.flush(ctx); err != nil {
		// evt is last and an ordered insert stops at the first failure, so
		// it was never stored.
		s.buf = s.buf[:len(s.buf)-1]
		return err
	}
	return nil
}

// flush inserts the buffer in order. On a partial failure the documents
// stored before the first failing one are dropped from the buffer.
func (s *MongoSink) flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}
	n := len(s.buf)
	if _, err := s.coll.InsertMany(ctx, s.buf); err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
			if idx := bwe.WriteErrors[0].Index; idx > 0 && idx < n {
				s.buf = append(s.buf[:0], s.buf[idx:]...)
			}
		}
		return fmt.Errorf("mongodb insert of %d documents failed: %w", n, err)
	}
	s.buf = s.buf[:0]
	return nil
}

// Close stores the remaining documents and disconnects the client.
func (s *MongoSink) Close(ctx context.Context) error {
	err := s.flush(ctx)
	if s.client != nil {
		if derr := s.client.Disconnect(ctx); derr != nil && err == nil {
			err = fmt.Errorf("failed to disconnect from mongodb: %w", derr)
		}
		s.client = nil
	}
	return err
}
