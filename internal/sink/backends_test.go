package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeCollection struct {
	batches [][]interface{}
	err     error
}

func (c *fakeCollection) InsertMany(_ context.Context, docs []interface{}, _ ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	cp := make([]interface{}, len(docs))
	copy(cp, docs)
	c.batches = append(c.batches, cp)
	return &mongo.InsertManyResult{}, nil
}

func TestMongoSinkBatches(t *testing.T) {
	coll := &fakeCollection{}
	s := newMongoSink(coll, 2)

	require.NoError(t, s.Write(Event{"n": 1}))
	assert.Empty(t, coll.batches)
	require.NoError(t, s.Write(Event{"n": 2}))
	require.Len(t, coll.batches, 1)
	require.NoError(t, s.Write(Event{"n": 3}))

	require.NoError(t, s.Close(context.Background()))
	require.Len(t, coll.batches, 2)
	assert.Len(t, coll.batches[0], 2)
	assert.Equal(t, bson.M{"n": 3}, coll.batches[1][0])

	// nothing left to flush
	require.NoError(t, s.Close(context.Background()))
	assert.Len(t, coll.batches, 2)
}

func TestMongoSinkCloseError(t *testing.T) {
	coll := &fakeCollection{err: errors.New("no primary")}
	s := newMongoSink(coll, 0)
	assert.Equal(t, DefaultMongoBatchSize, s.batchSize)

	require.NoError(t, s.Write(Event{"n": 1}))
	assert.Error(t, s.Close(context.Background()))
}

type fakeProducer struct {
	messages  []*kafka.Message
	deliver   error
	remaining int
	closed    bool
}

func (p *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	p.messages = append(p.messages, msg)
	report := *msg
	report.TopicPartition.Error = p.deliver
	deliveryChan <- &report
	return nil
}

func (p *fakeProducer) Flush(int) int { return p.remaining }

func (p *fakeProducer) Close() { p.closed = true }

func TestKafkaSink(t *testing.T) {
	p := &fakeProducer{}
	s := &KafkaSink{producer: p, topic: "rejected_records"}

	require.NoError(t, s.Write(Event{"type": "bogus", "reason": "Unknown type"}))
	require.Len(t, p.messages, 1)

	msg := p.messages[0]
	assert.Equal(t, "rejected_records", *msg.TopicPartition.Topic)
	assert.Equal(t, []byte("bogus"), msg.Key)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "Unknown type", body["reason"])

	require.NoError(t, s.Close(context.Background()))
	assert.True(t, p.closed)
}

func TestKafkaSinkErrors(t *testing.T) {
	p := &fakeProducer{deliver: kafka.NewError(kafka.ErrMsgTimedOut, "timed out", false), remaining: 2}
	s := &KafkaSink{producer: p, topic: "t"}

	assert.Error(t, s.Write(Event{"type": "x"}))
	assert.Error(t, s.Close(context.Background()))
	assert.True(t, p.closed)
}

// flakyCollection fails the first fails calls. A failing call stores the
// first stored documents of the batch and reports the next one as the
// failing index, like an ordered InsertMany.
type flakyCollection struct {
	fails  int
	stored int
	docs   []interface{}
}

func (c *flakyCollection) InsertMany(_ context.Context, docs []interface{}, _ ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	if c.fails > 0 {
		c.fails--
		c.docs = append(c.docs, docs[:c.stored]...)
		return nil, mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{
			{WriteError: mongo.WriteError{Index: c.stored, Code: 91, Message: "shutdown in progress"}},
		}}
	}
	c.docs = append(c.docs, docs...)
	return &mongo.InsertManyResult{}, nil
}

func TestMongoSinkRetriedWriteStoresOnce(t *testing.T) {
	coll := &flakyCollection{fails: 1}
	s := &RetrySink{inner: newMongoSink(coll, 1), attempts: 3, sleep: func(time.Duration) {}}

	require.NoError(t, s.Write(Event{"type": "transaction", "id": 1}))
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, []interface{}{bson.M{"type": "transaction", "id": 1}}, coll.docs)
}

func TestMongoSinkPartialInsertIsNotRepeated(t *testing.T) {
	coll := &flakyCollection{fails: 1, stored: 1}
	s := &RetrySink{inner: newMongoSink(coll, 3), attempts: 2, sleep: func(time.Duration) {}}

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Write(Event{"id": i}))
	}
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, []interface{}{bson.M{"id": 1}, bson.M{"id": 2}, bson.M{"id": 3}}, coll.docs)
}

func TestMongoSinkFailedWriteIsNotBuffered(t *testing.T) {
	coll := &flakyCollection{fails: 1}
	s := newMongoSink(coll, 1)

	require.Error(t, s.Write(Event{"id": 1}))
	require.NoError(t, s.Close(context.Background()))
	assert.Empty(t, coll.docs)
}
