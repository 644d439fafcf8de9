package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	kafkaDeliveryTimeout = 3 * time.Second
	kafkaFlushTimeoutMs  = 15 * 1000
)

// producer is the subset of *kafka.Producer used by KafkaSink.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaSink publishes every event as a JSON message on a topic and waits
// for its delivery report. The event "type" is used as the message key.
type KafkaSink struct {
	producer producer
	topic    string
}

// NewKafkaSink creates a producer against the given bootstrap servers.
func NewKafkaSink(bootstrapServers, topic string) (*KafkaSink, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": bootstrapServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &KafkaSink{producer: p, topic: topic}, nil
}

// Write produces evt and blocks until it is acknowledged or times out.
func (s *KafkaSink) Write(evt Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.topic, Partition: kafka.PartitionAny},
		Value:          value,
	}
	if typ, ok := evt["type"].(string); ok && typ != "" {
		msg.Key = []byte(typ)
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := s.producer.Produce(msg, deliveryChan); err != nil {
		return err
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event: %v", e)
		}
		return m.TopicPartition.Error
	case <-time.After(kafkaDeliveryTimeout):
		return kafka.NewError(kafka.ErrTimedOut, "delivery timeout", false)
	}
}

// Close flushes outstanding messages and closes the producer.
func (s *KafkaSink) Close(_ context.Context) error {
	remaining := s.producer.Flush(kafkaFlushTimeoutMs)
	s.producer.Close()
	if remaining > 0 {
		return fmt.Errorf("kafka topic %s: %d message(s) not delivered", s.topic, remaining)
	}
	return nil
}
