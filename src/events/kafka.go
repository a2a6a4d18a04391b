package events

import (
	"context"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"alchemiser/src/model"
)

const flushTimeoutMs = 5000

// producer is the part of *kafka.Producer the publisher uses.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// Kafka produces events keyed by correlation id so one session stays on one partition.
type Kafka struct {
	producer producer
	topic    string
	logger   *logrus.Entry
}

// NewKafka connects a producer to broker.
func NewKafka(broker, topic string, logger *logrus.Entry) (*Kafka, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return newKafka(p, topic, logger), nil
}

func newKafka(p producer, topic string, logger *logrus.Entry) *Kafka {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	k := &Kafka{
		producer: p,
		topic:    topic,
		logger:   logger.WithField("component", "kafka_publisher"),
	}
	go k.deliveryReports()
	k.logger.WithField("topic", topic).Info("Kafka producer initialized")
	return k
}

func (k *Kafka) Publish(ctx context.Context, event model.ErrorNotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	body, err := Encode(event)
	if err != nil {
		return err
	}
	topic := k.topic
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.CorrelationID),
		Value:          body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: kafka: %v", ErrPublish, err)
	}
	return nil
}

// Close flushes outstanding messages before closing the producer.
func (k *Kafka) Close() {
	if left := k.producer.Flush(flushTimeoutMs); left > 0 {
		k.logger.WithField("pending", left).Warn("Kafka producer closed with undelivered messages")
	}
	k.producer.Close()
	k.logger.Info("Kafka producer closed")
}

// deliveryReports logs asynchronous delivery failures. It ends when the
// producer closes its events channel.
func (k *Kafka) deliveryReports() {
	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				k.logger.WithError(ev.TopicPartition.Error).
					WithField("key", string(ev.Key)).
					Error("notification delivery failed")
			}
		case kafka.Error:
			k.logger.WithError(ev).Error("Kafka producer error")
		}
	}
}
