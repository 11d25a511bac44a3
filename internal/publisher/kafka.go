// Package publisher streams stored journey events to Kafka for downstream
// consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/pkg/logger"

	"github.com/IBM/sarama"
)

// KafkaConfig selects the brokers and topic events are published to
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaPublisher publishes journey events keyed by session id, so the
// events of one session land on the same partition in order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *logger.Logger
}

// NewProducerConfig returns the producer settings used for journey events
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_6_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

// NewKafkaPublisher connects a synchronous producer to the brokers
func NewKafkaPublisher(cfg KafkaConfig, log *logger.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Info("kafka producer initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewKafkaPublisherWithProducer(producer, cfg.Topic, log), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: log}
}

// Publish sends one event and waits for all in-sync replicas to ack it.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.JourneyEvent) error {
	msg, err := p.message(event)
	if err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send journey event: %w", err)
	}

	p.logger.WithContext(ctx).Debug("journey event published",
		"event_id", event.ID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (p *KafkaPublisher) message(event *domain.JourneyEvent) (*sarama.ProducerMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal journey event: %w", err)
	}

	return &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.SessionID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
			{Key: []byte("business_id"), Value: []byte(event.BusinessID)},
		},
		Timestamp: event.OccurredAt,
	}, nil
}

// Close flushes and closes the producer
func (p *KafkaPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
