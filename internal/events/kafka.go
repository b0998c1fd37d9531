package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaConfig holds producer settings.
type KafkaConfig struct {
	Brokers           string
	Topic             string
	EnableIdempotence bool
	Acks              string
}

// LoadKafkaConfig reads KAFKA_BROKERS and KAFKA_TOPIC_POST_EVENTS.
// It returns nil when no brokers are configured.
func LoadKafkaConfig() *KafkaConfig {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil
	}

	topic := os.Getenv("KAFKA_TOPIC_POST_EVENTS")
	if topic == "" {
		topic = "post-events"
	}

	return &KafkaConfig{
		Brokers:           brokers,
		Topic:             topic,
		EnableIdempotence: true,
		Acks:              "all",
	}
}

// KafkaPublisher writes events to a single topic keyed by post ID, so all
// events of one post land on the same partition in order.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher creates an idempotent producer and starts draining its
// delivery reports in the background.
func NewKafkaPublisher(cfg *KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     cfg.Brokers,
		"enable.idempotence":                    cfg.EnableIdempotence,
		"acks":                                  cfg.Acks,
		"max.in.flight.requests.per.connection": 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	pub := &KafkaPublisher{
		producer: p,
		topic:    cfg.Topic,
		logger:   logger,
	}
	go pub.handleDeliveryReports()

	logger.Info("Kafka producer initialized",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic)

	return pub, nil
}

// Publish enqueues e. Delivery is confirmed asynchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := encodeMessage(p.topic, e)
	if err != nil {
		return err
	}

	if err := p.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	p.logger.Debug("Post event queued",
		"type", e.Type,
		"post_id", e.PostID,
		"event_id", e.ID)
	return nil
}

func encodeMessage(topic string, e Event) (*kafka.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(strconv.FormatInt(e.PostID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}

func (p *KafkaPublisher) handleDeliveryReports() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Error("Delivery failed",
					"topic", *ev.TopicPartition.Topic,
					"key", string(ev.Key),
					"error", ev.TopicPartition.Error)
			} else {
				p.logger.Debug("Message delivered",
					"topic", *ev.TopicPartition.Topic,
					"partition", ev.TopicPartition.Partition,
					"offset", ev.TopicPartition.Offset)
			}
		case kafka.Error:
			p.logger.Warn("Kafka producer error", "error", ev)
		}
	}
}

// Close flushes pending messages for up to ten seconds and closes the producer.
func (p *KafkaPublisher) Close() {
	if remaining := p.producer.Flush(10000); remaining > 0 {
		p.logger.Error("Some messages were not delivered", "count", remaining)
	}
	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}
