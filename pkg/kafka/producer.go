package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/arbor/pkg/tracing"
)

// Producer publishes messages that fell out of the ingestion pipeline
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// DeadLetter carries an envelope the pipeline could not process, with enough
// provenance to replay it by hand.
type DeadLetter struct {
	Reason    string            `json:"reason"`
	Error     string            `json:"error,omitempty"`
	Topic     string            `json:"topic"`
	Partition int               `json:"partition"`
	Offset    int64             `json:"offset"`
	Key       string            `json:"key,omitempty"`
	Value     json.RawMessage   `json:"value"`
	Headers   map[string]string `json:"headers,omitempty"`
	FailedAt  time.Time         `json:"failed_at"`
}

// PublishDeadLetter publishes a failed message to the dead-letter topic
func (p *Producer) PublishDeadLetter(ctx context.Context, dl *DeadLetter) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishDeadLetter")
	defer span.End()

	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now().UTC()
	}
	if !json.Valid(dl.Value) {
		// Keep the payload inspectable even when it is not valid JSON.
		quoted, _ := json.Marshal(string(dl.Value))
		dl.Value = quoted
	}

	data, err := json.Marshal(dl)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(dl.Key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "reason", Value: []byte(dl.Reason)},
			{Key: "source_topic", Value: []byte(dl.Topic)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish dead letter")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"reason":       dl.Reason,
		"source_topic": dl.Topic,
		"offset":       dl.Offset,
	}).Debug("Published dead letter")

	return nil
}
