package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka publishes one message per record, keyed by exchange so a series
// stays ordered within its partition.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           100 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

func (k *Kafka) Name() string { return "kafka" }

type kafkaEnvelope struct {
	RunID    string `json:"run_id"`
	Symbol   string `json:"symbol"`
	DataType string `json:"data_type"`
	Record
}

func (k *Kafka) Write(ctx context.Context, batch *Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(batch.Records))
	for _, r := range batch.Records {
		value, err := json.Marshal(kafkaEnvelope{
			RunID:    batch.RunID,
			Symbol:   batch.Symbol,
			DataType: batch.DataType,
			Record:   r,
		})
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.Exchange),
			Value: value,
			Time:  r.Timestamp,
		})
	}

	return k.writer.WriteMessages(ctx, msgs...)
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
