package notifier

import (
	"context"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/pkg/errors"
)

// ChannelKafka is the channel name of the Kafka sink.
const ChannelKafka = "kafka"

// kafkaFlushTimeoutMs bounds the final flush on Close.
const kafkaFlushTimeoutMs = 5000

// KafkaChannel publishes status payloads to a Kafka topic. Messages are
// keyed by transaction id so per-transaction ordering survives partitioning.
type KafkaChannel struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaChannel creates a Kafka delivery channel.
//
// Parameters:
// - bootstrapServers: the broker list for the producer.
// - topic: the topic to publish status events to.
//
// Returns:
// - *KafkaChannel: the new channel instance.
// - error: an error if the producer could not be created.
func NewKafkaChannel(bootstrapServers, topic string) (*KafkaChannel, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": bootstrapServers})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka producer")
	}

	return &KafkaChannel{producer: producer, topic: topic}, nil
}

// Name returns the channel identifier.
func (c *KafkaChannel) Name() string { return ChannelKafka }

// Deliver produces the event and waits for the broker's delivery report.
func (c *KafkaChannel) Deliver(ctx context.Context, event *types.NotificationEvent) error {
	value, err := marshalStatusPayload(event)
	if err != nil {
		return errors.Wrap(err, "failed to encode kafka payload")
	}

	deliveryChan := make(chan kafka.Event, 1)
	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &c.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.TransactionID),
		Value:          value,
	}
	if err := c.producer.Produce(message, deliveryChan); err != nil {
		return errors.Wrap(err, "failed to enqueue kafka message")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case delivered := <-deliveryChan:
		report, ok := delivered.(*kafka.Message)
		if !ok {
			return errors.Errorf("unexpected kafka delivery event %T", delivered)
		}
		if report.TopicPartition.Error != nil {
			return errors.Wrap(report.TopicPartition.Error, "kafka delivery failed")
		}
		return nil
	}
}

// Close flushes buffered messages and releases the producer.
func (c *KafkaChannel) Close() {
	c.producer.Flush(kafkaFlushTimeoutMs)
	c.producer.Close()
}
