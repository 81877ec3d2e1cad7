package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"request-radar/internal/models"
	"request-radar/internal/stream"
)

// KafkaNotifier publishes a RequestEvent per stored request so downstream
// consumers (graph-writer) can pick it up.
type KafkaNotifier struct {
	writer stream.MessageWriter
}

// NewKafkaNotifier creates a synchronous producer for broker/topic.
func NewKafkaNotifier(broker, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: false,
		},
	}
}

// NewKafkaNotifierWithWriter builds a notifier using a custom writer (tests).
func NewKafkaNotifierWithWriter(writer stream.MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// Close shuts down the underlying writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// Notify publishes the event keyed by request id.
func (k *KafkaNotifier) Notify(ctx context.Context, cycleID string, req models.Request) error {
	payload, err := models.NewRequestEvent(cycleID, req)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(req.ID, 10)),
		Value: payload,
		Time:  time.Now().UTC(),
	}
	return k.writer.WriteMessages(ctx, msg)
}
