package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"ms-registration/internal/models"
)

type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a Kafka consumer for the given topic and group.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Start consumes registration events until ctx is cancelled. Malformed
// messages are logged and skipped.
func (c *Consumer) Start(ctx context.Context, handler func(evt models.RegistrationEvent)) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error reading message: %v", err)
			continue
		}

		var evt models.RegistrationEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Printf("Failed to unmarshal registration event: %v", err)
			continue
		}

		handler(evt)
	}
}

// Close gracefully shuts down the Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
