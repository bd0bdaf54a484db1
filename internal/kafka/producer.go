package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ms-registration/internal/models"
)

const (
	TopicRegistrationCreated   = "registration-created"
	TopicRegistrationCancelled = "registration-cancelled"
)

// Producer streams registration ledger events. Messages are keyed by
// user id so one user's notifications stay ordered within a partition.
type Producer struct {
	createdWriter   *kafka.Writer
	cancelledWriter *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		createdWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   TopicRegistrationCreated,
		}),
		cancelledWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   TopicRegistrationCancelled,
		}),
	}
}

func (p *Producer) PublishRegistrationCreated(evt models.RegistrationEvent) error {
	return publish(p.createdWriter, evt)
}

func (p *Producer) PublishRegistrationCancelled(evt models.RegistrationEvent) error {
	return publish(p.cancelledWriter, evt)
}

func publish(w *kafka.Writer, evt models.RegistrationEvent) error {
	msgBytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return w.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(strconv.FormatInt(evt.UserID, 10)),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	if err := p.createdWriter.Close(); err != nil {
		return err
	}
	return p.cancelledWriter.Close()
}
