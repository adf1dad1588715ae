package events

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// TransferCompleted is emitted after a peer transfer commits. Downstream
// consumers (notifications, analytics) read it; nothing in the money path
// depends on delivery.
type TransferCompleted struct {
	TransactionID int       `json:"transaction_id"`
	SenderID      int       `json:"sender_id"`
	ReceiverID    int       `json:"receiver_id"`
	Amount        string    `json:"amount"`
	Description   string    `json:"description"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Publisher writes transfer events to Kafka. A nil Publisher is valid and
// drops events, so the web layer never branches on whether Kafka is
// configured.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// PublishTransferCompleted emits the event, keyed by transaction id so
// retries of the same transfer land in the same partition.
func (p *Publisher) PublishTransferCompleted(ctx context.Context, event TransferCompleted) error {
	if p == nil {
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.Itoa(event.TransactionID)),
		Value: value,
	})
	if err != nil {
		log.Printf("[EVENTS] Failed to publish transfer %d: %v", event.TransactionID, err)
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
