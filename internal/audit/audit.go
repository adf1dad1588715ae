package audit

import (
	"encoding/json"
	"log"
	"time"
)

// Event is one structured audit record for a money movement or a rejected
// attempt at one.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID int       `json:"transaction_id,omitempty"`
	AccountID     int       `json:"account_id"`
	Amount        string    `json:"amount,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogMovement(eventType string, transactionID, accountID int, amount, status string) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     eventType,
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        amount,
		Status:        status,
	})
}

func (a *Logger) LogTransfer(transactionID, senderID, receiverID int, amount, status string) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "TRANSFER",
		TransactionID: transactionID,
		AccountID:     senderID,
		Amount:        amount,
		Status:        status,
		Details: map[string]int{
			"receiver_id": receiverID,
		},
	})
}

func (a *Logger) LogRejection(eventType string, accountID int, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: eventType,
		AccountID: accountID,
		Status:    "REJECTED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
