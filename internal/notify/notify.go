// Package notify publishes best-effort side-channel events after payment
// transitions: a Kafka record for downstream consumers and a NATS message
// for the mailer. Failures here never abort the payment flow.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/nomadhq/popup-registration/internal/models"
	"github.com/nomadhq/popup-registration/internal/telemetry"
)

const emailSubject = "email.send"

type Notifier struct {
	kafkaWriter *kafka.Writer
	nc          *nats.Conn
}

func New(kafkaWriter *kafka.Writer, nc *nats.Conn) *Notifier {
	return &Notifier{kafkaWriter: kafkaWriter, nc: nc}
}

type statusChanged struct {
	PaymentID     int64     `json:"payment_id"`
	ApplicationID int64     `json:"application_id"`
	Status        string    `json:"status"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
}

type emailEvent struct {
	Event  string            `json:"event"`
	To     int64             `json:"to_citizen_id"`
	Params map[string]string `json:"params"`
}

// PaymentStatusChanged publishes the transition to Kafka. Errors are logged
// and swallowed.
func (n *Notifier) PaymentStatusChanged(ctx context.Context, p *models.Payment) {
	if n == nil || n.kafkaWriter == nil {
		return
	}
	evt := statusChanged{
		PaymentID:     p.ID,
		ApplicationID: p.ApplicationID,
		Status:        string(p.Status),
		Amount:        p.Amount,
		Timestamp:     time.Now(),
	}
	value, _ := json.Marshal(evt)

	err := n.kafkaWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(p.ExternalID),
		Value: value,
	})
	if err != nil {
		telemetry.Logger.Warn("Failed to publish payment status event",
			zap.Int64("payment_id", p.ID),
			zap.Error(err),
		)
	}
}

// Email asks the mailer to send a templated email, fire and forget.
func (n *Notifier) Email(event string, citizenID int64, params map[string]string) {
	if n == nil || n.nc == nil {
		return
	}
	payload, _ := json.Marshal(emailEvent{Event: event, To: citizenID, Params: params})
	if err := n.nc.Publish(emailSubject, payload); err != nil {
		telemetry.Logger.Warn("Failed to publish email event",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
