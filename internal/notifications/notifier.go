// Package notifications fans delivery job events out to riders and customers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chopmart/chopmart-backend/pkg/enums"
	"github.com/chopmart/chopmart-backend/pkg/logger"
	"github.com/chopmart/chopmart-backend/pkg/pubsub"
)

// Message is one notification addressed to a role, or to a single actor when RecipientID is set.
type Message struct {
	Kind        string                  `json:"kind"`
	JobID       uuid.UUID               `json:"jobId"`
	Recipient   enums.ActorRole         `json:"recipient"`
	RecipientID string                  `json:"recipientId,omitempty"`
	Status      enums.DeliveryJobStatus `json:"status"`
	OccurredAt  time.Time               `json:"occurredAt"`
	Data        map[string]any          `json:"data,omitempty"`
}

// Notifier delivers a message. Callers treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type publisher interface {
	Publish(ctx context.Context, msg pubsub.Message) (string, error)
}

// PubSubNotifier publishes messages as JSON with routing attributes.
type PubSubNotifier struct {
	pub  publisher
	logg *logger.Logger
}

func NewPubSubNotifier(pub publisher, logg *logger.Logger) (*PubSubNotifier, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PubSubNotifier{pub: pub, logg: logg}, nil
}

func (n *PubSubNotifier) Notify(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	id, err := n.pub.Publish(ctx, pubsub.Message{
		Data:        data,
		Attributes:  attributes(msg),
		OrderingKey: msg.JobID.String(),
	})
	if err != nil {
		return err
	}
	n.logg.Info(n.logg.WithFields(ctx, map[string]any{
		"message_id": id,
		"kind":       msg.Kind,
		"job_id":     msg.JobID.String(),
	}), "notification.published")
	return nil
}

func attributes(msg Message) map[string]string {
	attrs := map[string]string{
		"event_type": msg.Kind,
		"recipient":  msg.Recipient.String(),
		"job_id":     msg.JobID.String(),
	}
	if msg.RecipientID != "" {
		attrs["recipient_id"] = msg.RecipientID
	}
	return attrs
}

// LogNotifier writes messages to the structured log. Used when Pub/Sub is not configured.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	if n == nil || n.logg == nil {
		return nil
	}
	fields := map[string]any{
		"kind":      msg.Kind,
		"job_id":    msg.JobID.String(),
		"recipient": msg.Recipient.String(),
		"status":    msg.Status.String(),
	}
	if msg.RecipientID != "" {
		fields["recipient_id"] = msg.RecipientID
	}
	n.logg.Info(n.logg.WithFields(ctx, fields), "notification")
	return nil
}
