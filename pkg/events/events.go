package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/confero/checkin-api/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Participant lifecycle events
	ParticipantUpdated   = "participant.updated"
	ParticipantScanned   = "participant.scanned"
	ParticipantBulkReset = "participant.bulk_reset"
)

// ParticipantUpdatedEvent is published after every committed approval
// transition. Delivery is at-least-once with no replay; consumers must
// tolerate duplicates.
type ParticipantUpdatedEvent struct {
	ParticipantID string     `json:"participant_id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	Approved      bool       `json:"approved"`
	ApprovedBy    *int64     `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ParticipantScannedEvent is published on every successful credential scan.
type ParticipantScannedEvent struct {
	ParticipantID string    `json:"participant_id"`
	Status        string    `json:"status"`
	ScannedAt     time.Time `json:"scanned_at"`
}

// ParticipantBulkResetEvent is published after a superadmin wipes the
// participant set. Consumers drop all local participant state on receipt.
type ParticipantBulkResetEvent struct {
	Deleted int64     `json:"deleted"`
	ResetAt time.Time `json:"reset_at"`
}
