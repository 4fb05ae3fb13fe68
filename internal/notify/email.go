package notify

import (
	"encoding/json"
	"sync"

	"github.com/confero/checkin-api/internal/mailer"
	"github.com/confero/checkin-api/pkg/events"
	"github.com/confero/checkin-api/pkg/logger"
)

// EmailNotifier emails the affected participant when their approval flips.
// It remembers the last approval state it saw per participant so duplicate
// deliveries do not produce duplicate mail.
type EmailNotifier struct {
	mailer mailer.Service

	mu   sync.Mutex
	seen map[string]bool // participant id -> last approved state
}

func NewEmailNotifier(m mailer.Service) *EmailNotifier {
	return &EmailNotifier{
		mailer: m,
		seen:   make(map[string]bool),
	}
}

func (n *EmailNotifier) Handle(ev events.ParticipantUpdatedEvent) {
	n.mu.Lock()
	last, known := n.seen[ev.ParticipantID]
	n.seen[ev.ParticipantID] = ev.Approved
	n.mu.Unlock()

	if known && last == ev.Approved {
		return
	}

	var err error
	if ev.Approved {
		err = n.mailer.SendApprovalEmail(ev.Email, ev.Name)
	} else if known {
		// Only mail an un-approval if we previously saw them approved;
		// a fresh rejection of a never-approved participant stays quiet.
		err = n.mailer.SendUnapprovalEmail(ev.Email, ev.Name)
	}
	if err != nil {
		logger.Error("Failed to send status email", "error", err, "participant_id", ev.ParticipantID)
	}
}

// Start subscribes the notifier to the participant event stream. A queue
// subscription keeps replicas from double-mailing.
func (n *EmailNotifier) Start(bus events.Subscriber) error {
	return bus.QueueSubscribe(events.ParticipantUpdated, "email-notifier", func(msg *events.Message) {
		var ev events.ParticipantUpdatedEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Error("Failed to decode participant event", "error", err, "subject", msg.Subject)
			return
		}
		n.Handle(ev)
	})
}
