package mailer

import (
	"github.com/confero/checkin-api/pkg/logger"
)

// DevMailer prints emails to the log instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendApprovalEmail(toEmail, toName string) error {
	logger.Info("[DEV MAIL] Approval Email",
		"to", toEmail,
		"name", toName,
		"subject", "You're approved!",
	)
	return nil
}

func (d *DevMailer) SendUnapprovalEmail(toEmail, toName string) error {
	logger.Info("[DEV MAIL] Status Change Email",
		"to", toEmail,
		"name", toName,
		"subject", "Your registration status changed",
	)
	return nil
}
