package mailer

type Service interface {
	SendApprovalEmail(toEmail, toName string) error
	SendUnapprovalEmail(toEmail, toName string) error
}
