package domain

import "time"

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

func ParseApprovalStatus(s string) (ApprovalStatus, bool) {
	switch ApprovalStatus(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return ApprovalStatus(s), true
	default:
		return "", false
	}
}

type Participant struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Name         string         `json:"name"`
	PasswordHash string         `json:"-"`
	Status       ApprovalStatus `json:"status"`
	QRCode       string         `json:"qr_code,omitempty"`

	ApprovedBy *int64     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Participant) Approved() bool {
	return p.Status == StatusApproved
}

// ApprovalLog is an append-only audit record. One row is written per
// approve transition performed by an admin; rejections and superadmin
// approvals write nothing.
type ApprovalLog struct {
	ID            int64     `json:"id"`
	ParticipantID string    `json:"participant_id"`
	AdminID       int64     `json:"admin_id"`
	Note          string    `json:"note"`
	CreatedAt     time.Time `json:"created_at"`
}

// ScanSummary is what a staff device sees after scanning a QR credential.
type ScanSummary struct {
	ParticipantID string         `json:"participant_id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Status        ApprovalStatus `json:"status"`
	Approved      bool           `json:"approved"`
	Assignments   []string       `json:"assignments"`
}

type StatusResponse struct {
	ParticipantID string         `json:"participant_id"`
	Status        ApprovalStatus `json:"status"`
	Approved      bool           `json:"approved"`
	ApprovedAt    *time.Time     `json:"approved_at,omitempty"`
}

type CredentialResponse struct {
	ParticipantID string `json:"participant_id"`
	QRCode        string `json:"qr_code"`
}

// ApprovalResult is returned by approve/reject. Changed reports whether the
// call performed a transition or hit the idempotent no-op branch.
type ApprovalResult struct {
	Participant *Participant `json:"participant"`
	Changed     bool         `json:"changed"`
}
