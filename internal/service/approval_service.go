package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/confero/checkin-api/internal/credential"
	"github.com/confero/checkin-api/internal/domain"
	"github.com/confero/checkin-api/internal/repo/postgres"
	"github.com/confero/checkin-api/pkg/events"
	"github.com/confero/checkin-api/pkg/logger"
)

type ApprovalService interface {
	Approve(ctx context.Context, participantID string, actor domain.Actor, note string) (*domain.ApprovalResult, error)
	Reject(ctx context.Context, participantID string, actor domain.Actor) (*domain.ApprovalResult, error)
	ValidateCredential(ctx context.Context, cred string) (*domain.ScanSummary, error)
	OwnStatus(ctx context.Context, participantID string) (*domain.StatusResponse, error)
	OwnCredential(ctx context.Context, participantID string) (*domain.CredentialResponse, error)
	OwnSchedule(ctx context.Context, participantID string) ([]string, error)
	ListParticipants(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.Participant, error)
	GetParticipant(ctx context.Context, id string) (*domain.Participant, []domain.ApprovalLog, error)
	BulkReset(ctx context.Context, actor domain.Actor) (int64, error)
}

type approvalService struct {
	participantRepo postgres.ParticipantRepo
	eventBus        events.Publisher
}

func NewApprovalService(participantRepo postgres.ParticipantRepo, eventBus events.Publisher) ApprovalService {
	return &approvalService{
		participantRepo: participantRepo,
		eventBus:        eventBus,
	}
}

// Approve transitions a participant to approved. Calling it on an already
// approved participant is the designed no-op path: success, no new
// credential, no log entry, no event.
func (s *approvalService) Approve(ctx context.Context, participantID string, actor domain.Actor, note string) (*domain.ApprovalResult, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrUnauthorized
	}

	p, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	if p.Approved() {
		return &domain.ApprovalResult{Participant: p, Changed: false}, nil
	}

	// The credential is seeded from the stable id and original creation
	// timestamp, so racing approvals produce the same string.
	cred := credential.Encode(p.ID, p.CreatedAt)

	// The approved_by foreign key can only reference the admins table, so
	// a superadmin approval is recorded without approver or audit row.
	var logAdminID *int64
	if actor.Role == domain.RoleAdmin {
		adminID, err := strconv.ParseInt(actor.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", actor.ID, err)
		}
		logAdminID = &adminID
	}

	updated, changed, err := s.participantRepo.Approve(ctx, participantID, cred, logAdminID, note)
	if err != nil {
		return nil, fmt.Errorf("approval transaction failed: %w", err)
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}

	if changed {
		s.publishUpdated(ctx, updated)
	}

	return &domain.ApprovalResult{Participant: updated, Changed: changed}, nil
}

// Reject unconditionally clears the approval. The previously generated
// credential is left in place and no audit log entry is written.
func (s *approvalService) Reject(ctx context.Context, participantID string, actor domain.Actor) (*domain.ApprovalResult, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrUnauthorized
	}

	updated, changed, err := s.participantRepo.Reject(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("rejection transaction failed: %w", err)
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}

	s.publishUpdated(ctx, updated)

	return &domain.ApprovalResult{Participant: updated, Changed: changed}, nil
}

// ValidateCredential is read-only; it never mutates approval state. The
// scanning UI calls it first and only calls Approve after explicit staff
// confirmation. Malformed credentials and unmatched credentials are both
// reported as not found so a truncated real credential is indistinguishable
// from garbage.
func (s *approvalService) ValidateCredential(ctx context.Context, cred string) (*domain.ScanSummary, error) {
	payload, err := credential.Decode(cred)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	if payload.Type != credential.TypeParticipantQR {
		return nil, domain.ErrNotFound
	}

	p, err := s.participantRepo.GetByCredential(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}

	assignments, err := s.participantRepo.ListAssignments(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	if assignments == nil {
		assignments = []string{}
	}

	scanned := events.ParticipantScannedEvent{
		ParticipantID: p.ID,
		Status:        string(p.Status),
		ScannedAt:     time.Now(),
	}
	if err := s.eventBus.Publish(ctx, events.ParticipantScanned, scanned); err != nil {
		logger.ErrorContext(ctx, "Failed to publish scan event", "error", err, "participant_id", p.ID)
	}

	return &domain.ScanSummary{
		ParticipantID: p.ID,
		Name:          p.Name,
		Email:         p.Email,
		Status:        p.Status,
		Approved:      p.Approved(),
		Assignments:   assignments,
	}, nil
}

func (s *approvalService) OwnStatus(ctx context.Context, participantID string) (*domain.StatusResponse, error) {
	p, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return &domain.StatusResponse{
		ParticipantID: p.ID,
		Status:        p.Status,
		Approved:      p.Approved(),
		ApprovedAt:    p.ApprovedAt,
	}, nil
}

func (s *approvalService) OwnCredential(ctx context.Context, participantID string) (*domain.CredentialResponse, error) {
	p, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}

	// A participant who was never approved still gets a scannable code so
	// staff can pull them up at the door.
	qr := p.QRCode
	if qr == "" {
		qr = credential.Encode(p.ID, p.CreatedAt)
	}

	return &domain.CredentialResponse{
		ParticipantID: p.ID,
		QRCode:        qr,
	}, nil
}

func (s *approvalService) OwnSchedule(ctx context.Context, participantID string) ([]string, error) {
	p, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}

	sessions, err := s.participantRepo.ListAssignments(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	if sessions == nil {
		sessions = []string{}
	}
	return sessions, nil
}

func (s *approvalService) ListParticipants(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.Participant, error) {
	return s.participantRepo.List(ctx, status, limit, offset)
}

func (s *approvalService) GetParticipant(ctx context.Context, id string) (*domain.Participant, []domain.ApprovalLog, error) {
	p, err := s.participantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, nil, domain.ErrNotFound
	}

	logs, err := s.participantRepo.ListLogs(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list approval logs: %w", err)
	}
	return p, logs, nil
}

// BulkReset deletes every participant along with their logs and assignments.
// Superadmin only; the sole path that removes participant rows. Intended for
// wiping the roster between events.
func (s *approvalService) BulkReset(ctx context.Context, actor domain.Actor) (int64, error) {
	if actor.Role != domain.RoleSuperAdmin {
		return 0, domain.ErrForbidden
	}

	deleted, err := s.participantRepo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk reset failed: %w", err)
	}

	logger.InfoContext(ctx, "Bulk reset completed", "deleted", deleted, "actor_id", actor.ID)

	event := events.ParticipantBulkResetEvent{Deleted: deleted, ResetAt: time.Now()}
	if err := s.eventBus.Publish(ctx, events.ParticipantBulkReset, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish bulk reset event", "error", err)
	}

	return deleted, nil
}

// publishUpdated runs only after the transaction has committed; an event is
// never emitted for a transition that did not durably commit.
func (s *approvalService) publishUpdated(ctx context.Context, p *domain.Participant) {
	event := events.ParticipantUpdatedEvent{
		ParticipantID: p.ID,
		Email:         p.Email,
		Name:          p.Name,
		Status:        string(p.Status),
		Approved:      p.Approved(),
		ApprovedBy:    p.ApprovedBy,
		ApprovedAt:    p.ApprovedAt,
		UpdatedAt:     p.UpdatedAt,
	}

	if err := s.eventBus.Publish(ctx, events.ParticipantUpdated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish participant updated event", "error", err, "participant_id", p.ID)
	}
}
