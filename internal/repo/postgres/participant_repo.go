package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confero/checkin-api/internal/domain"
)

type ParticipantRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Participant, error)
	GetByEmail(ctx context.Context, email string) (*domain.Participant, error)
	GetByCredential(ctx context.Context, credential string) (*domain.Participant, error)
	Approve(ctx context.Context, id, credential string, logAdminID *int64, note string) (*domain.Participant, bool, error)
	Reject(ctx context.Context, id string) (*domain.Participant, bool, error)
	List(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.Participant, error)
	ListAssignments(ctx context.Context, id string) ([]string, error)
	ListLogs(ctx context.Context, id string) ([]domain.ApprovalLog, error)
	StatusCounts(ctx context.Context) (map[domain.ApprovalStatus]int, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type ParticipantRepoImpl struct{ pool *pgxpool.Pool }

func NewParticipantRepo(pool *pgxpool.Pool) *ParticipantRepoImpl {
	return &ParticipantRepoImpl{pool: pool}
}

const participantCols = `id, email, name, password_hash, status, qr_code,
approved_by, approved_at, created_at, updated_at`

func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(
		&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.Status, &p.QRCode,
		&p.ApprovedBy, &p.ApprovedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ParticipantRepoImpl) GetByID(ctx context.Context, id string) (*domain.Participant, error) {
	const q = `SELECT ` + participantCols + ` FROM participants WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanParticipant(r.pool.QueryRow(ctx, q, id))
}

func (r *ParticipantRepoImpl) GetByEmail(ctx context.Context, email string) (*domain.Participant, error) {
	const q = `SELECT ` + participantCols + ` FROM participants WHERE lower(email)=lower($1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanParticipant(r.pool.QueryRow(ctx, q, email))
}

// GetByCredential matches the stored credential string exactly. The decoded
// payload is never used as the lookup key.
func (r *ParticipantRepoImpl) GetByCredential(ctx context.Context, credential string) (*domain.Participant, error) {
	const q = `SELECT ` + participantCols + ` FROM participants WHERE qr_code=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanParticipant(r.pool.QueryRow(ctx, q, credential))
}

// Approve performs the approval transition in one transaction: a conditional
// UPDATE guarded on "not already approved", plus the audit log insert when
// logAdminID is set. The guard is what serializes racing approvals on the
// same participant; the loser of the race falls through to the idempotent
// read. Returns the participant and whether a transition happened.
func (r *ParticipantRepoImpl) Approve(ctx context.Context, id, credential string, logAdminID *int64, note string) (*domain.Participant, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	const upd = `UPDATE participants
		SET status='approved', qr_code=$2, approved_by=$3, approved_at=now(), updated_at=now()
		WHERE id=$1 AND status <> 'approved'
		RETURNING ` + participantCols

	p, err := scanParticipant(tx.QueryRow(ctx, upd, id, credential, logAdminID))
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		// Not found, or already approved by a concurrent caller.
		const q = `SELECT ` + participantCols + ` FROM participants WHERE id=$1`
		existing, err := scanParticipant(tx.QueryRow(ctx, q, id))
		if err != nil || existing == nil {
			return nil, false, err
		}
		return existing, false, tx.Commit(ctx)
	}

	if logAdminID != nil {
		const ins = `INSERT INTO approval_logs (participant_id, admin_id, note) VALUES ($1,$2,$3)`
		if _, err := tx.Exec(ctx, ins, id, *logAdminID, note); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// Reject unconditionally clears the approval. The credential is left as
// previously generated. No audit log row is written.
func (r *ParticipantRepoImpl) Reject(ctx context.Context, id string) (*domain.Participant, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var prev domain.ApprovalStatus
	err = tx.QueryRow(ctx, `SELECT status FROM participants WHERE id=$1 FOR UPDATE`, id).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	const upd = `UPDATE participants
		SET status='rejected', approved_by=NULL, approved_at=NULL, updated_at=now()
		WHERE id=$1
		RETURNING ` + participantCols

	p, err := scanParticipant(tx.QueryRow(ctx, upd, id))
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return p, prev != domain.StatusRejected, nil
}

func (r *ParticipantRepoImpl) List(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.Participant, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const qAll = `SELECT ` + participantCols + ` FROM participants
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	const qByStatus = `SELECT ` + participantCols + ` FROM participants
		WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rows pgx.Rows
	var err error
	if status != nil {
		rows, err = r.pool.Query(ctx, qByStatus, *status, limit, offset)
	} else {
		rows, err = r.pool.Query(ctx, qAll, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ps := make([]domain.Participant, 0, limit)
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(
			&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.Status, &p.QRCode,
			&p.ApprovedBy, &p.ApprovedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

func (r *ParticipantRepoImpl) ListAssignments(ctx context.Context, id string) ([]string, error) {
	const q = `SELECT session FROM participant_assignments WHERE participant_id=$1 ORDER BY session`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *ParticipantRepoImpl) ListLogs(ctx context.Context, id string) ([]domain.ApprovalLog, error) {
	const q = `SELECT id, participant_id, admin_id, note, created_at
		FROM approval_logs WHERE participant_id=$1 ORDER BY created_at DESC`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.ApprovalLog
	for rows.Next() {
		var l domain.ApprovalLog
		if err := rows.Scan(&l.ID, &l.ParticipantID, &l.AdminID, &l.Note, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *ParticipantRepoImpl) StatusCounts(ctx context.Context) (map[domain.ApprovalStatus]int, error) {
	const q = `SELECT status, count(*) FROM participants GROUP BY status`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ApprovalStatus]int)
	for rows.Next() {
		var s domain.ApprovalStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

// DeleteAll wipes the participant set and everything hanging off it. The
// only path that removes participant rows.
func (r *ParticipantRepoImpl) DeleteAll(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM approval_logs`); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM participant_assignments`); err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM participants`)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ ParticipantRepo = (*ParticipantRepoImpl)(nil)
