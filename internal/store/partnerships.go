package store

import (
	"context"
	"fmt"
)

// maxActivePartners is the per-submission cap counting pending and accepted
// rows. Declined rows keep their slot released but still block the pair.
const maxActivePartners = 3

// ClaimPartnership creates a pending partnership if the submission has a
// free slot and this board member has never claimed it before. The
// submission row is locked for the duration so concurrent claims serialize
// and the cap holds.
func (s *PostgresStore) ClaimPartnership(ctx context.Context, id, submissionID, boardUserID string) (Partnership, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Partnership{}, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var founderID string
	err = tx.QueryRowContext(ctx, `
		SELECT founder_id FROM submissions WHERE id=$1 FOR UPDATE
	`, submissionID).Scan(&founderID)
	if err != nil {
		return Partnership{}, err
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM partnerships WHERE submission_id=$1 AND board_user_id=$2)
	`, submissionID, boardUserID).Scan(&exists)
	if err != nil {
		return Partnership{}, fmt.Errorf("check existing partnership: %w", err)
	}
	if exists {
		return Partnership{}, ErrPartnerExists
	}

	var active int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM partnerships WHERE submission_id=$1 AND status IN ('pending', 'accepted')
	`, submissionID).Scan(&active)
	if err != nil {
		return Partnership{}, fmt.Errorf("count active partners: %w", err)
	}
	if active >= maxActivePartners {
		return Partnership{}, ErrPartnerLimit
	}

	item := Partnership{
		ID:           id,
		SubmissionID: submissionID,
		BoardUserID:  boardUserID,
		Status:       "pending",
		FounderID:    founderID,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO partnerships (id, submission_id, board_user_id, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING created_at
	`, id, submissionID, boardUserID).Scan(&item.CreatedAt)
	if isUniqueViolation(err) {
		return Partnership{}, ErrPartnerExists
	}
	if err != nil {
		return Partnership{}, fmt.Errorf("insert partnership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Partnership{}, fmt.Errorf("commit claim tx: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetPartnership(ctx context.Context, partnershipID string) (Partnership, error) {
	var item Partnership
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.submission_id, p.board_user_id, p.status, p.created_at, p.responded_at,
			b.name, b.specialty, s.company_name, s.founder_id
		FROM partnerships p
		JOIN users b ON b.id = p.board_user_id
		JOIN submissions s ON s.id = p.submission_id
		WHERE p.id = $1
	`, partnershipID).Scan(
		&item.ID, &item.SubmissionID, &item.BoardUserID, &item.Status, &item.CreatedAt, &item.RespondedAt,
		&item.MemberName, &item.MemberSpecialty, &item.CompanyName, &item.FounderID,
	)
	if err != nil {
		return Partnership{}, err
	}
	return item, nil
}

// RespondPartnership resolves a pending request. The status predicate makes
// the second response a no-op so accept-then-decline races cannot flip a
// settled decision.
func (s *PostgresStore) RespondPartnership(ctx context.Context, partnershipID, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE partnerships SET status=$2, responded_at=NOW() WHERE id=$1 AND status='pending'
	`, partnershipID, status)
	if err != nil {
		return false, fmt.Errorf("respond partnership: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("respond partnership rows: %w", err)
	}
	return affected > 0, nil
}

// WithdrawPartnership deletes the caller's pending row outright. Deleting
// rather than marking lets the same member claim the submission again later,
// which a declined row would block.
func (s *PostgresStore) WithdrawPartnership(ctx context.Context, submissionID, boardUserID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM partnerships WHERE submission_id=$1 AND board_user_id=$2 AND status='pending'
	`, submissionID, boardUserID)
	if err != nil {
		return false, fmt.Errorf("withdraw partnership: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("withdraw partnership rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListSubmissionPartners(ctx context.Context, submissionID string) ([]Partnership, error) {
	return s.listPartnerships(ctx, `
		SELECT p.id, p.submission_id, p.board_user_id, p.status, p.created_at, p.responded_at,
			b.name, b.specialty, s.company_name, s.founder_id
		FROM partnerships p
		JOIN users b ON b.id = p.board_user_id
		JOIN submissions s ON s.id = p.submission_id
		WHERE p.submission_id = $1
		ORDER BY p.created_at ASC
	`, submissionID)
}

func (s *PostgresStore) ListFounderPartnerships(ctx context.Context, founderID string) ([]Partnership, error) {
	return s.listPartnerships(ctx, `
		SELECT p.id, p.submission_id, p.board_user_id, p.status, p.created_at, p.responded_at,
			b.name, b.specialty, s.company_name, s.founder_id
		FROM partnerships p
		JOIN users b ON b.id = p.board_user_id
		JOIN submissions s ON s.id = p.submission_id
		WHERE s.founder_id = $1
		ORDER BY p.created_at DESC
	`, founderID)
}

func (s *PostgresStore) ListBoardPartnerships(ctx context.Context, boardUserID string) ([]Partnership, error) {
	return s.listPartnerships(ctx, `
		SELECT p.id, p.submission_id, p.board_user_id, p.status, p.created_at, p.responded_at,
			b.name, b.specialty, s.company_name, s.founder_id
		FROM partnerships p
		JOIN users b ON b.id = p.board_user_id
		JOIN submissions s ON s.id = p.submission_id
		WHERE p.board_user_id = $1
		ORDER BY p.created_at DESC
	`, boardUserID)
}

func (s *PostgresStore) listPartnerships(ctx context.Context, query string, args ...any) ([]Partnership, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list partnerships: %w", err)
	}
	defer rows.Close()

	items := make([]Partnership, 0)
	for rows.Next() {
		var item Partnership
		if err := rows.Scan(
			&item.ID, &item.SubmissionID, &item.BoardUserID, &item.Status, &item.CreatedAt, &item.RespondedAt,
			&item.MemberName, &item.MemberSpecialty, &item.CompanyName, &item.FounderID,
		); err != nil {
			return nil, fmt.Errorf("scan partnership: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partnerships: %w", err)
	}
	return items, nil
}

// HasAcceptedPartner reports whether this board member currently holds an
// accepted partnership with the submission. Gates the partner-only surfaces.
func (s *PostgresStore) HasAcceptedPartner(ctx context.Context, submissionID, boardUserID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM partnerships
			WHERE submission_id=$1 AND board_user_id=$2 AND status='accepted'
		)
	`, submissionID, boardUserID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check accepted partner: %w", err)
	}
	return ok, nil
}
