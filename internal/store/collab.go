package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertBoardNote(ctx context.Context, note BoardNote) (BoardNote, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO board_notes (id, submission_id, author_id, body, founder_visible)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, note.ID, note.SubmissionID, note.AuthorID, note.Body, note.FounderVisible).Scan(&note.CreatedAt)
	if err != nil {
		return BoardNote{}, fmt.Errorf("insert board note: %w", err)
	}
	return note, nil
}

// ListBoardNotes returns notes oldest first, so the thread reads top to
// bottom. With founderVisibleOnly set, internal notes are filtered out at the
// query level so they never reach a founder response even by accident.
func (s *PostgresStore) ListBoardNotes(ctx context.Context, submissionID string, founderVisibleOnly bool) ([]BoardNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.submission_id, n.author_id, u.name, n.body, n.founder_visible, n.created_at
		FROM board_notes n
		JOIN users u ON u.id = n.author_id
		WHERE n.submission_id = $1
		  AND (NOT $2::boolean OR n.founder_visible)
		ORDER BY n.created_at ASC
	`, submissionID, founderVisibleOnly)
	if err != nil {
		return nil, fmt.Errorf("list board notes: %w", err)
	}
	defer rows.Close()

	items := make([]BoardNote, 0)
	for rows.Next() {
		var item BoardNote
		if err := rows.Scan(&item.ID, &item.SubmissionID, &item.AuthorID, &item.AuthorName, &item.Body, &item.FounderVisible, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan board note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board notes: %w", err)
	}
	return items, nil
}

// TagMember is idempotent. Tagging the same member twice leaves one row and
// reports success both times.
func (s *PostgresStore) TagMember(ctx context.Context, submissionID, userID, taggedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tagged_members (submission_id, user_id, tagged_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (submission_id, user_id) DO NOTHING
	`, submissionID, userID, taggedBy)
	if err != nil {
		return fmt.Errorf("tag member: %w", err)
	}
	return nil
}

func (s *PostgresStore) UntagMember(ctx context.Context, submissionID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM tagged_members WHERE submission_id=$1 AND user_id=$2
	`, submissionID, userID)
	if err != nil {
		return false, fmt.Errorf("untag member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("untag member rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListTaggedMembers(ctx context.Context, submissionID string) ([]TaggedMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.submission_id, t.user_id, u.name, u.specialty, t.tagged_by, t.created_at
		FROM tagged_members t
		JOIN users u ON u.id = t.user_id
		WHERE t.submission_id = $1
		ORDER BY t.created_at ASC
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list tagged members: %w", err)
	}
	defer rows.Close()

	items := make([]TaggedMember, 0)
	for rows.Next() {
		var item TaggedMember
		if err := rows.Scan(&item.SubmissionID, &item.UserID, &item.UserName, &item.Specialty, &item.TaggedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tagged member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tagged members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertChatMessage(ctx context.Context, msg ChatMessage) (ChatMessage, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (id, submission_id, author_id, body, is_system)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, msg.ID, msg.SubmissionID, msg.AuthorID, msg.Body, msg.System).Scan(&msg.CreatedAt)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListChatMessages(ctx context.Context, submissionID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.submission_id, m.author_id, u.name, u.role, m.body, m.is_system, m.created_at
		FROM chat_messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.submission_id = $1
		ORDER BY m.created_at ASC
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	items := make([]ChatMessage, 0)
	for rows.Next() {
		var item ChatMessage
		if err := rows.Scan(&item.ID, &item.SubmissionID, &item.AuthorID, &item.AuthorName, &item.AuthorRole, &item.Body, &item.System, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertMeetingRequest(ctx context.Context, meeting MeetingRequest) (MeetingRequest, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO meeting_requests (id, submission_id, requested_by, proposed_time, agenda)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, meeting.ID, meeting.SubmissionID, meeting.RequestedBy, meeting.ProposedTime, meeting.Agenda).Scan(&meeting.CreatedAt)
	if err != nil {
		return MeetingRequest{}, fmt.Errorf("insert meeting request: %w", err)
	}
	return meeting, nil
}

func (s *PostgresStore) ListSubmissionMeetings(ctx context.Context, submissionID string) ([]MeetingRequest, error) {
	return s.listMeetings(ctx, `
		SELECT m.id, m.submission_id, m.requested_by, u.name, m.proposed_time, m.agenda, m.created_at, s.company_name
		FROM meeting_requests m
		JOIN users u ON u.id = m.requested_by
		JOIN submissions s ON s.id = m.submission_id
		WHERE m.submission_id = $1
		ORDER BY m.created_at DESC
	`, submissionID)
}

func (s *PostgresStore) ListFounderMeetings(ctx context.Context, founderID string) ([]MeetingRequest, error) {
	return s.listMeetings(ctx, `
		SELECT m.id, m.submission_id, m.requested_by, u.name, m.proposed_time, m.agenda, m.created_at, s.company_name
		FROM meeting_requests m
		JOIN users u ON u.id = m.requested_by
		JOIN submissions s ON s.id = m.submission_id
		WHERE s.founder_id = $1
		ORDER BY m.created_at DESC
	`, founderID)
}

func (s *PostgresStore) ListRequesterMeetings(ctx context.Context, userID string) ([]MeetingRequest, error) {
	return s.listMeetings(ctx, `
		SELECT m.id, m.submission_id, m.requested_by, u.name, m.proposed_time, m.agenda, m.created_at, s.company_name
		FROM meeting_requests m
		JOIN users u ON u.id = m.requested_by
		JOIN submissions s ON s.id = m.submission_id
		WHERE m.requested_by = $1
		ORDER BY m.created_at DESC
	`, userID)
}

func (s *PostgresStore) listMeetings(ctx context.Context, query string, args ...any) ([]MeetingRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	items := make([]MeetingRequest, 0)
	for rows.Next() {
		var item MeetingRequest
		if err := rows.Scan(&item.ID, &item.SubmissionID, &item.RequestedBy, &item.RequesterName, &item.ProposedTime, &item.Agenda, &item.CreatedAt, &item.CompanyName); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meetings: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertPartnershipMessage(ctx context.Context, msg PartnershipMessage) (PartnershipMessage, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO partnership_messages (id, submission_id, author_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, msg.ID, msg.SubmissionID, msg.AuthorID, msg.Body).Scan(&msg.CreatedAt)
	if err != nil {
		return PartnershipMessage{}, fmt.Errorf("insert partnership message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListPartnershipMessages(ctx context.Context, submissionID string) ([]PartnershipMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.submission_id, m.author_id, u.name, m.body, m.created_at
		FROM partnership_messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.submission_id = $1
		ORDER BY m.created_at ASC
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list partnership messages: %w", err)
	}
	defer rows.Close()

	items := make([]PartnershipMessage, 0)
	for rows.Next() {
		var item PartnershipMessage
		if err := rows.Scan(&item.ID, &item.SubmissionID, &item.AuthorID, &item.AuthorName, &item.Body, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan partnership message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partnership messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertSharedLink(ctx context.Context, link SharedLink) (SharedLink, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO shared_links (id, submission_id, added_by, url, title)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, link.ID, link.SubmissionID, link.AddedBy, link.URL, link.Title).Scan(&link.CreatedAt)
	if err != nil {
		return SharedLink{}, fmt.Errorf("insert shared link: %w", err)
	}
	return link, nil
}

func (s *PostgresStore) ListSharedLinks(ctx context.Context, submissionID string) ([]SharedLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.submission_id, l.added_by, u.name, l.url, l.title, l.created_at
		FROM shared_links l
		JOIN users u ON u.id = l.added_by
		WHERE l.submission_id = $1
		ORDER BY l.created_at DESC
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list shared links: %w", err)
	}
	defer rows.Close()

	items := make([]SharedLink, 0)
	for rows.Next() {
		var item SharedLink
		if err := rows.Scan(&item.ID, &item.SubmissionID, &item.AddedBy, &item.AddedByName, &item.URL, &item.Title, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan shared link: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shared links: %w", err)
	}
	return items, nil
}
