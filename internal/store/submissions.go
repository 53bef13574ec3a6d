package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const submissionColumns = `
	s.id, s.founder_id, s.company_name, s.one_liner, s.description,
	s.industry, s.stage, s.website_url, s.deck_url, s.deck_key,
	s.looking_for, s.status, s.rating, s.submitted_at, s.updated_at,
	u.name
`

func scanSubmission(row interface{ Scan(...any) error }) (Submission, error) {
	var item Submission
	var lookingFor []byte
	if err := row.Scan(
		&item.ID, &item.FounderID, &item.CompanyName, &item.OneLiner, &item.Description,
		&item.Industry, &item.Stage, &item.Website, &item.DeckURL, &item.DeckKey,
		&lookingFor, &item.Status, &item.Rating, &item.SubmittedAt, &item.UpdatedAt,
		&item.FounderName,
	); err != nil {
		return Submission{}, err
	}
	item.LookingFor = []string{}
	_ = json.Unmarshal(lookingFor, &item.LookingFor)
	return item, nil
}

func (s *PostgresStore) InsertSubmission(ctx context.Context, item Submission) (Submission, error) {
	lookingFor := item.LookingFor
	if lookingFor == nil {
		lookingFor = []string{}
	}
	encoded, err := json.Marshal(lookingFor)
	if err != nil {
		return Submission{}, fmt.Errorf("marshal looking_for: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO submissions (id, founder_id, company_name, one_liner, description, industry, stage, website_url, deck_url, looking_for, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, 'new')
		RETURNING submitted_at, updated_at
	`, item.ID, item.FounderID, item.CompanyName, item.OneLiner, item.Description,
		item.Industry, item.Stage, item.Website, item.DeckURL, string(encoded),
	).Scan(&item.SubmittedAt, &item.UpdatedAt)
	if err != nil {
		return Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	item.Status = "new"
	item.LookingFor = lookingFor
	return item, nil
}

func (s *PostgresStore) GetSubmission(ctx context.Context, submissionID string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		JOIN users u ON u.id = s.founder_id
		WHERE s.id = $1
	`, submissionID)
	return scanSubmission(row)
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		JOIN users u ON u.id = s.founder_id
		WHERE ($1='' OR s.founder_id=$1)
		  AND ($2='' OR s.status=$2)
		  AND ($3='' OR s.industry=$3)
		  AND ($4='' OR s.company_name ILIKE '%' || $4 || '%' OR s.one_liner ILIKE '%' || $4 || '%' OR s.description ILIKE '%' || $4 || '%')
		ORDER BY s.submitted_at DESC
	`, filter.FounderID, filter.Status, filter.Industry, filter.Query)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	items := make([]Submission, 0)
	for rows.Next() {
		item, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return items, nil
}

// UpdateSubmissionContent rewrites the founder-editable pitch fields. Status
// and rating are reviewer state and move through their own methods.
func (s *PostgresStore) UpdateSubmissionContent(ctx context.Context, item Submission) (Submission, error) {
	lookingFor := item.LookingFor
	if lookingFor == nil {
		lookingFor = []string{}
	}
	encoded, err := json.Marshal(lookingFor)
	if err != nil {
		return Submission{}, fmt.Errorf("marshal looking_for: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET company_name=$2, one_liner=$3, description=$4, industry=$5, stage=$6,
			website_url=$7, deck_url=$8, looking_for=$9::jsonb, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.CompanyName, item.OneLiner, item.Description, item.Industry,
		item.Stage, item.Website, item.DeckURL, string(encoded))
	if err != nil {
		return Submission{}, fmt.Errorf("update submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Submission{}, fmt.Errorf("update submission rows: %w", err)
	}
	if affected == 0 {
		return Submission{}, sql.ErrNoRows
	}
	return s.GetSubmission(ctx, item.ID)
}

func (s *PostgresStore) UpdateSubmissionStatus(ctx context.Context, submissionID, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET status=$2, updated_at=NOW() WHERE id=$1
	`, submissionID, status)
	if err != nil {
		return false, fmt.Errorf("update submission status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update submission status rows: %w", err)
	}
	return affected > 0, nil
}

// UpdateSubmissionRating overwrites any prior rating. One value per
// submission, last write wins.
func (s *PostgresStore) UpdateSubmissionRating(ctx context.Context, submissionID string, rating int) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET rating=$2, updated_at=NOW() WHERE id=$1
	`, submissionID, rating)
	if err != nil {
		return false, fmt.Errorf("update submission rating: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update submission rating rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetSubmissionDeck(ctx context.Context, submissionID, deckKey, deckURL string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET deck_key=$2, deck_url=$3, updated_at=NOW() WHERE id=$1
	`, submissionID, deckKey, deckURL)
	if err != nil {
		return false, fmt.Errorf("set submission deck: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set submission deck rows: %w", err)
	}
	return affected > 0, nil
}

// ListSubmissionsByIDs resolves a search hit list, preserving the given
// order. Missing ids are skipped silently.
func (s *PostgresStore) ListSubmissionsByIDs(ctx context.Context, ids []string) ([]Submission, error) {
	if len(ids) == 0 {
		return []Submission{}, nil
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal id list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		JOIN users u ON u.id = s.founder_id
		WHERE s.id IN (SELECT value FROM jsonb_array_elements_text($1::jsonb))
	`, string(encoded))
	if err != nil {
		return nil, fmt.Errorf("list submissions by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Submission, len(ids))
	for rows.Next() {
		item, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		byID[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	items := make([]Submission, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}
