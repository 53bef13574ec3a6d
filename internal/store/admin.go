package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *PostgresStore) UpsertSetting(ctx context.Context, setting Setting) (Setting, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO platform_settings (key, value, updated_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_by=EXCLUDED.updated_by, updated_at=NOW()
		RETURNING updated_at
	`, setting.Key, setting.Value, setting.UpdatedBy).Scan(&setting.UpdatedAt)
	if err != nil {
		return Setting{}, fmt.Errorf("upsert setting: %w", err)
	}
	return setting, nil
}

func (s *PostgresStore) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, updated_by, updated_at FROM platform_settings ORDER BY key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	items := make([]Setting, 0)
	for rows.Next() {
		var item Setting
		if err := rows.Scan(&item.Key, &item.Value, &item.UpdatedBy, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertInvitation(ctx context.Context, inv Invitation) (Invitation, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO invitations (id, email, role, token, invited_by, expires_at)
		VALUES ($1, LOWER($2), $3, $4, $5, $6)
		RETURNING created_at
	`, inv.ID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.ExpiresAt).Scan(&inv.CreatedAt)
	if err != nil {
		return Invitation{}, fmt.Errorf("insert invitation: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) ListInvitations(ctx context.Context) ([]Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, role, token, invited_by, created_at, expires_at, used_at
		FROM invitations
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	items := make([]Invitation, 0)
	for rows.Next() {
		var item Invitation
		if err := rows.Scan(&item.ID, &item.Email, &item.Role, &item.Token, &item.InvitedBy, &item.CreatedAt, &item.ExpiresAt, &item.UsedAt); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return items, nil
}

// MarkInvitationUsed consumes an unexpired, unused invitation token.
func (s *PostgresStore) MarkInvitationUsed(ctx context.Context, token string) (Invitation, bool, error) {
	var inv Invitation
	err := s.db.QueryRowContext(ctx, `
		UPDATE invitations
		SET used_at=NOW()
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING id, email, role, token, invited_by, created_at, expires_at, used_at
	`, token).Scan(&inv.ID, &inv.Email, &inv.Role, &inv.Token, &inv.InvitedBy, &inv.CreatedAt, &inv.ExpiresAt, &inv.UsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Invitation{}, false, nil
	}
	if err != nil {
		return Invitation{}, false, fmt.Errorf("mark invitation used: %w", err)
	}
	return inv, true, nil
}
