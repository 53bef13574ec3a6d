package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for conditions the service layer translates into API
// errors. Everything else bubbles up wrapped.
var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrPartnerExists = errors.New("partnership already exists for this pair")
	ErrPartnerLimit  = errors.New("partner limit reached")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, bio, linkedin_url, website_url, location, specialty)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role,
		user.Bio, user.LinkedIn, user.Website, user.Location, user.Specialty,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	user.Email = strings.ToLower(user.Email)
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, bio, linkedin_url, website_url, location, specialty, created_at, updated_at
		FROM users
		WHERE email = LOWER($1)
	`, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role,
		&user.Bio, &user.LinkedIn, &user.Website, &user.Location, &user.Specialty,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, bio, linkedin_url, website_url, location, specialty, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role,
		&user.Bio, &user.LinkedIn, &user.Website, &user.Location, &user.Specialty,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateUserProfile applies a partial update. COALESCE keeps columns whose
// patch field is nil.
func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID string, patch UserPatch) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = COALESCE($2, name),
			bio = COALESCE($3, bio),
			linkedin_url = COALESCE($4, linkedin_url),
			website_url = COALESCE($5, website_url),
			location = COALESCE($6, location),
			specialty = COALESCE($7, specialty),
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, email, password_hash, role, bio, linkedin_url, website_url, location, specialty, created_at, updated_at
	`, userID, patch.Name, patch.Bio, patch.LinkedIn, patch.Website, patch.Location, patch.Specialty,
	).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role,
		&user.Bio, &user.LinkedIn, &user.Website, &user.Location, &user.Specialty,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) ListUsersByRole(ctx context.Context, role string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, role, bio, linkedin_url, website_url, location, specialty, created_at, updated_at
		FROM users
		WHERE role = $1
		ORDER BY name ASC
	`, role)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(
			&user.ID, &user.Name, &user.Email, &user.Role,
			&user.Bio, &user.LinkedIn, &user.Website, &user.Location, &user.Specialty,
			&user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

// RemoveBoardMember deletes a board account. The role predicate keeps the
// admin surface from deleting founders or other admins by id guessing.
func (s *PostgresStore) RemoveBoardMember(ctx context.Context, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1 AND role = 'board'`, userID)
	if err != nil {
		return false, fmt.Errorf("remove board member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove board member rows: %w", err)
	}
	return affected > 0, nil
}
