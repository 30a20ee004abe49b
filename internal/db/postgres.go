package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oscontrib/tracker/internal/models"
)

const userColumns = `id, username, email, password_hash, github_username, github_connected_at, profile_url, created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "LOWER(email) = LOWER($1)", email)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = $1", username)
}

func (s *PostgresStore) GetUserByProfileURL(ctx context.Context, profileURL string) (*models.User, error) {
	return s.getUser(ctx, "profile_url = $1", profileURL)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s", userColumns, where)
	row := s.db.QueryRowContext(ctx, query, arg)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var githubUsername, profileURL sql.NullString
	var connectedAt sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&githubUsername,
		&connectedAt,
		&profileURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if githubUsername.Valid {
		u.GitHubUsername = githubUsername.String
	}
	if profileURL.Valid {
		u.ProfileURL = profileURL.String
	}
	if connectedAt.Valid {
		t := connectedAt.Time
		u.GitHubConnectedAt = &t
	}

	return &u, nil
}

// ConnectGitHub records the one-time GitHub link for a user.
func (s *PostgresStore) ConnectGitHub(ctx context.Context, userID int64, githubUsername, profileURL string) error {
	query := `
		UPDATE users
		SET github_username = $2, profile_url = $3, github_connected_at = NOW(), updated_at = NOW()
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, userID, githubUsername, profileURL)
	if err != nil {
		return fmt.Errorf("failed to connect github account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListConnectedUsers returns all users with a linked GitHub account.
func (s *PostgresStore) ListConnectedUsers(ctx context.Context) ([]*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE github_username IS NOT NULL ORDER BY id", userColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list connected users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// SaveContributions replaces the stored contribution summary for a user. The
// per-repository rows keep the summary's ranked order in the position column.
func (s *PostgresStore) SaveContributions(ctx context.Context, userID int64, summary *models.ContributionSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contribution_summaries (user_id, total_points, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			total_points = EXCLUDED.total_points,
			last_updated = EXCLUDED.last_updated`,
		userID, summary.TotalPoints, summary.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save contribution summary: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM contribution_repositories WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to clear contribution repositories: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO contribution_repositories (user_id, position, name, owner, url, contributions, points, last_contribution)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, repo := range summary.Repositories {
		_, err := stmt.ExecContext(ctx,
			userID,
			i,
			repo.Name,
			repo.Owner,
			repo.URL,
			repo.Contributions,
			repo.Points,
			repo.LastContribution)
		if err != nil {
			return fmt.Errorf("failed to save contribution repository %s/%s: %w", repo.Owner, repo.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetContributions loads the stored contribution summary for a user. Returns
// nil when no summary has been stored yet.
func (s *PostgresStore) GetContributions(ctx context.Context, userID int64) (*models.ContributionSummary, error) {
	summary := &models.ContributionSummary{Repositories: []models.RepoContribution{}}

	err := s.db.QueryRowContext(ctx,
		"SELECT total_points, last_updated FROM contribution_summaries WHERE user_id = $1", userID).
		Scan(&summary.TotalPoints, &summary.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contribution summary: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, owner, url, contributions, points, last_contribution
		FROM contribution_repositories
		WHERE user_id = $1
		ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get contribution repositories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var repo models.RepoContribution
		var lastContribution sql.NullTime
		if err := rows.Scan(&repo.Name, &repo.Owner, &repo.URL, &repo.Contributions, &repo.Points, &lastContribution); err != nil {
			return nil, fmt.Errorf("failed to scan contribution repository: %w", err)
		}
		if lastContribution.Valid {
			t := lastContribution.Time
			repo.LastContribution = &t
		}
		summary.Repositories = append(summary.Repositories, repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contribution repositories: %w", err)
	}

	return summary, nil
}
