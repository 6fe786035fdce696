package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/epoch-ledger/internal/models"
)

// UserRepository handles users and their verified platform identities
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new user
func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, handle, wallet_address, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Pool().Exec(ctx, query, u.ID, u.Handle, u.WalletAddress, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID, nil when not found
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT id, handle, wallet_address, created_at
		FROM users
		WHERE id = $1
	`

	var u models.User
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&u.ID, &u.Handle, &u.WalletAddress, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// UpsertPlatformIdentity links a platform account to a user, replacing any
// prior link for the same account.
func (r *UserRepository) UpsertPlatformIdentity(ctx context.Context, pi *models.PlatformIdentity) error {
	query := `
		INSERT INTO platform_identities (platform, platform_user_id, user_id, verified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (platform, platform_user_id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			verified_at = EXCLUDED.verified_at
	`

	_, err := r.db.Pool().Exec(ctx, query, pi.Platform, pi.PlatformUserID, pi.UserID, pi.VerifiedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert platform identity: %w", err)
	}
	return nil
}

// GetUserIDsByPlatformIDs maps platform user IDs to internal user IDs in one
// query. IDs with no verified link are absent from the result.
func (r *UserRepository) GetUserIDsByPlatformIDs(ctx context.Context, platform string, platformUserIDs []string) (map[string]string, error) {
	if len(platformUserIDs) == 0 {
		return map[string]string{}, nil
	}

	query := `
		SELECT platform_user_id, user_id
		FROM platform_identities
		WHERE platform = $1 AND platform_user_id = ANY($2)
	`

	rows, err := r.db.Pool().Query(ctx, query, platform, platformUserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get platform identities: %w", err)
	}
	defer rows.Close()

	mapping := make(map[string]string, len(platformUserIDs))
	for rows.Next() {
		var platformUserID, userID string
		if err := rows.Scan(&platformUserID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan platform identity: %w", err)
		}
		mapping[platformUserID] = userID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating platform identities: %w", err)
	}
	return mapping, nil
}
