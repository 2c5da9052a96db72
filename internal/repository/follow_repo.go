package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"meetup-sync/internal/domain"
)

type FollowRepository interface {
	Create(ctx context.Context, follow domain.Follow) (bool, error)
	Delete(ctx context.Context, followerID, followeeID string) error
	ListFollowers(ctx context.Context, userID string) ([]domain.PublicUser, error)
	ListFollowing(ctx context.Context, userID string) ([]domain.PublicUser, error)
	DeleteAllFor(ctx context.Context, userID string) error
}

type PgFollowRepository struct {
	pool *pgxpool.Pool
}

func NewPgFollowRepository(pool *pgxpool.Pool) *PgFollowRepository {
	return &PgFollowRepository{pool: pool}
}

// Create inserta la relacion. Devuelve false si ya existia.
func (r *PgFollowRepository) Create(ctx context.Context, follow domain.Follow) (bool, error) {
	const query = `
		INSERT INTO follows (follower_id, followee_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (follower_id, followee_id) DO NOTHING
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, follow.FollowerID, follow.FolloweeID, follow.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgFollowRepository) Delete(ctx context.Context, followerID, followeeID string) error {
	const query = `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`
	_, err := conn(ctx, r.pool).Exec(ctx, query, followerID, followeeID)
	return err
}

func (r *PgFollowRepository) ListFollowers(ctx context.Context, userID string) ([]domain.PublicUser, error) {
	const query = `
		SELECT u.id, u.username, u.display_name
		FROM follows f JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = $1
		ORDER BY f.created_at
	`
	return r.listUsers(ctx, query, userID)
}

func (r *PgFollowRepository) ListFollowing(ctx context.Context, userID string) ([]domain.PublicUser, error) {
	const query = `
		SELECT u.id, u.username, u.display_name
		FROM follows f JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at
	`
	return r.listUsers(ctx, query, userID)
}

func (r *PgFollowRepository) DeleteAllFor(ctx context.Context, userID string) error {
	const query = `DELETE FROM follows WHERE follower_id = $1 OR followee_id = $1`
	_, err := conn(ctx, r.pool).Exec(ctx, query, userID)
	return err
}

func (r *PgFollowRepository) listUsers(ctx context.Context, query, userID string) ([]domain.PublicUser, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.PublicUser{}
	for rows.Next() {
		var u domain.PublicUser
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
