package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

// GetProfile returns the public view of a user with follow counts and
// whether viewerID follows them.
func (db *DB) GetProfile(ctx context.Context, userID, viewerID string) (*model.Profile, error) {
	var (
		p         model.Profile
		createdAt int64
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.img, u.created_at,
		       (SELECT COUNT(*) FROM follows WHERE following_id = u.id),
		       (SELECT COUNT(*) FROM follows WHERE follower_id = u.id),
		       EXISTS (SELECT 1 FROM follows WHERE follower_id = ? AND following_id = u.id)
		FROM users u
		WHERE u.id = ?`,
		viewerID, userID,
	).Scan(&p.ID, &p.Username, &p.Img, &createdAt, &p.Followers, &p.Following, &p.FollowedByMe)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, fmt.Errorf("sqlite: loading profile %s: %w", userID, err)
	}
	p.CreatedAt = fromMicros(createdAt)
	return &p, nil
}
