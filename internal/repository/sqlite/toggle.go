package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/repository"
)

var _ repository.ToggleRepository = (*DB)(nil)

// toggleTable describes one join table.
//
// target must select a row only when the target may be toggled (for post
// likes and saves: the post exists and is PUBLISHED). exists, remove and
// insert take (actorID, targetID); insert also takes the creation time.
type toggleTable struct {
	resource string
	target   string
	exists   string
	remove   string
	insert   string
}

var (
	postLikeToggle = toggleTable{
		resource: "post",
		target:   `SELECT 1 FROM posts WHERE id = ? AND status = 'PUBLISHED'`,
		exists:   `SELECT 1 FROM post_likes WHERE author_id = ? AND post_id = ?`,
		remove:   `DELETE FROM post_likes WHERE author_id = ? AND post_id = ?`,
		insert:   `INSERT INTO post_likes (author_id, post_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
	}
	commentLikeToggle = toggleTable{
		resource: "comment",
		target: `SELECT 1 FROM comments c JOIN posts p ON p.id = c.post_id
		         WHERE c.id = ? AND p.status = 'PUBLISHED'`,
		exists: `SELECT 1 FROM comment_likes WHERE author_id = ? AND comment_id = ?`,
		remove: `DELETE FROM comment_likes WHERE author_id = ? AND comment_id = ?`,
		insert: `INSERT INTO comment_likes (author_id, comment_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
	}
	saveToggle = toggleTable{
		resource: "post",
		target:   `SELECT 1 FROM posts WHERE id = ? AND status = 'PUBLISHED'`,
		exists:   `SELECT 1 FROM saved_posts WHERE user_id = ? AND post_id = ?`,
		remove:   `DELETE FROM saved_posts WHERE user_id = ? AND post_id = ?`,
		insert:   `INSERT INTO saved_posts (user_id, post_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
	}
	followToggle = toggleTable{
		resource: "user",
		target:   `SELECT 1 FROM users WHERE id = ?`,
		exists:   `SELECT 1 FROM follows WHERE follower_id = ? AND following_id = ?`,
		remove:   `DELETE FROM follows WHERE follower_id = ? AND following_id = ?`,
		insert:   `INSERT INTO follows (follower_id, following_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
	}
)

func (db *DB) TogglePostLike(ctx context.Context, userID, postID string) (bool, error) {
	return db.toggle(ctx, postLikeToggle, userID, postID)
}

func (db *DB) ToggleCommentLike(ctx context.Context, userID, commentID string) (bool, error) {
	return db.toggle(ctx, commentLikeToggle, userID, commentID)
}

func (db *DB) ToggleSave(ctx context.Context, userID, postID string) (bool, error) {
	return db.toggle(ctx, saveToggle, userID, postID)
}

// ToggleFollow follows or unfollows. Following yourself is rejected by the
// CHECK constraint on follows and surfaces as a validation error.
func (db *DB) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	return db.toggle(ctx, followToggle, followerID, followingID)
}

// toggle flips the (actorID, targetID) row and reports whether it exists
// afterwards.
//
// RACES:
// Two concurrent "on" requests both see no row and both insert; the primary
// key lets exactly one insert land and ON CONFLICT DO NOTHING turns the
// other into a no-op, so both report "on" and one row exists. Two concurrent
// "off" requests both delete; the second deletes nothing. Either way the
// table never holds a duplicate and counts stay derived from it.
func (db *DB) toggle(ctx context.Context, t toggleTable, actorID, targetID string) (bool, error) {
	var on bool

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		found, err := rowExists(ctx, tx, t.target, targetID)
		if err != nil {
			return fmt.Errorf("sqlite: checking %s %s: %w", t.resource, targetID, err)
		}
		if !found {
			return apperror.NotFound(t.resource, targetID)
		}

		linked, err := rowExists(ctx, tx, t.exists, actorID, targetID)
		if err != nil {
			return fmt.Errorf("sqlite: checking %s toggle: %w", t.resource, err)
		}

		if linked {
			if _, err := tx.ExecContext(ctx, t.remove, actorID, targetID); err != nil {
				return fmt.Errorf("sqlite: removing %s toggle: %w", t.resource, err)
			}
			on = false
			return nil
		}

		if _, err := tx.ExecContext(ctx, t.insert, actorID, targetID, micros(db.stamp())); err != nil {
			if checkViolation(err) {
				return apperror.ValidationFailed("userId", "you cannot follow yourself")
			}
			return fmt.Errorf("sqlite: inserting %s toggle: %w", t.resource, err)
		}
		on = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return on, nil
}

func rowExists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func checkViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_CHECK
}
