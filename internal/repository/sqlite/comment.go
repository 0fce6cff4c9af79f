package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/repository"
)

var _ repository.CommentRepository = (*DB)(nil)

func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	now := db.stamp()
	c.ID = xid.New().String()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, author_id, post_id, parent_id, text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AuthorID, c.PostID, c.ParentID, c.Text, micros(now), micros(now),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment on post %s: %w", c.PostID, err)
	}
	return nil
}

func (db *DB) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	var (
		c                    model.Comment
		parentID             sql.NullString
		createdAt, updatedAt int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, author_id, post_id, parent_id, text, created_at, updated_at
		 FROM comments WHERE id = ?`, id,
	).Scan(&c.ID, &c.AuthorID, &c.PostID, &parentID, &c.Text, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}

	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	c.CreatedAt = fromMicros(createdAt)
	c.UpdatedAt = fromMicros(updatedAt)
	return &c, nil
}

// UpdateComment replaces the text. Author and position never change.
func (db *DB) UpdateComment(ctx context.Context, c *model.Comment) error {
	c.UpdatedAt = db.stamp()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE comments SET text = ?, updated_at = ? WHERE id = ?`,
		c.Text, micros(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating comment %s: %w", c.ID, err)
	}
	return requireAffected(res, "comment", c.ID)
}

// DeleteComment removes a comment with its replies and likes (cascade).
func (db *DB) DeleteComment(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}
	return requireAffected(res, "comment", id)
}
