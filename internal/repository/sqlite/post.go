package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

// CreatePost inserts a post, filling in ID and timestamps. A post created
// as PUBLISHED gets PublishedAt = CreatedAt.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	now := db.stamp()
	post.ID = xid.New().String()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.PublishedAt = nil
	if post.Status == model.PostPublished {
		post.PublishedAt = &now
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	tags, err := encodeTags(post.Tags)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, title, paragraph, img, tags, status, created_at, updated_at, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.AuthorID, post.Title, post.Paragraph, post.Img, tags, post.Status,
		micros(post.CreatedAt), micros(post.UpdatedAt), nullMicros(post.PublishedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}
	return nil
}

// GetPostByID returns apperror.ErrNotFound if no post has that ID.
func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	var (
		p                    model.Post
		tags                 string
		createdAt, updatedAt int64
		publishedAt          sql.NullInt64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, author_id, title, paragraph, img, tags, status, created_at, updated_at, published_at
		 FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.AuthorID, &p.Title, &p.Paragraph, &p.Img, &tags, &p.Status,
		&createdAt, &updatedAt, &publishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}

	if p.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMicros(createdAt)
	p.UpdatedAt = fromMicros(updatedAt)
	p.PublishedAt = fromNullMicros(publishedAt)
	return &p, nil
}

// UpdatePost writes title, paragraph, img, tags and status.
//
// PublishedAt follows the status: it is set to now on a DRAFT → PUBLISHED
// transition, kept when the post stays published, and cleared when the post
// goes back to DRAFT.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) error {
	now := db.stamp()
	post.UpdatedAt = now
	switch {
	case post.Status == model.PostDraft:
		post.PublishedAt = nil
	case post.PublishedAt == nil:
		post.PublishedAt = &now
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	tags, err := encodeTags(post.Tags)
	if err != nil {
		return err
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE posts SET title = ?, paragraph = ?, img = ?, tags = ?, status = ?, updated_at = ?, published_at = ?
		 WHERE id = ?`,
		post.Title, post.Paragraph, post.Img, tags, post.Status,
		micros(post.UpdatedAt), nullMicros(post.PublishedAt), post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", post.ID, err)
	}
	return requireAffected(res, "post", post.ID)
}

// DeletePost removes a post; comments, likes and saves go with it through
// ON DELETE CASCADE.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	return requireAffected(res, "post", id)
}

func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding tags: %w", err)
	}
	return string(b), nil
}

// decodeTags never returns nil, so JSON output is [] rather than null.
func decodeTags(s string) ([]string, error) {
	tags := []string{}
	if s == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, fmt.Errorf("sqlite: decoding tags %q: %w", s, err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}
