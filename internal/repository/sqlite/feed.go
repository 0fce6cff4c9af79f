package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/pagination"
	"github.com/sakif/postvault/internal/repository"
)

var _ repository.FeedRepository = (*DB)(nil)

// summarySelect is shared by the feed, author and saved lists. Comment and
// like counts are correlated subqueries: each list page is at most 51 rows,
// and both subqueries are served by the post_id indexes.
const summarySelect = `
	SELECT p.id, p.title, p.paragraph, p.img, p.created_at, p.published_at, p.tags,
	       u.id, u.username, u.img,
	       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
	       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id)`

// ListPosts returns up to q.Limit summaries ordered by (created_at DESC,
// id DESC), starting strictly after q.After.
func (db *DB) ListPosts(ctx context.Context, q repository.FeedQuery) ([]repository.FeedRow, error) {
	var (
		where []string
		args  []any
	)

	if q.AuthorID != "" {
		where = append(where, "p.author_id = ?")
		args = append(args, q.AuthorID)
	}
	if q.AuthorID == "" || !q.IncludeDrafts {
		where = append(where, "p.status = 'PUBLISHED'")
	}
	if q.After != nil {
		at := micros(q.After.CreatedAt)
		where = append(where, "(p.created_at < ? OR (p.created_at = ? AND p.id < ?))")
		args = append(args, at, at, q.After.ID)
	}
	args = append(args, q.Limit)

	query := summarySelect + `
	FROM posts p
	JOIN users u ON u.id = p.author_id
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY p.created_at DESC, p.id DESC
	LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	var out []repository.FeedRow
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post summary: %w", err)
		}
		r.Key = pagination.Cursor{CreatedAt: r.Post.CreatedAt, ID: r.Post.ID}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return out, nil
}

// ListSavedPosts returns the published posts userID saved, newest save
// first. The key of each row is (saved_at, post id).
func (db *DB) ListSavedPosts(ctx context.Context, userID string, after *pagination.Cursor, limit int) ([]repository.FeedRow, error) {
	args := []any{userID}
	keyset := ""
	if after != nil {
		at := micros(after.CreatedAt)
		keyset = "AND (s.created_at < ? OR (s.created_at = ? AND s.post_id < ?))"
		args = append(args, at, at, after.ID)
	}
	args = append(args, limit)

	query := summarySelect + `, s.created_at
	FROM saved_posts s
	JOIN posts p ON p.id = s.post_id
	JOIN users u ON u.id = p.author_id
	WHERE s.user_id = ? AND p.status = 'PUBLISHED' ` + keyset + `
	ORDER BY s.created_at DESC, s.post_id DESC
	LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing saved posts of %s: %w", userID, err)
	}
	defer rows.Close()

	var out []repository.FeedRow
	for rows.Next() {
		var savedAt int64
		r, err := scanSummary(rows, &savedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning saved post: %w", err)
		}
		r.Key = pagination.Cursor{CreatedAt: fromMicros(savedAt), ID: r.Post.ID}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating saved posts: %w", err)
	}
	return out, nil
}

// PostKey returns the feed sort key of a post.
func (db *DB) PostKey(ctx context.Context, postID string) (pagination.Cursor, error) {
	var at int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT created_at FROM posts WHERE id = ?`, postID,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pagination.Cursor{}, apperror.NotFound("post", postID)
		}
		return pagination.Cursor{}, fmt.Errorf("sqlite: resolving cursor %s: %w", postID, err)
	}
	return pagination.Cursor{CreatedAt: fromMicros(at), ID: postID}, nil
}

// SavedKey returns the saved-list sort key of a post saved by userID.
func (db *DB) SavedKey(ctx context.Context, userID, postID string) (pagination.Cursor, error) {
	var at int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT created_at FROM saved_posts WHERE user_id = ? AND post_id = ?`, userID, postID,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pagination.Cursor{}, apperror.NotFound("saved post", postID)
		}
		return pagination.Cursor{}, fmt.Errorf("sqlite: resolving saved cursor %s: %w", postID, err)
	}
	return pagination.Cursor{CreatedAt: fromMicros(at), ID: postID}, nil
}

// scanSummary reads the summarySelect columns, followed by extra.
func scanSummary(rows *sql.Rows, extra ...any) (*repository.FeedRow, error) {
	var (
		r           repository.FeedRow
		createdAt   int64
		publishedAt sql.NullInt64
		tags        string
	)
	p := &r.Post
	dest := []any{
		&p.ID, &p.Title, &p.Paragraph, &p.Img, &createdAt, &publishedAt, &tags,
		&p.Author.ID, &p.Author.Username, &p.Author.Img,
		&p.CommentCount, &p.LikeCount,
	}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if p.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMicros(createdAt)
	p.PublishedAt = fromNullMicros(publishedAt)
	return &r, nil
}
