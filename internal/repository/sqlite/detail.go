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

var _ repository.DetailRepository = (*DB)(nil)

// GetPostDetail loads a post with its author, like count, viewer flags and
// the two-level comment tree.
//
// TWO QUERIES, ONE SNAPSHOT:
// The post row (with counts and flags as subqueries) and the flat list of
// its comments are read inside one transaction, so a like or comment landing
// between the two reads cannot make the counts disagree with the tree.
//
// The tree is assembled in memory: the comment query returns every comment
// of the post ordered by (created_at, id), top-level comments become
// threads, and each reply is appended to its parent's thread. Replies to
// replies are not returned; the write path never creates them.
//
// An empty viewerID matches no rows, so anonymous viewers get every flag
// false without a separate code path.
func (db *DB) GetPostDetail(ctx context.Context, postID, viewerID string) (*model.PostDetail, error) {
	var d *model.PostDetail

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if d, err = loadPost(ctx, tx, postID, viewerID); err != nil {
			return err
		}
		d.Comments, err = loadComments(ctx, tx, postID, viewerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func loadPost(ctx context.Context, tx *sql.Tx, postID, viewerID string) (*model.PostDetail, error) {
	var (
		d                    model.PostDetail
		tags                 string
		createdAt, updatedAt int64
		publishedAt          sql.NullInt64
	)

	err := tx.QueryRowContext(ctx, `
		SELECT p.id, p.title, p.paragraph, p.img, p.tags, p.status,
		       p.created_at, p.updated_at, p.published_at,
		       u.id, u.username, u.email, u.img,
		       (SELECT COUNT(*) FROM post_likes WHERE post_id = p.id),
		       EXISTS (SELECT 1 FROM post_likes WHERE post_id = p.id AND author_id = ?),
		       EXISTS (SELECT 1 FROM saved_posts WHERE post_id = p.id AND user_id = ?),
		       EXISTS (SELECT 1 FROM follows WHERE follower_id = ? AND following_id = p.author_id)
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = ?`,
		viewerID, viewerID, viewerID, postID,
	).Scan(
		&d.ID, &d.Title, &d.Paragraph, &d.Img, &tags, &d.Status,
		&createdAt, &updatedAt, &publishedAt,
		&d.Author.ID, &d.Author.Username, &d.Author.Email, &d.Author.Img,
		&d.Likes, &d.LikedByMe, &d.SavedByMe, &d.FollowedByMe,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", postID)
		}
		return nil, fmt.Errorf("sqlite: loading post detail %s: %w", postID, err)
	}

	if d.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	d.CreatedAt = fromMicros(createdAt)
	d.UpdatedAt = fromMicros(updatedAt)
	d.PublishedAt = fromNullMicros(publishedAt)
	return &d, nil
}

func loadComments(ctx context.Context, tx *sql.Tx, postID, viewerID string) ([]model.CommentThread, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT c.id, c.parent_id, c.text, c.created_at,
		       u.id, u.username, u.email, u.img,
		       (SELECT COUNT(*) FROM comment_likes WHERE comment_id = c.id),
		       EXISTS (SELECT 1 FROM comment_likes WHERE comment_id = c.id AND author_id = ?)
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = ?
		ORDER BY c.created_at, c.id`,
		viewerID, postID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading comments of %s: %w", postID, err)
	}
	defer rows.Close()

	threads := []model.CommentThread{}
	replies := map[string][]model.CommentView{}

	for rows.Next() {
		var (
			v         model.CommentView
			parentID  sql.NullString
			createdAt int64
		)
		if err := rows.Scan(
			&v.ID, &parentID, &v.Text, &createdAt,
			&v.Author.ID, &v.Author.Username, &v.Author.Email, &v.Author.Img,
			&v.Likes, &v.LikedByMe,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment: %w", err)
		}
		v.CreatedAt = fromMicros(createdAt)

		if parentID.Valid {
			replies[parentID.String] = append(replies[parentID.String], v)
			continue
		}
		threads = append(threads, model.CommentThread{CommentView: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	for i := range threads {
		threads[i].Replies = replies[threads[i].ID]
		if threads[i].Replies == nil {
			threads[i].Replies = []model.CommentView{}
		}
	}
	return threads, nil
}
