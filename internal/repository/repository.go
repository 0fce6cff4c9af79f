// Package repository defines the storage interfaces the service layer
// depends on. The sqlite subpackage is the only implementation; service tests
// use hand-written fakes.
package repository

import (
	"context"

	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/pagination"
)

// FeedQuery selects one page of post summaries.
//
// AuthorID restricts the list to one author. IncludeDrafts is only honoured
// together with AuthorID (an author viewing their own list).
// After is the key of the last row of the previous page, nil for the first.
// Limit is the number of rows to return; callers pass page size + 1.
type FeedQuery struct {
	After         *pagination.Cursor
	Limit         int
	AuthorID      string
	IncludeDrafts bool
}

// FeedRow is one post summary plus the sort key it was ordered by. For the
// feed and author lists the key is the post's (createdAt, id); for saved
// posts it is the save time and the post id.
type FeedRow struct {
	Post model.PostSummary
	Key  pagination.Cursor
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id string) error
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetCommentByID(ctx context.Context, id string) (*model.Comment, error)
	UpdateComment(ctx context.Context, comment *model.Comment) error
	DeleteComment(ctx context.Context, id string) error
}

// FeedRepository serves every cursor-paginated post list.
type FeedRepository interface {
	ListPosts(ctx context.Context, q FeedQuery) ([]FeedRow, error)
	ListSavedPosts(ctx context.Context, userID string, after *pagination.Cursor, limit int) ([]FeedRow, error)
	// PostKey resolves a raw post id used as a cursor.
	PostKey(ctx context.Context, postID string) (pagination.Cursor, error)
	// SavedKey resolves a raw post id used as a saved-list cursor.
	SavedKey(ctx context.Context, userID, postID string) (pagination.Cursor, error)
}

// DetailRepository builds the denormalized post view. viewerID may be
// empty for anonymous viewers.
type DetailRepository interface {
	GetPostDetail(ctx context.Context, postID, viewerID string) (*model.PostDetail, error)
}

// ToggleRepository flips join rows. Each method reports whether the row
// exists after the call (true = liked/saved/followed).
type ToggleRepository interface {
	TogglePostLike(ctx context.Context, userID, postID string) (bool, error)
	ToggleCommentLike(ctx context.Context, userID, commentID string) (bool, error)
	ToggleSave(ctx context.Context, userID, postID string) (bool, error)
	ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error)
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID, viewerID string) (*model.Profile, error)
}
