package model

import "time"

// Comment is a comment row. ParentID is nil for top-level comments.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	PostID    string    `json:"postId"`
	ParentID  *string   `json:"parentId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CommentAuthor is the author block used in post detail views.
type CommentAuthor struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Img      string `json:"img"`
	ID       string `json:"id"`
}

// CommentView is a comment inside a post detail, with its like count and
// the viewer-relative likedByMe flag.
type CommentView struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"createdAt"`
	Author    CommentAuthor `json:"author"`
	Likes     int           `json:"likes"`
	LikedByMe bool          `json:"likedByMe"`
}

// CommentThread is a top-level comment and its direct replies.
// Replies is never nil; replies do not nest further.
type CommentThread struct {
	CommentView
	Replies []CommentView `json:"replies"`
}

// ToggleResult reports which state a toggle mutation left behind, e.g.
// "liked" or "unliked".
type ToggleResult struct {
	Action string `json:"action"`
}

// Toggle actions.
const (
	ActionLiked      = "liked"
	ActionUnliked    = "unliked"
	ActionSaved      = "saved"
	ActionUnsaved    = "unsaved"
	ActionFollowed   = "followed"
	ActionUnfollowed = "unfollowed"
)
