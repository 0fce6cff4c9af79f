package model

import "time"

// PostStatus is either DRAFT or PUBLISHED.
type PostStatus string

const (
	PostDraft     PostStatus = "DRAFT"
	PostPublished PostStatus = "PUBLISHED"
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	return s == PostDraft || s == PostPublished
}

// Post is a blog post as stored.
//
// PublishedAt is non-nil exactly when Status is PUBLISHED; the repository
// sets and clears it together with the status.
type Post struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"authorId"`
	Title       string     `json:"title"`
	Paragraph   string     `json:"paragraph"`
	Img         string     `json:"img"`
	Tags        []string   `json:"tags"`
	Status      PostStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt"`
}

// Author is the denormalized author embedded in feed entries.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Img      string `json:"img"`
}

// PostSummary is one entry of a feed page.
type PostSummary struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Paragraph    string     `json:"paragraph"`
	Img          string     `json:"img"`
	CreatedAt    time.Time  `json:"createdAt"`
	PublishedAt  *time.Time `json:"publishedAt"`
	Tags         []string   `json:"tags"`
	Author       Author     `json:"author"`
	CommentCount int        `json:"commentCount"`
	LikeCount    int        `json:"likeCount"`
}

// FeedPage is the result of one cursor-paginated read.
// NextCursor is nil (JSON null) on the last page.
type FeedPage struct {
	Posts      []PostSummary `json:"posts"`
	NextCursor *string       `json:"nextCursor"`
	HasMore    bool          `json:"hasMore"`
}

// PostDetail is the fully denormalized view of a single post.
// Comments is never nil.
type PostDetail struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Paragraph    string          `json:"paragraph"`
	HTML         string          `json:"html"`
	Img          string          `json:"img"`
	Tags         []string        `json:"tags"`
	Status       PostStatus      `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	PublishedAt  *time.Time      `json:"publishedAt"`
	Author       CommentAuthor   `json:"author"`
	Likes        int             `json:"likes"`
	LikedByMe    bool            `json:"likedByMe"`
	SavedByMe    bool            `json:"savedByMe"`
	FollowedByMe bool            `json:"followedByMe"`
	Comments     []CommentThread `json:"comments"`
}
