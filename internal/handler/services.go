// Package handler translates HTTP requests into service calls and service
// results into JSON.
//
// Handlers depend on the small interfaces below rather than on the concrete
// *service.XxxService types. The concrete services satisfy them implicitly,
// and the handler tests substitute testify mocks.
package handler

import (
	"context"

	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/service"
)

// AuthService is the account and session API (service.AuthService).
type AuthService interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.SignupResult, error)
	Verify(ctx context.Context, token string) (*model.User, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	GitHubAuthURL(state string) (string, error)
	GitHubCallback(ctx context.Context, code string) (*service.AuthResult, error)
}

// AccountService serves /me (service.AccountService).
type AccountService interface {
	Me(ctx context.Context, userID string) (*model.User, error)
	UpdateUsername(ctx context.Context, userID, username string) (*model.User, error)
	UpdateAvatar(ctx context.Context, userID string, data []byte, contentType string) (*model.User, error)
}

// UploadService stores images (service.UploadService).
type UploadService interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// FeedService serves the paginated post lists (service.FeedService).
type FeedService interface {
	GetFeedPage(ctx context.Context, cursor string, limit int) (*model.FeedPage, error)
	ListAuthorPosts(ctx context.Context, authorID, viewerID, cursor string, limit int) (*model.FeedPage, error)
	ListSavedPosts(ctx context.Context, userID, cursor string, limit int) (*model.FeedPage, error)
}

// PostService reads and writes posts (service.PostService).
type PostService interface {
	Detail(ctx context.Context, postID, viewerID string) (*model.PostDetail, error)
	Create(ctx context.Context, authorID string, in service.PostInput) (*model.Post, error)
	Update(ctx context.Context, userID, postID string, in service.PostInput) (*model.Post, error)
	Publish(ctx context.Context, userID, postID string) (*model.Post, error)
	Unpublish(ctx context.Context, userID, postID string) (*model.Post, error)
	Delete(ctx context.Context, userID, postID string) error
}

// CommentService writes comments (service.CommentService).
type CommentService interface {
	Create(ctx context.Context, authorID, postID, text string) (*model.Comment, error)
	Reply(ctx context.Context, authorID, parentID, text string) (*model.Comment, error)
	Update(ctx context.Context, userID, commentID, text string) (*model.Comment, error)
	Delete(ctx context.Context, userID, commentID string) error
}

// SocialService runs toggles and serves profiles (service.SocialService).
type SocialService interface {
	LikePost(ctx context.Context, userID, postID string) (*model.ToggleResult, error)
	LikeComment(ctx context.Context, userID, commentID string) (*model.ToggleResult, error)
	SavePost(ctx context.Context, userID, postID string) (*model.ToggleResult, error)
	Follow(ctx context.Context, followerID, followingID string) (*model.ToggleResult, error)
	Profile(ctx context.Context, userID, viewerID string) (*model.Profile, error)
}

var (
	_ AuthService    = (*service.AuthService)(nil)
	_ AccountService = (*service.AccountService)(nil)
	_ UploadService  = (*service.UploadService)(nil)
	_ FeedService    = (*service.FeedService)(nil)
	_ PostService    = (*service.PostService)(nil)
	_ CommentService = (*service.CommentService)(nil)
	_ SocialService  = (*service.SocialService)(nil)
)
