package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/sakif/postvault/internal/auth"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/service"
)

// Mocks for the handler's service interfaces. Each method records its call
// and returns whatever the test configured with On(...).Return(...).

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// asUser marks r as authenticated, the way RequireAuth/OptionalAuth would.
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), userID))
}

// ---- auth ----

type MockAuthService struct{ mock.Mock }

func (m *MockAuthService) Signup(ctx context.Context, in service.SignupInput) (*service.SignupResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*service.SignupResult)
	return res, args.Error(1)
}

func (m *MockAuthService) Verify(ctx context.Context, token string) (*model.User, error) {
	args := m.Called(ctx, token)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*service.AuthResult)
	return res, args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error) {
	args := m.Called(ctx, refreshToken)
	res, _ := args.Get(0).(*service.AuthResult)
	return res, args.Error(1)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

func (m *MockAuthService) GitHubAuthURL(state string) (string, error) {
	args := m.Called(state)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) GitHubCallback(ctx context.Context, code string) (*service.AuthResult, error) {
	args := m.Called(ctx, code)
	res, _ := args.Get(0).(*service.AuthResult)
	return res, args.Error(1)
}

// ---- account and uploads ----

type MockAccountService struct{ mock.Mock }

func (m *MockAccountService) Me(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockAccountService) UpdateUsername(ctx context.Context, userID, username string) (*model.User, error) {
	args := m.Called(ctx, userID, username)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockAccountService) UpdateAvatar(ctx context.Context, userID string, data []byte, contentType string) (*model.User, error) {
	args := m.Called(ctx, userID, data, contentType)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

type MockUploadService struct{ mock.Mock }

func (m *MockUploadService) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, data, contentType)
	return args.String(0), args.Error(1)
}

// ---- feed ----

type MockFeedService struct{ mock.Mock }

func (m *MockFeedService) GetFeedPage(ctx context.Context, cursor string, limit int) (*model.FeedPage, error) {
	args := m.Called(ctx, cursor, limit)
	p, _ := args.Get(0).(*model.FeedPage)
	return p, args.Error(1)
}

func (m *MockFeedService) ListAuthorPosts(ctx context.Context, authorID, viewerID, cursor string, limit int) (*model.FeedPage, error) {
	args := m.Called(ctx, authorID, viewerID, cursor, limit)
	p, _ := args.Get(0).(*model.FeedPage)
	return p, args.Error(1)
}

func (m *MockFeedService) ListSavedPosts(ctx context.Context, userID, cursor string, limit int) (*model.FeedPage, error) {
	args := m.Called(ctx, userID, cursor, limit)
	p, _ := args.Get(0).(*model.FeedPage)
	return p, args.Error(1)
}

// ---- posts ----

type MockPostService struct{ mock.Mock }

func (m *MockPostService) Detail(ctx context.Context, postID, viewerID string) (*model.PostDetail, error) {
	args := m.Called(ctx, postID, viewerID)
	d, _ := args.Get(0).(*model.PostDetail)
	return d, args.Error(1)
}

func (m *MockPostService) Create(ctx context.Context, authorID string, in service.PostInput) (*model.Post, error) {
	args := m.Called(ctx, authorID, in)
	p, _ := args.Get(0).(*model.Post)
	return p, args.Error(1)
}

func (m *MockPostService) Update(ctx context.Context, userID, postID string, in service.PostInput) (*model.Post, error) {
	args := m.Called(ctx, userID, postID, in)
	p, _ := args.Get(0).(*model.Post)
	return p, args.Error(1)
}

func (m *MockPostService) Publish(ctx context.Context, userID, postID string) (*model.Post, error) {
	args := m.Called(ctx, userID, postID)
	p, _ := args.Get(0).(*model.Post)
	return p, args.Error(1)
}

func (m *MockPostService) Unpublish(ctx context.Context, userID, postID string) (*model.Post, error) {
	args := m.Called(ctx, userID, postID)
	p, _ := args.Get(0).(*model.Post)
	return p, args.Error(1)
}

func (m *MockPostService) Delete(ctx context.Context, userID, postID string) error {
	return m.Called(ctx, userID, postID).Error(0)
}

// ---- comments ----

type MockCommentService struct{ mock.Mock }

func (m *MockCommentService) Create(ctx context.Context, authorID, postID, text string) (*model.Comment, error) {
	args := m.Called(ctx, authorID, postID, text)
	c, _ := args.Get(0).(*model.Comment)
	return c, args.Error(1)
}

func (m *MockCommentService) Reply(ctx context.Context, authorID, parentID, text string) (*model.Comment, error) {
	args := m.Called(ctx, authorID, parentID, text)
	c, _ := args.Get(0).(*model.Comment)
	return c, args.Error(1)
}

func (m *MockCommentService) Update(ctx context.Context, userID, commentID, text string) (*model.Comment, error) {
	args := m.Called(ctx, userID, commentID, text)
	c, _ := args.Get(0).(*model.Comment)
	return c, args.Error(1)
}

func (m *MockCommentService) Delete(ctx context.Context, userID, commentID string) error {
	return m.Called(ctx, userID, commentID).Error(0)
}

// ---- social ----

type MockSocialService struct{ mock.Mock }

func (m *MockSocialService) toggle(ctx context.Context, method string, userID, targetID string) (*model.ToggleResult, error) {
	args := m.MethodCalled(method, ctx, userID, targetID)
	r, _ := args.Get(0).(*model.ToggleResult)
	return r, args.Error(1)
}

func (m *MockSocialService) LikePost(ctx context.Context, userID, postID string) (*model.ToggleResult, error) {
	return m.toggle(ctx, "LikePost", userID, postID)
}

func (m *MockSocialService) LikeComment(ctx context.Context, userID, commentID string) (*model.ToggleResult, error) {
	return m.toggle(ctx, "LikeComment", userID, commentID)
}

func (m *MockSocialService) SavePost(ctx context.Context, userID, postID string) (*model.ToggleResult, error) {
	return m.toggle(ctx, "SavePost", userID, postID)
}

func (m *MockSocialService) Follow(ctx context.Context, followerID, followingID string) (*model.ToggleResult, error) {
	return m.toggle(ctx, "Follow", followerID, followingID)
}

func (m *MockSocialService) Profile(ctx context.Context, userID, viewerID string) (*model.Profile, error) {
	args := m.Called(ctx, userID, viewerID)
	p, _ := args.Get(0).(*model.Profile)
	return p, args.Error(1)
}
