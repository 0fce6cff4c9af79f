package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/auth"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/pagination"
	"github.com/sakif/postvault/internal/repository"
)

// =========================================================================
// FAKES
// =========================================================================
//
// In-memory implementations of the repository interfaces and external
// collaborators. Each fake has an err field: set it to simulate a datastore
// (or network) failure on every call.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var errDB = errors.New("database is locked")

// ---- users ----

type fakeUsers struct {
	users  map[string]*model.User
	nextID int
	err    error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*model.User{}}
}

func (f *fakeUsers) add(u model.User) *model.User {
	f.nextID++
	if u.ID == "" {
		u.ID = fmt.Sprintf("user-%d", f.nextID)
	}
	f.users[u.ID] = &u
	out := u
	return &out
}

func (f *fakeUsers) taken(field, value, exceptID string) bool {
	for _, u := range f.users {
		if u.ID == exceptID {
			continue
		}
		if (field == "email" && u.Email == value) || (field == "username" && u.Username == value) {
			return true
		}
	}
	return false
}

func (f *fakeUsers) CreateUser(_ context.Context, u *model.User) error {
	if f.err != nil {
		return f.err
	}
	if f.taken("email", u.Email, "") {
		return apperror.Conflict("user", "email")
	}
	if f.taken("username", u.Username, "") {
		return apperror.Conflict("user", "username")
	}
	*u = *f.add(*u)
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUsers) UpsertGitHubUser(_ context.Context, u *model.User) error {
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.users {
		if existing.GitHubID != nil && *existing.GitHubID == *u.GitHubID {
			*u = *existing
			return nil
		}
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			id := *u.GitHubID
			existing.GitHubID = &id
			existing.Status = model.UserActive
			*u = *existing
			return nil
		}
	}
	if f.taken("username", u.Username, "") {
		return apperror.Conflict("user", "username")
	}
	u.AuthType = model.AuthGitHub
	u.Status = model.UserActive
	*u = *f.add(*u)
	return nil
}

func (f *fakeUsers) UpdateUser(_ context.Context, u *model.User) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.users[u.ID]; !ok {
		return apperror.NotFound("user", u.ID)
	}
	if f.taken("username", u.Username, u.ID) {
		return apperror.Conflict("user", "username")
	}
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

// ---- posts ----

type fakePosts struct {
	posts  map[string]*model.Post
	nextID int
	now    time.Time
	err    error
}

func newFakePosts() *fakePosts {
	return &fakePosts{posts: map[string]*model.Post{}, now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakePosts) stamp() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fakePosts) CreatePost(_ context.Context, p *model.Post) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	p.ID = fmt.Sprintf("post-%d", f.nextID)
	p.CreatedAt = f.stamp()
	p.UpdatedAt = p.CreatedAt
	if p.Status == model.PostPublished {
		at := p.CreatedAt
		p.PublishedAt = &at
	}
	stored := *p
	f.posts[p.ID] = &stored
	return nil
}

func (f *fakePosts) GetPostByID(_ context.Context, id string) (*model.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	out := *p
	return &out, nil
}

func (f *fakePosts) UpdatePost(_ context.Context, p *model.Post) error {
	if f.err != nil {
		return f.err
	}
	old, ok := f.posts[p.ID]
	if !ok {
		return apperror.NotFound("post", p.ID)
	}
	p.UpdatedAt = f.stamp()
	switch {
	case p.Status != model.PostPublished:
		p.PublishedAt = nil
	case old.PublishedAt != nil:
		p.PublishedAt = old.PublishedAt
	default:
		at := p.UpdatedAt
		p.PublishedAt = &at
	}
	stored := *p
	f.posts[p.ID] = &stored
	return nil
}

func (f *fakePosts) DeletePost(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(f.posts, id)
	return nil
}

// ---- comments ----

type fakeComments struct {
	comments map[string]*model.Comment
	nextID   int
	err      error
}

func newFakeComments() *fakeComments {
	return &fakeComments{comments: map[string]*model.Comment{}}
}

func (f *fakeComments) CreateComment(_ context.Context, c *model.Comment) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	c.ID = fmt.Sprintf("comment-%d", f.nextID)
	stored := *c
	f.comments[c.ID] = &stored
	return nil
}

func (f *fakeComments) GetCommentByID(_ context.Context, id string) (*model.Comment, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", id)
	}
	out := *c
	return &out, nil
}

func (f *fakeComments) UpdateComment(_ context.Context, c *model.Comment) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.comments[c.ID]; !ok {
		return apperror.NotFound("comment", c.ID)
	}
	stored := *c
	f.comments[c.ID] = &stored
	return nil
}

func (f *fakeComments) DeleteComment(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.comments[id]; !ok {
		return apperror.NotFound("comment", id)
	}
	delete(f.comments, id)
	return nil
}

// ---- post detail ----

type fakeDetails struct {
	details map[string]model.PostDetail
	viewer  string // last viewerID asked for
	err     error
}

func (f *fakeDetails) GetPostDetail(_ context.Context, postID, viewerID string) (*model.PostDetail, error) {
	f.viewer = viewerID
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.details[postID]
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}
	return &d, nil
}

// ---- feed ----

// fakeFeed holds feed rows already in (createdAt DESC, id DESC) order.
type fakeFeed struct {
	rows    []repository.FeedRow
	saved   map[string][]repository.FeedRow
	lastQ   repository.FeedQuery
	lastLim int
	err     error
}

// newFakeFeed returns n published posts, post-1 newest.
func newFakeFeed(n int) *fakeFeed {
	f := &fakeFeed{saved: map[string][]repository.FeedRow{}}
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("post-%02d", i)
		at := base.Add(-time.Duration(i) * time.Minute)
		f.rows = append(f.rows, repository.FeedRow{
			Post: model.PostSummary{ID: id, Title: id, CreatedAt: at, Tags: []string{}},
			Key:  pagination.Cursor{CreatedAt: at, ID: id},
		})
	}
	return f
}

func after(key pagination.Cursor, c *pagination.Cursor) bool {
	if c == nil {
		return true
	}
	return key.CreatedAt.Before(c.CreatedAt) || (key.CreatedAt.Equal(c.CreatedAt) && key.ID < c.ID)
}

func window(rows []repository.FeedRow, c *pagination.Cursor, limit int) []repository.FeedRow {
	var out []repository.FeedRow
	for _, r := range rows {
		if after(r.Key, c) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeFeed) ListPosts(_ context.Context, q repository.FeedQuery) ([]repository.FeedRow, error) {
	f.lastQ = q
	if f.err != nil {
		return nil, f.err
	}
	return window(f.rows, q.After, q.Limit), nil
}

func (f *fakeFeed) ListSavedPosts(_ context.Context, userID string, c *pagination.Cursor, limit int) ([]repository.FeedRow, error) {
	f.lastLim = limit
	if f.err != nil {
		return nil, f.err
	}
	rows := append([]repository.FeedRow(nil), f.saved[userID]...)
	sort.Slice(rows, func(i, j int) bool { return after(rows[j].Key, &rows[i].Key) })
	return window(rows, c, limit), nil
}

func (f *fakeFeed) PostKey(_ context.Context, postID string) (pagination.Cursor, error) {
	if f.err != nil {
		return pagination.Cursor{}, f.err
	}
	for _, r := range f.rows {
		if r.Post.ID == postID {
			return r.Key, nil
		}
	}
	return pagination.Cursor{}, apperror.NotFound("post", postID)
}

func (f *fakeFeed) SavedKey(_ context.Context, userID, postID string) (pagination.Cursor, error) {
	if f.err != nil {
		return pagination.Cursor{}, f.err
	}
	for _, r := range f.saved[userID] {
		if r.Post.ID == postID {
			return r.Key, nil
		}
	}
	return pagination.Cursor{}, apperror.NotFound("saved post", postID)
}

// ---- toggles and profiles ----

type fakeToggles struct {
	targets map[string]bool // ids that exist and may be toggled
	on      map[string]bool // "kind/actor/target"
	calls   int
	err     error
}

func newFakeToggles(targets ...string) *fakeToggles {
	f := &fakeToggles{targets: map[string]bool{}, on: map[string]bool{}}
	for _, t := range targets {
		f.targets[t] = true
	}
	return f
}

func (f *fakeToggles) flip(kind, actor, target string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if !f.targets[target] {
		return false, apperror.NotFound(kind, target)
	}
	key := strings.Join([]string{kind, actor, target}, "/")
	f.on[key] = !f.on[key]
	return f.on[key], nil
}

func (f *fakeToggles) TogglePostLike(_ context.Context, userID, postID string) (bool, error) {
	return f.flip("post-like", userID, postID)
}

func (f *fakeToggles) ToggleCommentLike(_ context.Context, userID, commentID string) (bool, error) {
	return f.flip("comment-like", userID, commentID)
}

func (f *fakeToggles) ToggleSave(_ context.Context, userID, postID string) (bool, error) {
	return f.flip("save", userID, postID)
}

func (f *fakeToggles) ToggleFollow(_ context.Context, followerID, followingID string) (bool, error) {
	return f.flip("follow", followerID, followingID)
}

type fakeProfiles struct {
	profiles map[string]model.Profile
	err      error
}

func (f *fakeProfiles) GetProfile(_ context.Context, userID, viewerID string) (*model.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, apperror.NotFound("user", userID)
	}
	p.FollowedByMe = viewerID == "follower"
	return &p, nil
}

// ---- collaborators ----

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeImageHost struct {
	url   string
	err   error
	calls int
}

func (f *fakeImageHost) Upload(context.Context, []byte, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeOAuth struct {
	user *auth.GitHubUser
	err  error
}

func (f *fakeOAuth) AuthURL(state string) string {
	return "https://github.test/login/oauth/authorize?state=" + state
}

func (f *fakeOAuth) Exchange(context.Context, string) (*auth.GitHubUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func requireAppError(t *testing.T, err, sentinel error) *apperror.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %v", sentinel)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Err != sentinel {
		t.Fatalf("error = %#v, want *AppError wrapping %v", err, sentinel)
	}
	return appErr
}
