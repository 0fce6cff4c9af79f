package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/content"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/repository"
)

// PostInput is the body of POST /posts and PUT /posts/{id}.
// An empty Status means DRAFT on create and "unchanged" on update.
type PostInput struct {
	Title     string           `json:"title" validate:"required,max=150"`
	Paragraph string           `json:"paragraph" validate:"required,max=20000"`
	Img       string           `json:"img" validate:"omitempty,url,max=2048"`
	Tags      []string         `json:"tags" validate:"max=10,dive,max=30"`
	Status    model.PostStatus `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED"`
}

// PostService handles post authoring and the post detail view.
type PostService struct {
	posts    repository.PostRepository
	details  repository.DetailRepository
	renderer *content.Renderer
	logger   *slog.Logger
}

func NewPostService(
	posts repository.PostRepository,
	details repository.DetailRepository,
	renderer *content.Renderer,
	logger *slog.Logger,
) *PostService {
	return &PostService{posts: posts, details: details, renderer: renderer, logger: logger}
}

// ResolveViewer decides whose flags a detail view is computed for.
//
// The viewer is always the session user. A viewerId query parameter is
// accepted only as an assertion of that identity: without a session it is
// Unauthorized, and naming somebody else is Forbidden.
func ResolveViewer(sessionUserID, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return sessionUserID, nil
	}
	if sessionUserID == "" {
		return "", apperror.Unauthorized("sign in to view a post as a user")
	}
	if requested != sessionUserID {
		return "", apperror.Forbidden("viewerId must be the signed-in user")
	}
	return sessionUserID, nil
}

// Detail returns the denormalized view of postID for viewerID ("" for
// anonymous). A draft is visible only to its author; everybody else gets
// NotFound, as if it did not exist.
func (s *PostService) Detail(ctx context.Context, postID, viewerID string) (*model.PostDetail, error) {
	d, err := s.details.GetPostDetail(ctx, postID, viewerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to load post detail",
			slog.String("postID", postID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("loading post %s: %w", postID, err)
	}

	if d.Status != model.PostPublished && d.Author.ID != viewerID {
		return nil, apperror.NotFound("post", postID)
	}

	// A rendering failure degrades to the plain paragraph; the client
	// still has it.
	if d.HTML, err = s.renderer.Markdown(d.Paragraph); err != nil {
		s.logger.Warn("markdown rendering failed",
			slog.String("postID", postID),
			slog.String("error", err.Error()),
		)
	}
	return d, nil
}

// Create stores a new post by authorID.
func (s *PostService) Create(ctx context.Context, authorID string, in PostInput) (*model.Post, error) {
	in = s.normalize(in)
	if in.Status == "" {
		in.Status = model.PostDraft
	}
	if err := checkInput(in); err != nil {
		return nil, err
	}

	post := &model.Post{
		AuthorID:  authorID,
		Title:     in.Title,
		Paragraph: in.Paragraph,
		Img:       in.Img,
		Tags:      in.Tags,
		Status:    in.Status,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.String("authorID", authorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("id", post.ID),
		slog.String("status", string(post.Status)),
	)
	return post, nil
}

// Update replaces the editable fields of a post owned by userID.
func (s *PostService) Update(ctx context.Context, userID, postID string, in PostInput) (*model.Post, error) {
	in = s.normalize(in)
	if err := checkInput(in); err != nil {
		return nil, err
	}

	post, err := s.ownPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	post.Title = in.Title
	post.Paragraph = in.Paragraph
	post.Img = in.Img
	post.Tags = in.Tags
	if in.Status != "" {
		post.Status = in.Status
	}

	return s.save(ctx, post, "post updated")
}

// Publish makes a post visible in the feed. Publishing a published post
// keeps its original publish time.
func (s *PostService) Publish(ctx context.Context, userID, postID string) (*model.Post, error) {
	return s.setStatus(ctx, userID, postID, model.PostPublished)
}

// Unpublish turns a post back into a draft.
func (s *PostService) Unpublish(ctx context.Context, userID, postID string) (*model.Post, error) {
	return s.setStatus(ctx, userID, postID, model.PostDraft)
}

func (s *PostService) setStatus(ctx context.Context, userID, postID string, status model.PostStatus) (*model.Post, error) {
	post, err := s.ownPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if post.Status == status {
		return post, nil
	}
	post.Status = status
	return s.save(ctx, post, "post status changed")
}

// Delete removes a post with its comments, likes and saves.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	if _, err := s.ownPost(ctx, userID, postID); err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting post %s: %w", postID, err)
	}

	s.logger.Info("post deleted", slog.String("id", postID))
	return nil
}

func (s *PostService) save(ctx context.Context, post *model.Post, event string) (*model.Post, error) {
	if err := s.posts.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update post",
			slog.String("id", post.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating post %s: %w", post.ID, err)
	}

	s.logger.Info(event,
		slog.String("id", post.ID),
		slog.String("status", string(post.Status)),
	)
	return post, nil
}

// ownPost loads postID and checks that userID wrote it. Somebody else's
// draft is NotFound rather than Forbidden, so its existence does not leak.
func (s *PostService) ownPost(ctx context.Context, userID, postID string) (*model.Post, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		if post.Status != model.PostPublished {
			return nil, apperror.NotFound("post", postID)
		}
		return nil, apperror.Forbidden("you can only change your own posts")
	}
	return post, nil
}

// normalize strips markup from the title and cleans up tags: markup
// stripped, lowercased, empty ones dropped, duplicates removed in first-seen
// order.
// The paragraph is kept as written (Markdown) and sanitized on render.
func (s *PostService) normalize(in PostInput) PostInput {
	in.Title = s.renderer.Plain(in.Title)
	in.Img = strings.TrimSpace(in.Img)
	in.Status = model.PostStatus(strings.ToUpper(strings.TrimSpace(string(in.Status))))
	if strings.TrimSpace(in.Paragraph) == "" {
		in.Paragraph = ""
	}

	tags := make([]string, 0, len(in.Tags))
	seen := make(map[string]bool, len(in.Tags))
	for _, t := range in.Tags {
		t = strings.ToLower(s.renderer.Plain(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	in.Tags = tags
	return in
}
