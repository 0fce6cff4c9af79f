package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/pagination"
	"github.com/sakif/postvault/internal/repository"
)

// FeedService reads the cursor-paginated post lists: the global feed, one
// author's posts and a user's saved posts.
//
// PAGE PROTOCOL:
//  1. Resolve the cursor (opaque key, or a raw post id for older clients).
//  2. Ask the repository for limit+1 rows after it.
//  3. Keep limit rows; the extra one only tells us whether hasMore is true.
//  4. nextCursor is the key of the last kept row, set only when hasMore.
type FeedService struct {
	feed   repository.FeedRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewFeedService(feed repository.FeedRepository, users repository.UserRepository, logger *slog.Logger) *FeedService {
	return &FeedService{feed: feed, users: users, logger: logger}
}

// GetFeedPage returns one page of published posts, newest first.
// limit is clamped to [1, 50]; zero or less means the default of 10.
func (s *FeedService) GetFeedPage(ctx context.Context, cursor string, limit int) (*model.FeedPage, error) {
	after, err := s.resolveCursor(ctx, cursor, s.feed.PostKey)
	if err != nil {
		return nil, err
	}

	limit = pagination.ClampLimit(limit)
	rows, err := s.feed.ListPosts(ctx, repository.FeedQuery{After: after, Limit: limit + 1})
	if err != nil {
		s.logger.Error("failed to read feed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("reading feed: %w", err)
	}
	return buildPage(rows, limit), nil
}

// ListAuthorPosts returns one page of authorID's posts. Drafts are included
// only when the viewer is the author.
func (s *FeedService) ListAuthorPosts(ctx context.Context, authorID, viewerID, cursor string, limit int) (*model.FeedPage, error) {
	if _, err := s.users.GetUserByID(ctx, authorID); err != nil {
		return nil, err
	}

	after, err := s.resolveCursor(ctx, cursor, s.feed.PostKey)
	if err != nil {
		return nil, err
	}

	limit = pagination.ClampLimit(limit)
	rows, err := s.feed.ListPosts(ctx, repository.FeedQuery{
		After:         after,
		Limit:         limit + 1,
		AuthorID:      authorID,
		IncludeDrafts: viewerID != "" && viewerID == authorID,
	})
	if err != nil {
		s.logger.Error("failed to list author posts",
			slog.String("authorID", authorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing posts of %s: %w", authorID, err)
	}
	return buildPage(rows, limit), nil
}

// ListSavedPosts returns one page of the published posts userID saved,
// most recently saved first.
func (s *FeedService) ListSavedPosts(ctx context.Context, userID, cursor string, limit int) (*model.FeedPage, error) {
	savedKey := func(ctx context.Context, postID string) (pagination.Cursor, error) {
		return s.feed.SavedKey(ctx, userID, postID)
	}
	after, err := s.resolveCursor(ctx, cursor, savedKey)
	if err != nil {
		return nil, err
	}

	limit = pagination.ClampLimit(limit)
	rows, err := s.feed.ListSavedPosts(ctx, userID, after, limit+1)
	if err != nil {
		s.logger.Error("failed to list saved posts",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing saved posts of %s: %w", userID, err)
	}
	return buildPage(rows, limit), nil
}

// resolveCursor turns the cursor query parameter into a key. An empty
// cursor is the first page. A string that is not an encoded key is tried as
// a raw post id; if that does not resolve either, the cursor is invalid.
func (s *FeedService) resolveCursor(
	ctx context.Context,
	raw string,
	lookup func(context.Context, string) (pagination.Cursor, error),
) (*pagination.Cursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if c, err := pagination.Decode(raw); err == nil {
		return &c, nil
	}

	c, err := lookup(ctx, raw)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("cursor", "cursor is not valid")
		}
		return nil, fmt.Errorf("resolving cursor: %w", err)
	}
	return &c, nil
}

func buildPage(rows []repository.FeedRow, limit int) *model.FeedPage {
	page, hasMore := pagination.Page(rows, limit)

	out := &model.FeedPage{
		Posts:   make([]model.PostSummary, 0, len(page)),
		HasMore: hasMore,
	}
	for _, r := range page {
		out.Posts = append(out.Posts, r.Post)
	}
	if hasMore {
		next := page[len(page)-1].Key.Encode()
		out.NextCursor = &next
	}
	return out
}
