package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/repository"
)

// SocialService runs the toggle mutations (likes, saves, follows) and
// serves public profiles.
//
// A toggle is not "like" or "unlike": the same request flips the state and
// the response says which way it went. Counts are never stored, so a
// toggle pair always restores every count the detail view reports.
type SocialService struct {
	toggles  repository.ToggleRepository
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

func NewSocialService(toggles repository.ToggleRepository, profiles repository.ProfileRepository, logger *slog.Logger) *SocialService {
	return &SocialService{toggles: toggles, profiles: profiles, logger: logger}
}

// LikePost toggles userID's like on a published post.
func (s *SocialService) LikePost(ctx context.Context, userID, postID string) (*model.ToggleResult, error) {
	on, err := s.toggles.TogglePostLike(ctx, userID, postID)
	return s.result(on, err, model.ActionLiked, model.ActionUnliked, "post like", postID)
}

// LikeComment toggles userID's like on a comment of a published post.
func (s *SocialService) LikeComment(ctx context.Context, userID, commentID string) (*model.ToggleResult, error) {
	on, err := s.toggles.ToggleCommentLike(ctx, userID, commentID)
	return s.result(on, err, model.ActionLiked, model.ActionUnliked, "comment like", commentID)
}

// SavePost toggles a published post in userID's saved list.
func (s *SocialService) SavePost(ctx context.Context, userID, postID string) (*model.ToggleResult, error) {
	on, err := s.toggles.ToggleSave(ctx, userID, postID)
	return s.result(on, err, model.ActionSaved, model.ActionUnsaved, "save", postID)
}

// Follow toggles followerID following followingID. Following yourself is
// rejected before the database is touched.
func (s *SocialService) Follow(ctx context.Context, followerID, followingID string) (*model.ToggleResult, error) {
	if followerID == followingID {
		return nil, apperror.ValidationFailed("userId", "you cannot follow yourself")
	}
	on, err := s.toggles.ToggleFollow(ctx, followerID, followingID)
	return s.result(on, err, model.ActionFollowed, model.ActionUnfollowed, "follow", followingID)
}

func (s *SocialService) result(on bool, err error, onAction, offAction, what, targetID string) (*model.ToggleResult, error) {
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		s.logger.Error("toggle failed",
			slog.String("toggle", what),
			slog.String("target", targetID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("toggling %s on %s: %w", what, targetID, err)
	}

	if on {
		return &model.ToggleResult{Action: onAction}, nil
	}
	return &model.ToggleResult{Action: offAction}, nil
}

// Profile returns the public view of userID as seen by viewerID.
func (s *SocialService) Profile(ctx context.Context, userID, viewerID string) (*model.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID, viewerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading profile %s: %w", userID, err)
	}
	return p, nil
}
