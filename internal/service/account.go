package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/repository"
)

type usernameInput struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
}

// AccountService serves the signed-in user's own account (/me).
type AccountService struct {
	users   repository.UserRepository
	uploads *UploadService
	logger  *slog.Logger
}

func NewAccountService(users repository.UserRepository, uploads *UploadService, logger *slog.Logger) *AccountService {
	return &AccountService{users: users, uploads: uploads, logger: logger}
}

// Me returns the account of userID.
func (s *AccountService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// The session outlived the account.
			return nil, apperror.Unauthorized("valid authentication required")
		}
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}
	return user, nil
}

// UpdateUsername renames the account. A taken name is a Conflict.
func (s *AccountService) UpdateUsername(ctx context.Context, userID, username string) (*model.User, error) {
	in := usernameInput{Username: strings.TrimSpace(username)}
	if err := checkInput(in); err != nil {
		return nil, err
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Username == in.Username {
		return user, nil
	}

	user.Username = in.Username
	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("renaming user %s: %w", userID, err)
	}

	s.logger.Info("username changed", slog.String("userID", userID))
	return user, nil
}

// UpdateAvatar uploads an image and makes it the account's avatar. If the
// upload fails the account is left unchanged.
func (s *AccountService) UpdateAvatar(ctx context.Context, userID string, data []byte, contentType string) (*model.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.uploads.Upload(ctx, data, contentType)
	if err != nil {
		return nil, err
	}

	user.Img = url
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("saving avatar of %s: %w", userID, err)
	}
	return user, nil
}
