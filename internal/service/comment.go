package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/content"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/repository"
)

type commentInput struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// CommentService writes comments and replies.
//
// ONE LEVEL OF NESTING:
// The detail view shows top-level comments with their direct replies. A
// reply to a reply is therefore stored as a reply to the top-level comment
// it belongs to, and every comment tree stays exactly two levels deep.
type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	renderer *content.Renderer
	logger   *slog.Logger
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	renderer *content.Renderer,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{comments: comments, posts: posts, renderer: renderer, logger: logger}
}

// Create adds a top-level comment to a published post.
func (s *CommentService) Create(ctx context.Context, authorID, postID, text string) (*model.Comment, error) {
	text, err := s.cleanText(text)
	if err != nil {
		return nil, err
	}
	post, err := s.publishedPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	return s.insert(ctx, &model.Comment{AuthorID: authorID, PostID: post.ID, Text: text})
}

// Reply adds a reply under parentID, or under parentID's own parent when
// parentID is itself a reply.
func (s *CommentService) Reply(ctx context.Context, authorID, parentID, text string) (*model.Comment, error) {
	text, err := s.cleanText(text)
	if err != nil {
		return nil, err
	}

	parent, err := s.comments.GetCommentByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.ParentID != nil {
		if parent, err = s.comments.GetCommentByID(ctx, *parent.ParentID); err != nil {
			return nil, err
		}
	}

	if _, err := s.publishedPost(ctx, parent.PostID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("comment", parentID)
		}
		return nil, err
	}

	return s.insert(ctx, &model.Comment{
		AuthorID: authorID,
		PostID:   parent.PostID,
		ParentID: &parent.ID,
		Text:     text,
	})
}

// Update changes the text of a comment written by userID.
func (s *CommentService) Update(ctx context.Context, userID, commentID, text string) (*model.Comment, error) {
	text, err := s.cleanText(text)
	if err != nil {
		return nil, err
	}

	c, err := s.comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != userID {
		return nil, apperror.Forbidden("you can only edit your own comments")
	}

	c.Text = text
	if err := s.comments.UpdateComment(ctx, c); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("updating comment %s: %w", commentID, err)
	}
	return c, nil
}

// Delete removes a comment, its replies and their likes. The comment's
// author and the post's author may delete it.
func (s *CommentService) Delete(ctx context.Context, userID, commentID string) error {
	c, err := s.comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return err
	}

	if c.AuthorID != userID {
		post, err := s.posts.GetPostByID(ctx, c.PostID)
		if err != nil {
			return err
		}
		if post.AuthorID != userID {
			return apperror.Forbidden("you can only delete your own comments")
		}
	}

	if err := s.comments.DeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting comment %s: %w", commentID, err)
	}

	s.logger.Info("comment deleted", slog.String("id", commentID), slog.String("by", userID))
	return nil
}

func (s *CommentService) insert(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	if err := s.comments.CreateComment(ctx, c); err != nil {
		s.logger.Error("failed to create comment",
			slog.String("postID", c.PostID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	s.logger.Info("comment created",
		slog.String("id", c.ID),
		slog.String("postID", c.PostID),
	)
	return c, nil
}

// publishedPost returns postID if it is published. Drafts cannot be
// commented on and are reported as NotFound.
func (s *CommentService) publishedPost(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != model.PostPublished {
		return nil, apperror.NotFound("post", postID)
	}
	return post, nil
}

// cleanText strips markup and surrounding whitespace, then checks length.
func (s *CommentService) cleanText(text string) (string, error) {
	in := commentInput{Text: s.renderer.Plain(text)}
	if err := checkInput(in); err != nil {
		return "", err
	}
	return in.Text, nil
}
