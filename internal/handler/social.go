package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/postvault/internal/model"
)

// SocialHandler exposes the toggle endpoints and public profiles.
//
// TOGGLES:
// Each toggle endpoint flips one relation and answers with what happened:
//
//	POST /posts/{postId}/like → {"action": "liked"}
//	POST /posts/{postId}/like → {"action": "unliked"}
//
// The client does not need to know the current state to send the request,
// and a double click lands back where it started.
type SocialHandler struct {
	social SocialService
	logger *slog.Logger
}

func NewSocialHandler(social SocialService, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{social: social, logger: logger}
}

type toggleFunc func(ctx context.Context, userID, targetID string) (*model.ToggleResult, error)

// HandleLikePost toggles a like on a post.
//
// HTTP: POST /posts/{postId}/like
func (h *SocialHandler) HandleLikePost(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "postId", h.social.LikePost)
}

// HandleSavePost toggles a post in the caller's saved list.
//
// HTTP: POST /posts/{postId}/save
func (h *SocialHandler) HandleSavePost(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "postId", h.social.SavePost)
}

// HandleLikeComment toggles a like on a comment.
//
// HTTP: POST /comments/{commentId}/like
func (h *SocialHandler) HandleLikeComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "commentId", h.social.LikeComment)
}

// HandleFollow toggles following a user.
//
// HTTP: POST /users/{id}/follow
func (h *SocialHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "id", h.social.Follow)
}

func (h *SocialHandler) toggle(w http.ResponseWriter, r *http.Request, param string, fn toggleFunc) {
	userID, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := fn(r.Context(), userID, r.PathValue(param))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleProfile returns a user's public profile.
//
// HTTP: GET /users/{id}
func (h *SocialHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.social.Profile(r.Context(), r.PathValue("id"), viewer(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
