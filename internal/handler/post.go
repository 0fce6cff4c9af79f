package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/service"
)

// PostHandler manages posts: the aggregated detail view and the author's
// write operations.
type PostHandler struct {
	posts  PostService
	logger *slog.Logger
}

func NewPostHandler(posts PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// HandleDetail returns one post with its author, counts, viewer flags and
// two-level comment tree.
//
// HTTP: GET /posts/{postId}?viewerId=
//
// WHO IS THE VIEWER?
// The viewer flags (likedByMe, savedByMe, followedByMe) are computed for
// the session user. ?viewerId= is accepted only when it names that same
// user; a client cannot ask "what does user X see".
func (h *PostHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	viewerID, err := service.ResolveViewer(viewer(r), r.URL.Query().Get("viewerId"))
	if err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.posts.Detail(r.Context(), r.PathValue("postId"), viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleCreate creates a post. Without a status it is saved as a DRAFT.
//
// HTTP: POST /posts
// REQUEST BODY: {"title": "...", "paragraph": "markdown", "img": "url", "tags": ["go"], "status": "PUBLISHED"}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate replaces a post's content.
//
// HTTP: PUT /posts/{postId}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Update(r.Context(), userID, r.PathValue("postId"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandlePublish makes a draft visible in the feed.
//
// HTTP: POST /posts/{postId}/publish
func (h *PostHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.posts.Publish)
}

// HandleUnpublish turns a post back into a draft.
//
// HTTP: POST /posts/{postId}/unpublish
func (h *PostHandler) HandleUnpublish(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.posts.Unpublish)
}

func (h *PostHandler) setStatus(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, userID, postID string) (*model.Post, error),
) {
	userID, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := change(r.Context(), userID, r.PathValue("postId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes a post with its comments, likes and saves.
//
// HTTP: DELETE /posts/{postId}
// RESPONSE: 204 No Content
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.posts.Delete(r.Context(), userID, r.PathValue("postId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
