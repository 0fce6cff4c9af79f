package handler

import (
	"log/slog"
	"net/http"
)

// CommentHandler writes comments and replies.
type CommentHandler struct {
	comments CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

type commentRequest struct {
	Text string `json:"text"`
}

// HandleCreate adds a top-level comment to a published post.
//
// HTTP: POST /posts/{postId}/comments
// REQUEST BODY: {"text": "..."}
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, in, ok := h.read(w, r)
	if !ok {
		return
	}

	c, err := h.comments.Create(r.Context(), userID, r.PathValue("postId"), in.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleReply answers a comment.
//
// HTTP: POST /comments/{commentId}/replies
// REQUEST BODY: {"text": "..."}
func (h *CommentHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	userID, in, ok := h.read(w, r)
	if !ok {
		return
	}

	c, err := h.comments.Reply(r.Context(), userID, r.PathValue("commentId"), in.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleUpdate edits the text of the caller's own comment.
//
// HTTP: PUT /comments/{commentId}
func (h *CommentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, in, ok := h.read(w, r)
	if !ok {
		return
	}

	c, err := h.comments.Update(r.Context(), userID, r.PathValue("commentId"), in.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleDelete removes a comment and its replies.
//
// HTTP: DELETE /comments/{commentId}
// RESPONSE: 204 No Content
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.comments.Delete(r.Context(), userID, r.PathValue("commentId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// read returns the session user and decoded body, or writes the error and
// reports false.
func (h *CommentHandler) read(w http.ResponseWriter, r *http.Request) (string, commentRequest, bool) {
	var in commentRequest

	userID, err := sessionUser(r)
	if err == nil {
		err = decodeJSON(w, r, &in)
	}
	if err != nil {
		writeError(w, err)
		return "", in, false
	}
	return userID, in, true
}
