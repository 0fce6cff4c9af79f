package handler

import (
	"log/slog"
	"net/http"
)

// FeedHandler serves the cursor-paginated post lists.
//
// PAGINATION:
//
//	GET /feed?limit=10                → first page
//	GET /feed?limit=10&cursor=<next>  → the page after it
//
// The response carries "nextCursor" and "hasMore". A client keeps passing
// nextCursor back until hasMore is false; every post is then seen exactly
// once, even if new posts are published between requests.
type FeedHandler struct {
	feed   FeedService
	logger *slog.Logger
}

func NewFeedHandler(feed FeedService, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{feed: feed, logger: logger}
}

// HandleFeed returns one page of the global feed of published posts.
//
// HTTP: GET /feed?cursor=&limit=
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	cursor, limit, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.feed.GetFeedPage(r.Context(), cursor, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleUserPosts returns one page of a user's posts. The author also sees
// their drafts.
//
// HTTP: GET /users/{id}/posts?cursor=&limit=
func (h *FeedHandler) HandleUserPosts(w http.ResponseWriter, r *http.Request) {
	cursor, limit, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.feed.ListAuthorPosts(r.Context(), r.PathValue("id"), viewer(r), cursor, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleSaved returns one page of the current user's saved posts, most
// recently saved first.
//
// HTTP: GET /me/saved?cursor=&limit=
func (h *FeedHandler) HandleSaved(w http.ResponseWriter, r *http.Request) {
	userID, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cursor, limit, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.feed.ListSavedPosts(r.Context(), userID, cursor, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
