package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/feeds"

	"github.com/sakif/postvault/internal/model"
)

const (
	rssItems       = 20
	rssSummaryLen  = 280
	rssContentType = "application/rss+xml; charset=utf-8"
)

// RSSHandler exports the newest published posts as an RSS 2.0 channel so
// readers can subscribe without an account. It reads the same first page as
// GET /feed; drafts never appear because the feed never contains them.
type RSSHandler struct {
	feed    FeedService
	baseURL string
	logger  *slog.Logger
}

func NewRSSHandler(feed FeedService, baseURL string, logger *slog.Logger) *RSSHandler {
	return &RSSHandler{feed: feed, baseURL: baseURL, logger: logger}
}

// HandleRSS writes the channel.
//
// HTTP: GET /feed.rss
func (h *RSSHandler) HandleRSS(w http.ResponseWriter, r *http.Request) {
	page, err := h.feed.GetFeedPage(r.Context(), "", rssItems)
	if err != nil {
		writeError(w, err)
		return
	}

	channel := &feeds.Feed{
		Title:       "PostVault",
		Link:        &feeds.Link{Href: h.baseURL + "/"},
		Description: "Latest posts on PostVault",
		Items:       make([]*feeds.Item, 0, len(page.Posts)),
	}
	for _, p := range page.Posts {
		channel.Items = append(channel.Items, h.item(p))
	}
	if len(channel.Items) > 0 {
		channel.Created = channel.Items[0].Created
	}

	w.Header().Set("Content-Type", rssContentType)
	if err := channel.WriteRss(w); err != nil {
		// Headers are gone by now; all that is left is to record it.
		h.logger.Error("failed to write rss", slog.String("error", err.Error()))
	}
}

func (h *RSSHandler) item(p model.PostSummary) *feeds.Item {
	link := h.baseURL + "/posts/" + p.ID
	created := p.CreatedAt
	if p.PublishedAt != nil {
		created = *p.PublishedAt
	}

	return &feeds.Item{
		Id:          link,
		Title:       p.Title,
		Link:        &feeds.Link{Href: link},
		Author:      &feeds.Author{Name: p.Author.Username},
		Description: summarize(p.Paragraph, rssSummaryLen),
		Created:     created.UTC().Truncate(time.Second),
	}
}

// summarize cuts s to at most n runes, ending in an ellipsis when cut.
func summarize(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
