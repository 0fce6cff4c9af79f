package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/pagination"
	"github.com/sakif/postvault/internal/repository"
)

// walkFeed reads every page the way the service does (limit+1 and peek)
// and returns the post ids in the order they were served.
func walkFeed(t *testing.T, db *DB, q repository.FeedQuery, limit int) []string {
	t.Helper()

	var ids []string
	for pages := 0; ; pages++ {
		if pages > 100 {
			t.Fatal("pagination did not terminate")
		}
		q.Limit = limit + 1
		rows, err := db.ListPosts(context.Background(), q)
		if err != nil {
			t.Fatalf("ListPosts() error = %v", err)
		}
		page, more := pagination.Page(rows, limit)
		for _, r := range page {
			ids = append(ids, r.Post.ID)
		}
		if !more {
			return ids
		}
		key := page[len(page)-1].Key
		q.After = &key
	}
}

func TestListPosts_PaginationCoverage(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "ada")

	// 23 published posts in groups of three sharing one timestamp, with
	// drafts mixed in.
	want := map[string]bool{}
	for i := 0; i < 23; i++ {
		setClock(db, t0.Add(time.Duration(i/3)*time.Minute))
		p := createTestPost(t, db, u.ID, fmt.Sprintf("post %d", i), model.PostPublished)
		want[p.ID] = true
		if i%5 == 0 {
			createTestPost(t, db, u.ID, fmt.Sprintf("draft %d", i), model.PostDraft)
		}
	}

	for _, limit := range []int{1, 3, 7, 23, 50} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			ids := walkFeed(t, db, repository.FeedQuery{}, limit)

			if len(ids) != len(want) {
				t.Fatalf("served %d posts, want %d", len(ids), len(want))
			}
			seen := map[string]bool{}
			for _, id := range ids {
				if !want[id] {
					t.Errorf("served unexpected post %s", id)
				}
				if seen[id] {
					t.Errorf("served post %s twice", id)
				}
				seen[id] = true
			}
		})
	}
}

func TestListPosts_Ordering(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "ada")

	setClock(db, t0)
	a := createTestPost(t, db, u.ID, "a", model.PostPublished)
	b := createTestPost(t, db, u.ID, "b", model.PostPublished)
	setClock(db, t0.Add(time.Minute))
	c := createTestPost(t, db, u.ID, "c", model.PostPublished)

	rows, err := db.ListPosts(context.Background(), repository.FeedQuery{Limit: 10})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}

	// Newest first; a and b share a timestamp so the larger id comes first.
	first, second := a.ID, b.ID
	if b.ID > a.ID {
		first, second = b.ID, a.ID
	}
	wantOrder := []string{c.ID, first, second}
	for i, r := range rows {
		if r.Post.ID != wantOrder[i] {
			t.Errorf("rows[%d] = %s, want %s", i, r.Post.ID, wantOrder[i])
		}
	}
}

func TestListPosts_ExactPageHasNoMore(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "ada")
	for i := 0; i < 4; i++ {
		createTestPost(t, db, u.ID, fmt.Sprintf("p%d", i), model.PostPublished)
	}

	rows, err := db.ListPosts(context.Background(), repository.FeedQuery{Limit: 5})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if _, more := pagination.Page(rows, 4); more {
		t.Error("a page ending exactly at the last post must report hasMore=false")
	}
}

func TestListPosts_DraftExcludedUntilPublished(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "ada")
	draft := createTestPost(t, db, u.ID, "draft", model.PostDraft)

	if ids := walkFeed(t, db, repository.FeedQuery{}, 10); len(ids) != 0 {
		t.Fatalf("feed = %v, want empty while the post is a draft", ids)
	}

	draft.Status = model.PostPublished
	if err := db.UpdatePost(context.Background(), draft); err != nil {
		t.Fatalf("UpdatePost() error = %v", err)
	}

	ids := walkFeed(t, db, repository.FeedQuery{}, 10)
	if len(ids) != 1 || ids[0] != draft.ID {
		t.Fatalf("feed = %v, want [%s] after publishing", ids, draft.ID)
	}
}

func TestListPosts_Summary(t *testing.T) {
	db := newTestDB(t)
	ada := createTestUser(t, db, "ada")
	bob := createTestUser(t, db, "bob")
	p := createTestPost(t, db, ada.ID, "hello", model.PostPublished)

	c := createTestComment(t, db, bob.ID, p.ID, nil, "nice")
	createTestComment(t, db, ada.ID, p.ID, &c.ID, "thanks")
	if _, err := db.TogglePostLike(context.Background(), bob.ID, p.ID); err != nil {
		t.Fatalf("TogglePostLike() error = %v", err)
	}

	rows, err := db.ListPosts(context.Background(), repository.FeedQuery{Limit: 10})
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListPosts() = %v, %v", rows, err)
	}

	got := rows[0].Post
	if got.CommentCount != 2 || got.LikeCount != 1 {
		t.Errorf("counts = %d comments, %d likes; want 2, 1", got.CommentCount, got.LikeCount)
	}
	if got.Author.ID != ada.ID || got.Author.Username != "ada" || got.Author.Img != ada.Img {
		t.Errorf("Author = %+v", got.Author)
	}
	if got.PublishedAt == nil {
		t.Error("PublishedAt is nil for a published post")
	}
	if len(got.Tags) != 1 || got.Tags[0] != "go" {
		t.Errorf("Tags = %v, want [go]", got.Tags)
	}
}

func TestListPosts_TagsNeverNil(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "ada")
	p := &model.Post{AuthorID: u.ID, Title: "t", Paragraph: "p", Status: model.PostPublished}
	if err := db.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	rows, _ := db.ListPosts(context.Background(), repository.FeedQuery{Limit: 10})
	if rows[0].Post.Tags == nil {
		t.Error("Tags is nil, want empty slice")
	}
}

func TestListPosts_Author(t *testing.T) {
	db := newTestDB(t)
	ada := createTestUser(t, db, "ada")
	bob := createTestUser(t, db, "bob")
	createTestPost(t, db, ada.ID, "ada published", model.PostPublished)
	createTestPost(t, db, ada.ID, "ada draft", model.PostDraft)
	createTestPost(t, db, bob.ID, "bob published", model.PostPublished)

	public := walkFeed(t, db, repository.FeedQuery{AuthorID: ada.ID}, 10)
	if len(public) != 1 {
		t.Errorf("public author list has %d posts, want 1", len(public))
	}

	own := walkFeed(t, db, repository.FeedQuery{AuthorID: ada.ID, IncludeDrafts: true}, 10)
	if len(own) != 2 {
		t.Errorf("own author list has %d posts, want 2", len(own))
	}

	// IncludeDrafts without an author is ignored.
	all := walkFeed(t, db, repository.FeedQuery{IncludeDrafts: true}, 10)
	if len(all) != 2 {
		t.Errorf("feed with IncludeDrafts has %d posts, want 2", len(all))
	}
}

func TestPostKey(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "ada")
	setClock(db, t0)
	p := createTestPost(t, db, u.ID, "p", model.PostPublished)

	key, err := db.PostKey(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("PostKey() error = %v", err)
	}
	if key.ID != p.ID || !key.CreatedAt.Equal(t0) {
		t.Errorf("PostKey() = %+v", key)
	}

	if _, err := db.PostKey(context.Background(), "nope"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("PostKey(unknown) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// SAVED POSTS
// =========================================================================

func TestListSavedPosts_NewestSaveFirst(t *testing.T) {
	db := newTestDB(t)
	ada := createTestUser(t, db, "ada")
	bob := createTestUser(t, db, "bob")

	tickClock(db, t0)
	older := createTestPost(t, db, ada.ID, "older", model.PostPublished)
	newer := createTestPost(t, db, ada.ID, "newer", model.PostPublished)
	draft := createTestPost(t, db, ada.ID, "draft", model.PostDraft)

	// Save the newer post first, so save order differs from post order.
	for _, id := range []string{newer.ID, older.ID} {
		if _, err := db.ToggleSave(context.Background(), bob.ID, id); err != nil {
			t.Fatalf("ToggleSave() error = %v", err)
		}
	}
	if _, err := db.ToggleSave(context.Background(), bob.ID, draft.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("ToggleSave(draft) error = %v, want ErrNotFound", err)
	}

	rows, err := db.ListSavedPosts(context.Background(), bob.ID, nil, 10)
	if err != nil {
		t.Fatalf("ListSavedPosts() error = %v", err)
	}
	if len(rows) != 2 || rows[0].Post.ID != older.ID || rows[1].Post.ID != newer.ID {
		t.Fatalf("saved order = %v, want [older newer]", rows)
	}

	after := rows[0].Key
	rest, err := db.ListSavedPosts(context.Background(), bob.ID, &after, 10)
	if err != nil {
		t.Fatalf("ListSavedPosts(after) error = %v", err)
	}
	if len(rest) != 1 || rest[0].Post.ID != newer.ID {
		t.Errorf("second page = %v, want [newer]", rest)
	}

	key, err := db.SavedKey(context.Background(), bob.ID, older.ID)
	if err != nil || key.ID != after.ID || !key.CreatedAt.Equal(after.CreatedAt) {
		t.Errorf("SavedKey() = %+v, %v; want %+v", key, err, after)
	}
	if _, err := db.SavedKey(context.Background(), ada.ID, older.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("SavedKey(not saved) error = %v, want ErrNotFound", err)
	}
}
