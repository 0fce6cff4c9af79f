// Package pagination implements the opaque keyset cursor used by every
// paginated list (feed, author posts, saved posts).
//
// KEYSET PAGINATION:
// Lists are ordered by (created_at DESC, id DESC). A cursor is the sort key
// of the last row the client has seen; the next page is every row strictly
// after that key:
//
//	WHERE created_at < :at OR (created_at = :at AND id < :id)
//
// Unlike OFFSET this never skips or repeats rows when new posts arrive at
// the head of the list, and the id tie-break makes the order total even
// when two posts share a timestamp.
//
// The key is encoded as base64url("<unix micros>.<id>") so clients treat it
// as an opaque string.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// ErrInvalidCursor is returned by Decode for strings it did not produce.
var ErrInvalidCursor = errors.New("pagination: invalid cursor")

// Cursor is the sort key of the last row of a page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode returns the opaque string form of c.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixMicro(), 10) + "." + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a string produced by Encode.
func Decode(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	micros, id, ok := strings.Cut(string(raw), ".")
	if !ok || id == "" {
		return Cursor{}, ErrInvalidCursor
	}

	us, err := strconv.ParseInt(micros, 10, 64)
	if err != nil || us < 0 {
		return Cursor{}, ErrInvalidCursor
	}

	return Cursor{CreatedAt: time.UnixMicro(us).UTC(), ID: id}, nil
}

// ClampLimit applies the default and the upper bound to a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Page trims a result fetched with limit+1 rows down to limit and reports
// whether the extra row existed. Fetching one row more than the page size
// makes hasMore exact: a page that ends exactly at the last row reports
// hasMore=false instead of inviting one empty trailing request.
func Page[T any](rows []T, limit int) (page []T, hasMore bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}
