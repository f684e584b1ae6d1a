// Package pagination provides cursor-based pagination utilities.
//
// Listings walk ids descending, so a cursor is the id of the last item
// on the previous page; the next page starts strictly below it.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// Encode returns an opaque cursor string for an item id.
func Encode(id uint64) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatUint(id, 10)))
}

// Decode parses an opaque cursor string. Returns 0 for empty input.
func Decode(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor")
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid cursor")
	}
	return id, nil
}

// ComputePage takes a slice of items (fetched with limit+1), the requested
// limit, and a function to extract the id from the last item. Returns the
// trimmed items, next cursor, and has_more flag.
func ComputePage[T any](items []T, limit int, lastID func(T) uint64) ([]T, string, bool) {
	if len(items) <= limit {
		return items, "", false
	}
	items = items[:limit]
	return items, Encode(lastID(items[len(items)-1])), true
}
