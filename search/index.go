// Package search implements the search-as-you-type box: a linear substring
// index over a bounded, read-only snapshot of posts, the snapshot loader that
// refreshes it, and the open/closed widget state machine.
package search

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/eringen/cmsblog/content"
)

// DefaultLimit is the number of results returned when no limit is set.
const DefaultLimit = 5

// Index matches queries against the title, excerpt and body of a fixed set
// of posts. It is immutable once built.
type Index struct {
	posts    []content.Post
	haystack []string
	limit    int
}

// NewIndex builds an index over posts, keeping their order. A limit of zero
// or less means DefaultLimit.
func NewIndex(posts []content.Post, limit int) *Index {
	if limit <= 0 {
		limit = DefaultLimit
	}
	fold := cases.Fold()
	idx := &Index{
		posts:    posts,
		haystack: make([]string, len(posts)),
		limit:    limit,
	}
	for i, p := range posts {
		idx.haystack[i] = fold.String(p.Title + " " + p.Excerpt + " " + p.Body)
	}
	return idx
}

// Len returns the number of indexed posts.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.posts)
}

// Posts returns the indexed posts in snapshot order.
func (i *Index) Posts() []content.Post {
	if i == nil {
		return nil
	}
	return i.posts
}

// Query returns up to the index limit of posts whose text contains q,
// ignoring case, in snapshot order. A blank query matches nothing; otherwise
// q is matched as given, surrounding spaces included.
func (i *Index) Query(q string) []content.Post {
	out := []content.Post{}
	if i == nil || strings.TrimSpace(q) == "" {
		return out
	}
	needle := cases.Fold().String(q)
	for n, text := range i.haystack {
		if strings.Contains(text, needle) {
			out = append(out, i.posts[n])
			if len(out) == i.limit {
				break
			}
		}
	}
	return out
}
