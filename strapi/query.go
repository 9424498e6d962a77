package strapi

import (
	"net/url"
	"strconv"
	"strings"
)

// Query builds the bracketed query parameters understood by the Strapi REST
// API, for example filters[slug][$eq]=hello or pagination[page]=2.
type Query struct {
	values url.Values
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{values: url.Values{}}
}

// PopulateAll asks the backend to expand every first-level relation.
func (q *Query) PopulateAll() *Query {
	q.values.Set("populate", "*")
	return q
}

// PopulateCount asks for the size of relation instead of its contents.
func (q *Query) PopulateCount(relation string) *Query {
	q.values.Set("populate["+relation+"][count]", "true")
	return q
}

// Eq adds an equality filter. path is the dotted field path, e.g.
// "category.slug" becomes filters[category][slug][$eq].
func (q *Query) Eq(path, value string) *Query {
	q.values.Set("filters"+brackets(path)+"[$eq]", value)
	return q
}

// Sort sets the sort expression, e.g. "publishedAt:desc".
func (q *Query) Sort(expr string) *Query {
	q.values.Set("sort", expr)
	return q
}

// Limit caps the number of returned entries without page metadata.
func (q *Query) Limit(n int) *Query {
	q.values.Set("pagination[limit]", strconv.Itoa(n))
	return q
}

// Page selects a 1-based page of size entries.
func (q *Query) Page(page, size int) *Query {
	q.values.Set("pagination[page]", strconv.Itoa(page))
	q.values.Set("pagination[pageSize]", strconv.Itoa(size))
	return q
}

// Encode renders the query string. A nil query encodes to "".
func (q *Query) Encode() string {
	if q == nil {
		return ""
	}
	return q.values.Encode()
}

func brackets(path string) string {
	var b strings.Builder
	for _, part := range strings.Split(path, ".") {
		b.WriteString("[" + part + "]")
	}
	return b.String()
}
