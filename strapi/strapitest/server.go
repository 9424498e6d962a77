// Package strapitest provides an in-memory Strapi backend for tests. It
// serves the collection endpoints the site reads, honoring equality filters,
// publishedAt sorting and both pagination styles, in either record shape.
package strapitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Post is a fixture blog post. Category and Tags hold slugs.
type Post struct {
	ID          int
	Title       string
	Slug        string
	Excerpt     string
	Content     string
	PublishedAt time.Time
	Featured    bool
	ViewCount   int
	Cover       string
	Category    string
	Tags        []string
}

// Category is a fixture category.
type Category struct {
	ID          int
	Slug        string
	Name        string
	Icon        string
	Description string
}

// Tag is a fixture tag.
type Tag struct {
	ID   int
	Slug string
	Name string
}

// Hero is the fixture banner.
type Hero struct {
	Title       string
	Description string
	CTALabel    string
	CTALink     string
}

// Server is a fake Strapi backend. Fields may be set before the first request.
type Server struct {
	*httptest.Server

	// Nested selects the attributes/data envelope shape instead of flat records.
	Nested bool
	// IgnoreSort returns posts in insertion order regardless of the sort parameter.
	IgnoreSort bool

	mu          sync.Mutex
	posts       []Post
	categories  []Category
	tags        []Tag
	hero        *Hero
	status      int
	rawBody     string
	submissions map[string][]map[string]any
	requests    []string
}

// NewServer starts a fake backend. Close it when done.
func NewServer() *Server {
	s := &Server{submissions: map[string][]map[string]any{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/hero", s.handleHero)
	mux.HandleFunc("/api/blog-posts", s.handlePosts)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/tags", s.handleTags)
	mux.HandleFunc("/api/subscribers", s.handleCreate("subscribers"))
	mux.HandleFunc("/api/contact-messages", s.handleCreate("contact-messages"))
	mux.HandleFunc("/_health", func(w http.ResponseWriter, r *http.Request) {
		if s.intercept(w, r) {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	s.Server = httptest.NewServer(mux)
	return s
}

// AddPosts appends post fixtures.
func (s *Server) AddPosts(posts ...Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, posts...)
}

// AddCategories appends category fixtures.
func (s *Server) AddCategories(cats ...Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, cats...)
}

// AddTags appends tag fixtures.
func (s *Server) AddTags(tags ...Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, tags...)
}

// SetHero sets the banner returned by /api/hero.
func (s *Server) SetHero(h Hero) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hero = &h
}

// FailWith makes every endpoint answer with status. Zero restores normal service.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// ServeRaw makes every endpoint answer 200 with body verbatim. Empty restores normal service.
func (s *Server) ServeRaw(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawBody = body
}

// Submissions returns the data objects posted to a collection, e.g. "subscribers".
func (s *Server) Submissions(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.submissions[collection]...)
}

// Requests returns the request URIs seen so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) intercept(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.RequestURI())
	status, raw := s.status, s.rawBody
	s.mu.Unlock()
	if status != 0 {
		http.Error(w, `{"error":{"status":`+strconv.Itoa(status)+`}}`, status)
		return true
	}
	if raw != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(raw))
		return true
	}
	return false
}

func (s *Server) handleHero(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	s.mu.Lock()
	hero := s.hero
	s.mu.Unlock()
	if hero == nil {
		http.Error(w, `{"data":null,"error":{"status":404}}`, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"data": s.entity(1, map[string]any{
		"title":       hero.Title,
		"description": hero.Description,
		"ctaLabel":    hero.CTALabel,
		"ctaLink":     hero.CTALink,
	})})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	q := r.URL.Query()
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []Post
	for _, p := range s.posts {
		if postMatches(p, q) {
			matched = append(matched, p)
		}
	}

	if q.Get("sort") == "publishedAt:desc" && !s.IgnoreSort {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].PublishedAt.After(matched[j].PublishedAt)
		})
	}

	page, meta := paginate(len(matched), q)
	data := make([]any, 0, len(matched))
	for _, p := range matched[page.start:page.end] {
		data = append(data, s.post(p))
	}
	writeJSON(w, map[string]any{"data": data, "meta": map[string]any{"pagination": meta}})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	q := r.URL.Query()
	s.mu.Lock()
	defer s.mu.Unlock()
	withCount := q.Get("populate[blog_posts][count]") == "true"
	data := []any{}
	for _, c := range s.categories {
		if slug := q.Get("filters[slug][$eq]"); slug != "" && c.Slug != slug {
			continue
		}
		attrs := map[string]any{
			"name":        c.Name,
			"slug":        c.Slug,
			"icon":        c.Icon,
			"description": c.Description,
		}
		if withCount {
			n := 0
			for _, p := range s.posts {
				if p.Category == c.Slug {
					n++
				}
			}
			if s.Nested {
				attrs["blog_posts"] = map[string]any{"data": map[string]any{"attributes": map[string]any{"count": n}}}
			} else {
				attrs["blog_posts"] = map[string]any{"count": n}
			}
		}
		data = append(data, s.entity(c.ID, attrs))
	}
	writeJSON(w, map[string]any{"data": data, "meta": map[string]any{"pagination": map[string]any{
		"page": 1, "pageSize": 25, "pageCount": 1, "total": len(data),
	}}})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	q := r.URL.Query()
	s.mu.Lock()
	defer s.mu.Unlock()
	data := []any{}
	for _, t := range s.tags {
		if slug := q.Get("filters[slug][$eq]"); slug != "" && t.Slug != slug {
			continue
		}
		data = append(data, s.entity(t.ID, map[string]any{"name": t.Name, "slug": t.Slug}))
	}
	writeJSON(w, map[string]any{"data": data})
}

func (s *Server) handleCreate(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.intercept(w, r) {
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Data map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Data == nil {
			http.Error(w, `{"error":{"status":400}}`, http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.submissions[collection] = append(s.submissions[collection], body.Data)
		id := len(s.submissions[collection])
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": s.entity(id, body.Data)})
	}
}

// entity renders a record in the configured shape.
func (s *Server) entity(id int, attrs map[string]any) map[string]any {
	if s.Nested {
		return map[string]any{"id": id, "attributes": attrs}
	}
	out := map[string]any{"id": id, "documentId": "doc" + strconv.Itoa(id)}
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// relation wraps v the way the configured shape carries relations.
func (s *Server) relation(v any) any {
	if s.Nested {
		return map[string]any{"data": v}
	}
	return v
}

func (s *Server) post(p Post) map[string]any {
	attrs := map[string]any{
		"title":       p.Title,
		"slug":        p.Slug,
		"excerpt":     p.Excerpt,
		"content":     p.Content,
		"publishedAt": p.PublishedAt.UTC().Format(time.RFC3339Nano),
		"featured":    p.Featured,
		"viewCount":   p.ViewCount,
	}
	if p.Cover != "" {
		attrs["coverImage"] = s.relation(s.entity(p.ID*100, map[string]any{"url": p.Cover}))
	} else {
		attrs["coverImage"] = s.relation(nil)
	}
	attrs["category"] = s.relation(nil)
	for _, c := range s.categories {
		if c.Slug == p.Category {
			attrs["category"] = s.relation(s.entity(c.ID, map[string]any{"name": c.Name, "slug": c.Slug, "icon": c.Icon}))
		}
	}
	tags := []any{}
	for _, slug := range p.Tags {
		for _, t := range s.tags {
			if t.Slug == slug {
				tags = append(tags, s.entity(t.ID, map[string]any{"name": t.Name, "slug": t.Slug}))
			}
		}
	}
	attrs["tags"] = s.relation(tags)
	return s.entity(p.ID, attrs)
}

func postMatches(p Post, q map[string][]string) bool {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	if v := get("filters[slug][$eq]"); v != "" && p.Slug != v {
		return false
	}
	if v := get("filters[featured][$eq]"); v != "" && strconv.FormatBool(p.Featured) != v {
		return false
	}
	if v := get("filters[category][slug][$eq]"); v != "" && p.Category != v {
		return false
	}
	if v := get("filters[tags][slug][$eq]"); v != "" {
		found := false
		for _, t := range p.Tags {
			if t == v {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type window struct{ start, end int }

// paginate applies pagination[limit] or pagination[page]/[pageSize]
// (default page 1 of 25) and returns the matching meta object.
func paginate(total int, q map[string][]string) (window, map[string]any) {
	atoi := func(k string, def int) int {
		if v := q[k]; len(v) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(v[0])); err == nil {
				return n
			}
		}
		return def
	}
	clamp := func(n int) int {
		if n < 0 {
			return 0
		}
		if n > total {
			return total
		}
		return n
	}
	if limit := atoi("pagination[limit]", -1); limit >= 0 {
		return window{0, clamp(limit)}, map[string]any{"start": 0, "limit": limit, "total": total}
	}
	page := atoi("pagination[page]", 1)
	size := atoi("pagination[pageSize]", 25)
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 25
	}
	pageCount := (total + size - 1) / size
	start := clamp((page - 1) * size)
	return window{start, clamp(start + size)}, map[string]any{
		"page": page, "pageSize": size, "pageCount": pageCount, "total": total,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
