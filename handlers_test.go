package cmsblog

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/cmsblog/strapi/strapitest"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seed adds n posts where post i (1-based) is the i-th newest. Odd posts are
// in "go", even posts in "web"; every third post is also tagged "news".
func seed(srv *strapitest.Server, n int) {
	srv.AddCategories(
		strapitest.Category{ID: 1, Slug: "go", Name: "Go", Icon: "🐹"},
		strapitest.Category{ID: 2, Slug: "web", Name: "Web"},
	)
	srv.AddTags(
		strapitest.Tag{ID: 1, Slug: "tips", Name: "Tips"},
		strapitest.Tag{ID: 2, Slug: "news", Name: "News"},
	)
	for i := 1; i <= n; i++ {
		cat := "go"
		if i%2 == 0 {
			cat = "web"
		}
		tags := []string{"tips"}
		if i%3 == 0 {
			tags = append(tags, "news")
		}
		srv.AddPosts(strapitest.Post{
			ID:          i,
			Title:       "Post " + strconv.Itoa(i),
			Slug:        "post-" + strconv.Itoa(i),
			Excerpt:     "Excerpt " + strconv.Itoa(i),
			Content:     "Body " + strconv.Itoa(i),
			PublishedAt: base.Add(-time.Duration(i) * time.Hour),
			Featured:    i == 4,
			Category:    cat,
			Tags:        tags,
		})
	}
}

func newTestApp(t *testing.T, srv *strapitest.Server, cfg SiteConfig, opts ...Option) *App {
	t.Helper()
	cfg.URL = "https://example.com"
	cfg.StrapiURL = srv.URL
	cfg.DatabasePath = filepath.Join(t.TempDir(), "journal.db")
	cfg.SessionSecret = "test-session-secret"
	a := New(cfg, ViewFuncs{}, append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func get(a *App, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

const testCSRF = "test-csrf-token"

// postForm submits form with a matching CSRF cookie and token, plus any
// cookies from earlier responses.
func postForm(a *App, target string, form url.Values, cookies []*http.Cookie, header ...string) *httptest.ResponseRecorder {
	form.Set("_csrf", testCSRF)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: testCSRF})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func getWithCookies(a *App, target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func sessionCookies(rec *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name != "_csrf" {
			out = append(out, c)
		}
	}
	return out
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body:\n%s", rec.Code, want, rec.Body.String())
	}
}

func assertBody(t *testing.T, rec *httptest.ResponseRecorder, wants ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func assertNotBody(t *testing.T, rec *httptest.ResponseRecorder, unwanted ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, s := range unwanted {
		if strings.Contains(body, s) {
			t.Errorf("body unexpectedly contains %q", s)
		}
	}
}

func TestHomePage(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	seed(srv, 8)
	srv.SetHero(strapitest.Hero{Title: "Field Notes", Description: "Writing about Go", CTALabel: "Start reading", CTALink: "/blog/"})
	a := newTestApp(t, srv, SiteConfig{Name: "Notes", RecentPosts: 3})

	rec := get(a, "/")
	assertStatus(t, rec, http.StatusOK)
	assertBody(t, rec,
		"Field Notes",
		"Writing about Go",
		"Start reading",
		"Featured Post",
		`href="/blog/post-4/"`,
		`href="/blog/post-1/"`,
		`href="/blog/post-3/"`,
		`href="/category/go/"`,
		`"@type":"WebSite"`,
		`name="_csrf"`,
	)
	assertNotBody(t, rec, `href="/blog/post-5/"`)
	if cc := rec.Header().Get("Cache-Control"); cc != "private, no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestHomeFallsBackWhenBackendFails(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})
	srv.FailWith(http.StatusInternalServerError)

	rec := get(a, "/")
	assertStatus(t, rec, http.StatusOK)
	assertBody(t, rec, html.EscapeString(a.Copy.Hero.Title), html.EscapeString(a.Copy.Fallbacks.NoPosts))
	assertNotBody(t, rec, "Featured Post", "Browse by Category")
}

func TestBlogListPagination(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	seed(srv, 25)
	a := newTestApp(t, srv, SiteConfig{})

	rec := get(a, "/blog/?page=2")
	assertStatus(t, rec, http.StatusOK)
	assertBody(t, rec, `href="/blog/post-11/"`, `href="/blog/post-20/"`, `href="/blog/?page=3"`, `aria-current="page">2<`)
	assertNotBody(t, rec, `href="/blog/post-10/"`, `href="/blog/post-21/"`)

	partial := get(a, "/blog/?page=3", "HX-Request", "true")
	assertStatus(t, partial, http.StatusOK)
	assertBody(t, partial, `href="/blog/post-21/"`, `href="/blog/post-25/"`)
	assertNotBody(t, partial, "<html")

	invalid := get(a, "/blog/?page=abc")
	assertBody(t, invalid, `href="/blog/post-1/"`)
}

func TestPostPage(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	seed(srv, 6)
	a := newTestApp(t, srv, SiteConfig{})

	rec := get(a, "/blog/post-3/")
	assertStatus(t, rec, http.StatusOK)
	assertBody(t, rec,
		"<h1>Post 3</h1>",
		"<p>Body 3</p>",
		`"@type":"BlogPosting"`,
		`<meta property="og:type" content="article">`,
		`<link rel="canonical" href="https://example.com/blog/post-3/">`,
		"Related Posts",
		`href="/tag/news/"`,
	)

	missing := get(a, "/blog/nope/")
	assertStatus(t, missing, http.StatusNotFound)
	assertBody(t, missing, "Page not found")
}

func TestTaxonomyPages(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	seed(srv, 6)
	a := newTestApp(t, srv, SiteConfig{})

	cats := get(a, "/categories/")
	assertStatus(t, cats, http.StatusOK)
	assertBody(t, cats, "3 posts", `href="/category/web/"`, "🐹")

	cat := get(a, "/category/go/")
	assertStatus(t, cat, http.StatusOK)
	assertBody(t, cat, `href="/blog/post-1/"`, `href="/blog/post-5/"`)
	assertNotBody(t, cat, `href="/blog/post-2/"`)

	tag := get(a, "/tag/news/")
	assertStatus(t, tag, http.StatusOK)
	assertBody(t, tag, "#News", "2 posts tagged", `href="/blog/post-3/"`, `href="/blog/post-6/"`)

	assertStatus(t, get(a, "/category/missing/"), http.StatusNotFound)
	assertStatus(t, get(a, "/tag/missing/"), http.StatusNotFound)
}

func TestSearch(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	seed(srv, 5)
	a := newTestApp(t, srv, SiteConfig{})

	page := get(a, "/search/?q=Excerpt+2")
	assertStatus(t, page, http.StatusOK)
	assertBody(t, page, `name="q" value="Excerpt 2"`, `data-query="Excerpt 2"`, `href="/blog/post-2/"`, "<html")

	frag := get(a, "/search/?open=1&q=body", "HX-Request", "true")
	assertStatus(t, frag, http.StatusOK)
	assertNotBody(t, frag, "<html")
	if n := strings.Count(frag.Body.String(), "data-search-select"); n != 5 {
		t.Errorf("results = %d, want 5", n)
	}

	none := get(a, "/search/?open=1&q=zzz", "HX-Request", "true")
	assertBody(t, none, a.Copy.Fallbacks.NoResults)

	empty := get(a, "/search/?open=1&q=+", "HX-Request", "true")
	if strings.TrimSpace(empty.Body.String()) != "" {
		t.Errorf("blank query fragment = %q, want empty", empty.Body.String())
	}
}

func TestSearchBoxFollowsOpenParam(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})

	assertBody(t, get(a, "/about/"), `aria-expanded="false"`)
	assertBody(t, get(a, "/about/?open=1"), `aria-expanded="true"`, "data-open")
}

func TestContactSubmit(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})

	form := url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"Hello"}}
	rec := postForm(a, "/contact/", form, nil)
	assertStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/contact/" {
		t.Fatalf("Location = %q, want /contact/", loc)
	}

	subs := srv.Submissions("contact-messages")
	if len(subs) != 1 || subs[0]["email"] != "ada@example.com" || subs[0]["name"] != "Ada" {
		t.Fatalf("backend submissions = %v", subs)
	}
	journal, err := a.Store.ListSubmissions(KindContact, 0)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(journal) != 1 || !journal[0].Delivered || journal[0].Message != "Hello" {
		t.Fatalf("journal = %+v", journal)
	}

	next := getWithCookies(a, "/contact/", sessionCookies(rec))
	assertStatus(t, next, http.StatusOK)
	assertBody(t, next, "flash-success", html.EscapeString(a.Copy.Contact.Success))
}

func TestContactSubmitInvalid(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})

	form := url.Values{"name": {"Ada"}, "email": {"not-an-email"}, "message": {"Hello"}}
	rec := postForm(a, "/contact/", form, nil)
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertBody(t, rec, "email address is invalid", `value="Ada"`)
	if n := len(srv.Submissions("contact-messages")); n != 0 {
		t.Errorf("backend submissions = %d, want 0", n)
	}
}

func TestContactSubmitBackendFailure(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})
	srv.FailWith(http.StatusServiceUnavailable)

	form := url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"Hello"}}
	rec := postForm(a, "/contact/", form, nil)
	assertStatus(t, rec, http.StatusSeeOther)

	journal, err := a.Store.ListSubmissions(KindContact, 0)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(journal) != 1 || journal[0].Delivered {
		t.Fatalf("journal = %+v, want one undelivered entry", journal)
	}

	srv.FailWith(0)
	next := getWithCookies(a, "/contact/", sessionCookies(rec))
	assertBody(t, next, "flash-error", html.EscapeString(a.Copy.Contact.Failure))
}

func TestNewsletterSubmit(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})

	rec := postForm(a, "/newsletter/", url.Values{"email": {"reader@example.com"}}, nil,
		"Referer", "http://example.com/blog/")
	assertStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/blog/" {
		t.Errorf("Location = %q, want /blog/", loc)
	}
	subs := srv.Submissions("subscribers")
	if len(subs) != 1 || subs[0]["email"] != "reader@example.com" {
		t.Fatalf("backend submissions = %v", subs)
	}

	bad := postForm(a, "/newsletter/", url.Values{"email": {"nope"}}, nil, "Referer", "https://evil.example/")
	assertStatus(t, bad, http.StatusSeeOther)
	if loc := bad.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	if n := len(srv.Submissions("subscribers")); n != 1 {
		t.Errorf("backend submissions = %d, want 1", n)
	}
}

func TestLocalReferer(t *testing.T) {
	tests := []struct {
		name    string
		referer string
		want    string
	}{
		{"empty", "", "/"},
		{"same host", "http://example.com/blog/", "/blog/"},
		{"same host https", "https://example.com/tag/go/?page=2", "/tag/go/?page=2"},
		{"host only", "https://example.com", "/"},
		{"other host", "https://evil.test/x", "/"},
		{"host prefix", "http://example.com.evil.test/x", "/"},
		{"protocol relative path", "http://example.com//evil.test/x", "/"},
		{"backslash path", "http://example.com/\\evil.test/x", "/"},
		{"relative", "/about/", "/about/"},
		{"relative protocol relative", "//evil.test/x", "/"},
		{"relative backslash", "/\\evil.test", "/"},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/newsletter/", nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			c := e.NewContext(req, httptest.NewRecorder())
			if got := localReferer(c); got != tt.want {
				t.Errorf("localReferer(%q) = %q, want %q", tt.referer, got, tt.want)
			}
		})
	}
}

func TestNewsletterRedirectStaysOnSite(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})

	rec := postForm(a, "/newsletter/", url.Values{"email": {"reader@example.com"}}, nil,
		"Referer", "http://example.com//evil.test/x")
	assertStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
}

func TestFormsAreRateLimited(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	limiter := NewWindowLimiter(1, time.Minute)
	a := newTestApp(t, srv, SiteConfig{}, WithLimiter(limiter))
	defer limiter.Close()

	form := url.Values{"email": {"reader@example.com"}}
	assertStatus(t, postForm(a, "/newsletter/", form, nil), http.StatusSeeOther)
	assertStatus(t, postForm(a, "/newsletter/", form, nil), http.StatusTooManyRequests)
	if n := len(srv.Submissions("subscribers")); n != 1 {
		t.Errorf("backend submissions = %d, want 1", n)
	}
}

func TestFormsRequireCSRF(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})

	req := httptest.NewRequest(http.MethodPost, "/newsletter/", strings.NewReader("email=a%40b.co"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	if rec.Code == http.StatusSeeOther {
		t.Fatalf("POST without CSRF token was accepted")
	}
	if n := len(srv.Submissions("subscribers")); n != 0 {
		t.Errorf("backend submissions = %d, want 0", n)
	}
}

func TestHealthProbes(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})

	live := get(a, "/healthz")
	assertStatus(t, live, http.StatusOK)
	var body HealthResponse
	if err := json.Unmarshal(live.Body.Bytes(), &body); err != nil || body.Status != "ok" {
		t.Fatalf("healthz body = %s (%v)", live.Body.String(), err)
	}

	ready := get(a, "/readyz")
	assertStatus(t, ready, http.StatusOK)

	srv.FailWith(http.StatusBadGateway)
	down := get(a, "/readyz")
	assertStatus(t, down, http.StatusServiceUnavailable)
	if err := json.Unmarshal(down.Body.Bytes(), &body); err != nil {
		t.Fatalf("readyz body: %v", err)
	}
	if !strings.HasPrefix(body.Checks["strapi"], "error") || body.Checks["sqlite"] != "ok" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestFeedSitemapRobots(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	seed(srv, 3)
	a := newTestApp(t, srv, SiteConfig{Name: "Notes"})

	feed := get(a, "/feed.xml")
	assertStatus(t, feed, http.StatusOK)
	if ct := feed.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	assertBody(t, feed, `<rss version="2.0">`, "<title>Notes</title>",
		"<link>https://example.com/blog/post-1/</link>", "<description>Excerpt 1</description>", "<category>Go</category>")

	sitemap := get(a, "/sitemap.xml")
	assertStatus(t, sitemap, http.StatusOK)
	assertBody(t, sitemap,
		"<loc>https://example.com/</loc>",
		"<loc>https://example.com/about/</loc>",
		"<loc>https://example.com/blog/post-3/</loc>",
		"<lastmod>2024-06-01</lastmod>",
		"<loc>https://example.com/category/web/</loc>",
	)

	robots := get(a, "/robots.txt")
	assertStatus(t, robots, http.StatusOK)
	assertBody(t, robots, "Disallow: /admin/", "Sitemap: https://example.com/sitemap.xml")
}

func TestPublicAssets(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})

	for _, path := range []string{"/public/site.js", "/public/site.css", "/public/placeholder-blog.svg"} {
		rec := get(a, path)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}
	assertBody(t, get(a, "/public/site.js"), "HX-Request")
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})

	rec := get(a, "/no/such/page/")
	assertStatus(t, rec, http.StatusNotFound)
	assertBody(t, rec, "Page not found")
}

func TestAdminJournal(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{AdminPassword: "s3cret"})

	saved, err := a.Store.SaveSubmission(Submission{Kind: KindNewsletter, Email: "reader@example.com", Delivered: true})
	if err != nil {
		t.Fatalf("SaveSubmission: %v", err)
	}

	login := get(a, "/admin/")
	assertStatus(t, login, http.StatusOK)
	assertBody(t, login, `name="password"`)

	wrong := postForm(a, "/admin/login/", url.Values{"password": {"nope"}}, nil)
	assertStatus(t, wrong, http.StatusUnauthorized)
	assertBody(t, wrong, "Invalid password.")

	ok := postForm(a, "/admin/login/", url.Values{"password": {"s3cret"}}, nil)
	assertStatus(t, ok, http.StatusSeeOther)
	cookies := sessionCookies(ok)

	journal := getWithCookies(a, "/admin/", cookies)
	assertStatus(t, journal, http.StatusOK)
	assertBody(t, journal, "reader@example.com", "/admin/submissions/"+saved.ID+"/delete/")
	if cc := journal.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}

	del := postForm(a, "/admin/submissions/"+saved.ID+"/delete/", url.Values{}, cookies)
	assertStatus(t, del, http.StatusSeeOther)
	if _, err := a.Store.GetSubmission(saved.ID); err != ErrNotFound {
		t.Errorf("GetSubmission after delete = %v, want ErrNotFound", err)
	}

	anon := postForm(a, "/admin/submissions/"+saved.ID+"/delete/", url.Values{}, nil)
	assertStatus(t, anon, http.StatusSeeOther)
	if loc := anon.Header().Get("Location"); loc != "/admin/" {
		t.Errorf("Location = %q, want /admin/", loc)
	}
}

func TestAdminRefreshSearch(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	seed(srv, 2)
	a := newTestApp(t, srv, SiteConfig{AdminPassword: "s3cret"})

	search := func() *httptest.ResponseRecorder {
		return get(a, "/search/?open=1&q=fresh", "HX-Request", "true")
	}
	assertBody(t, search(), a.Copy.Fallbacks.NoResults)

	srv.AddPosts(strapitest.Post{ID: 99, Title: "Fresh Post", Slug: "fresh", PublishedAt: base.Add(time.Hour)})
	assertNotBody(t, search(), `href="/blog/fresh/"`)

	anon := postForm(a, "/admin/search/refresh/", url.Values{}, nil)
	assertStatus(t, anon, http.StatusSeeOther)
	assertNotBody(t, search(), `href="/blog/fresh/"`)

	login := postForm(a, "/admin/login/", url.Values{"password": {"s3cret"}}, nil)
	assertStatus(t, login, http.StatusSeeOther)
	rec := postForm(a, "/admin/search/refresh/", url.Values{}, sessionCookies(login))
	assertStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "refreshed") {
		t.Errorf("Location = %q", loc)
	}
	assertBody(t, search(), `href="/blog/fresh/"`)
}

func TestAdminDisabledWithoutPassword(t *testing.T) {
	srv := strapitest.NewServer()
	defer srv.Close()
	a := newTestApp(t, srv, SiteConfig{})

	assertStatus(t, get(a, "/admin/"), http.StatusNotFound)
}
