package cmsblog

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/cmsblog/content"
	"github.com/eringen/cmsblog/search"
	"github.com/eringen/cmsblog/views"
)

const maxRelatedPosts = 3

func (a *App) siteView() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Author:      a.Config.Author,
	}
}

// absURL resolves a site-relative path against SITE_URL.
func (a *App) absURL(path string) string {
	return strings.TrimRight(a.Config.URL, "/") + path
}

// page builds the chrome shared by every full page. The header search box
// opens when the URL carries ?open=1.
func (a *App) page(c echo.Context, active string, meta views.PageMeta) views.Page {
	if meta.URL == "" {
		meta.URL = a.absURL(c.Request().URL.Path)
	}
	return views.Page{
		Site:   a.siteView(),
		Meta:   meta,
		Copy:   a.Copy,
		Active: active,
		CSRF:   CsrfToken(c),
		Flash:  popFlash(c),
		Search: search.NewWidget(c.QueryParam("open") == "1", c.QueryParam("q")),
	}
}

func (a *App) notFound(c echo.Context) error {
	p := a.page(c, "", views.PageMeta{Title: "Page not found"})
	return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(p))
}

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		hero       *content.Hero
		featured   *content.Post
		recent     []content.Post
		categories []content.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hero = a.Content.FetchHero(gctx)
		return nil
	})
	g.Go(func() error {
		featured = a.Content.FetchFeaturedPost(gctx)
		return nil
	})
	g.Go(func() error {
		recent = a.Content.FetchRecentPosts(gctx, a.Config.RecentPosts)
		return nil
	})
	g.Go(func() error {
		categories = a.Content.FetchCategories(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	p := a.page(c, "/", views.PageMeta{URL: a.absURL("/")})
	p.JSONLD = views.WebsiteJsonLD(a.siteView())
	return Render(c, a.Views.Home(views.HomeData{
		Page:       p,
		Hero:       a.heroView(hero),
		Featured:   featured,
		Recent:     recent,
		Categories: categories,
	}))
}

// heroView prefers the CMS banner and fills gaps from the site copy.
func (a *App) heroView(h *content.Hero) views.HeroView {
	hv := views.HeroView{
		Title:       a.Copy.Hero.Title,
		Description: a.Copy.Hero.Description,
		Primary:     a.Copy.Hero.Primary,
		Secondary:   a.Copy.Hero.Secondary,
	}
	if h == nil {
		return hv
	}
	if h.Title != "" {
		hv.Title = h.Title
	}
	if h.Description != "" {
		hv.Description = h.Description
	}
	if h.CTALabel != "" && h.CTALink != "" {
		hv.Primary.Label = h.CTALabel
		hv.Primary.Href = h.CTALink
	}
	return hv
}

func (a *App) handleBlogList(c echo.Context) error {
	page := pageParam(c)
	posts, pagination := a.Content.FetchAllPosts(c.Request().Context(), page, a.Config.PostsPerPage)
	data := views.BlogListData{
		Page:       a.page(c, "/blog/", views.PageMeta{Title: "Blog"}),
		Posts:      posts,
		Pagination: pagination,
	}
	if isHTMX(c) {
		return Render(c, a.Views.BlogListPartial(data))
	}
	return Render(c, a.Views.BlogList(data))
}

func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	post := a.Content.FetchPostBySlug(ctx, c.Param("slug"))
	if post == nil {
		return a.notFound(c)
	}
	related := views.FilterRelatedPosts(*post, a.Search.Posts(ctx))
	if len(related) > maxRelatedPosts {
		related = related[:maxRelatedPosts]
	}

	cfg := a.siteView()
	p := a.page(c, "/blog/", views.PageMeta{
		Title:       post.Title,
		Description: views.Truncate(views.Summary(*post), 160),
		URL:         BuildURL(a.Config.URL, "blog", post.Slug),
		OGType:      "article",
		Image:       post.CoverURL,
	})
	p.JSONLD = views.BlogPostingJsonLD(cfg, *post)
	return Render(c, a.Views.Post(views.PostData{Page: p, Post: *post, Related: related}))
}

func (a *App) handleCategories(c echo.Context) error {
	categories := a.Content.FetchCategoriesWithCount(c.Request().Context())
	return Render(c, a.Views.Categories(views.CategoriesData{
		Page:       a.page(c, "/categories/", views.PageMeta{Title: "Categories"}),
		Categories: categories,
	}))
}

func (a *App) handleCategory(c echo.Context) error {
	category, posts := a.Content.FetchPostsByCategory(c.Request().Context(), c.Param("slug"))
	if category == nil {
		return a.notFound(c)
	}
	name := category.Name
	if name == "" {
		name = views.TitleFromSlug(category.Slug)
	}
	return Render(c, a.Views.Category(views.CategoryData{
		Page:     a.page(c, "/categories/", views.PageMeta{Title: name, Description: category.Description}),
		Category: *category,
		Posts:    posts,
	}))
}

func (a *App) handleTag(c echo.Context) error {
	tag, posts := a.Content.FetchPostsByTag(c.Request().Context(), c.Param("slug"))
	if tag == nil {
		return a.notFound(c)
	}
	name := tag.Name
	if name == "" {
		name = views.TitleFromSlug(tag.Slug)
	}
	return Render(c, a.Views.Tag(views.TagData{
		Page:  a.page(c, "/blog/", views.PageMeta{Title: "#" + name}),
		Tag:   *tag,
		Posts: posts,
	}))
}

func (a *App) handleAbout(c echo.Context) error {
	return Render(c, a.Views.About(a.page(c, "/about/", views.PageMeta{
		Title:       a.Copy.About.Title,
		Description: a.Copy.About.Intro,
	})))
}

// handleSearch serves the search page, or only the result list when the
// embedded script asks for it while the visitor types.
func (a *App) handleSearch(c echo.Context) error {
	ctx := c.Request().Context()
	p := a.page(c, "", views.PageMeta{Title: "Search"})

	w := p.Search
	if !w.IsOpen() {
		// The search page always shows the box; open it and apply the query.
		w.Toggle()
	}
	if ticket, ok := w.Type(c.QueryParam("q")); ok && w.Query() != "" {
		w.Deliver(ticket, a.Search.Search(ctx, w.Query()))
	}

	data := views.SearchData{Page: p, Query: w.Query(), Results: w.Results()}
	if isHTMX(c) {
		return Render(c, a.Views.SearchResults(data))
	}
	return Render(c, a.Views.Search(data))
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		posts      []content.Post
		categories []content.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		posts = a.Search.Posts(gctx)
		return nil
	})
	g.Go(func() error {
		categories = a.Content.FetchCategories(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return a.renderSitemap(c, posts, categories)
}

func (a *App) handleFeed(c echo.Context) error {
	posts := a.Content.FetchRecentPosts(c.Request().Context(), a.Config.FeedSize)
	return a.renderRSS(c, posts)
}

func (a *App) handleRobots(c echo.Context) error {
	body := "User-agent: *\nDisallow: /admin/\n\nSitemap: " + a.absURL("/sitemap.xml") + "\n"
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = a.notFound(c)
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.log.ErrorContext(c.Request().Context(), "server error", "error", err, "uri", c.Request().RequestURI)
		p := views.Page{Site: a.siteView(), Copy: a.Copy, Meta: views.PageMeta{Title: "Error"}}
		_ = RenderStatus(c, code, a.Views.ServerError(p))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

// warmSearch loads the search snapshot in the background so the first
// visitor to type does not wait on it.
func (a *App) warmSearch(ctx context.Context) {
	go a.Search.Index(ctx)
}
