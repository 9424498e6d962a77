// Package cmsblog is a server-rendered content website built with Go, Echo,
// and templ. Posts, categories, tags and hero copy come from a Strapi
// headless CMS; cmsblog renders the pages, serves search, RSS and sitemap,
// and forwards contact and newsletter submissions back to the CMS.
//
// Sites may supply their own templ components via the ViewFuncs struct;
// cmsblog handles all the handler logic, middleware, and backend calls.
package cmsblog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/eringen/cmsblog/search"
	"github.com/eringen/cmsblog/sitecopy"
	"github.com/eringen/cmsblog/strapi"
	"github.com/eringen/cmsblog/views"
)

// ViewFuncs holds the components the App calls when rendering pages.
// Nil fields fall back to the package views defaults.
type ViewFuncs struct {
	Home            func(views.HomeData) templ.Component
	BlogList        func(views.BlogListData) templ.Component
	BlogListPartial func(views.BlogListData) templ.Component
	Post            func(views.PostData) templ.Component
	Categories      func(views.CategoriesData) templ.Component
	Category        func(views.CategoryData) templ.Component
	Tag             func(views.TagData) templ.Component
	About           func(views.Page) templ.Component
	Contact         func(views.ContactData) templ.Component
	Search          func(views.SearchData) templ.Component
	SearchResults   func(views.SearchData) templ.Component
	AdminLogin      func(views.AdminLoginData) templ.Component
	AdminJournal    func(views.AdminJournalData) templ.Component
	NotFound        func(views.Page) templ.Component
	ServerError     func(views.Page) templ.Component
}

// DefaultViews returns the built-in templates.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:            views.Home,
		BlogList:        views.BlogList,
		BlogListPartial: views.BlogListPartial,
		Post:            views.Post,
		Categories:      views.Categories,
		Category:        views.Category,
		Tag:             views.Tag,
		About:           views.About,
		Contact:         views.Contact,
		Search:          views.Search,
		SearchResults:   views.SearchResults,
		AdminLogin:      views.AdminLogin,
		AdminJournal:    views.AdminJournal,
		NotFound:        views.NotFound,
		ServerError:     views.ServerError,
	}
}

func (v *ViewFuncs) setDefaults() {
	d := DefaultViews()
	if v.Home == nil {
		v.Home = d.Home
	}
	if v.BlogList == nil {
		v.BlogList = d.BlogList
	}
	if v.BlogListPartial == nil {
		v.BlogListPartial = d.BlogListPartial
	}
	if v.Post == nil {
		v.Post = d.Post
	}
	if v.Categories == nil {
		v.Categories = d.Categories
	}
	if v.Category == nil {
		v.Category = d.Category
	}
	if v.Tag == nil {
		v.Tag = d.Tag
	}
	if v.About == nil {
		v.About = d.About
	}
	if v.Contact == nil {
		v.Contact = d.Contact
	}
	if v.Search == nil {
		v.Search = d.Search
	}
	if v.SearchResults == nil {
		v.SearchResults = d.SearchResults
	}
	if v.AdminLogin == nil {
		v.AdminLogin = d.AdminLogin
	}
	if v.AdminJournal == nil {
		v.AdminJournal = d.AdminJournal
	}
	if v.NotFound == nil {
		v.NotFound = d.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = d.ServerError
	}
}

// App is the central cmsblog application. It wires together the content
// client, search snapshot, submission journal, handlers, and middleware.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Content strapi.API
	Search  *search.Snapshot
	Store   *Store
	Copy    sitecopy.Copy
	Views   ViewFuncs

	log          *slog.Logger
	limiter      Limiter
	redis        *redis.Client
	ownRedis     bool
	customRoutes []func(*App)
	initialized  bool
}

// New creates a new App with the given configuration and view functions.
func New(cfg SiteConfig, viewFuncs ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()
	viewFuncs.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  viewFuncs,
		log:    slog.Default(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init builds the content client, snapshot, store, limiter, middleware and
// routes. Start calls it; tests may call it directly and drive a.Echo.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}

	siteCopy, err := sitecopy.Load(a.Config.SiteCopyPath)
	if err != nil {
		return fmt.Errorf("cmsblog: load site copy: %w", err)
	}
	a.Copy = siteCopy

	if a.Content == nil {
		client, err := strapi.New(a.Config.StrapiURL,
			strapi.WithToken(a.Config.StrapiToken),
			strapi.WithTimeout(a.Config.StrapiTimeout),
			strapi.WithLogger(a.log),
		)
		if err != nil {
			return fmt.Errorf("cmsblog: content client: %w", err)
		}
		a.Content = client
	}

	a.Search = search.NewSnapshot(a.Content,
		search.WithSize(a.Config.SearchSnapshotSize),
		search.WithLimit(a.Config.SearchResultLimit),
		search.WithTTL(a.Config.SearchTTL),
		search.WithLogger(a.log),
	)

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("cmsblog: init store: %w", err)
	}
	a.Store = store

	if err := a.setupLimiter(ctx); err != nil {
		return err
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.initialized = true
	return nil
}

func (a *App) setupLimiter(ctx context.Context) error {
	if a.limiter != nil {
		return nil
	}
	if a.redis == nil && a.Config.RedisURL != "" {
		client, err := NewRedisClient(ctx, a.Config.RedisURL)
		if err != nil {
			return fmt.Errorf("cmsblog: connect redis: %w", err)
		}
		a.redis = client
		a.ownRedis = true
	}
	if a.redis != nil {
		a.limiter = NewRedisLimiter(a.redis, a.Config.FormRateLimit, a.Config.FormRateWindow, a.log)
		return nil
	}
	a.limiter = NewWindowLimiter(a.Config.FormRateLimit, a.Config.FormRateWindow)
	return nil
}

// Start initializes the app and serves until ctx is cancelled, then shuts
// the server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}

	a.warmSearch(ctx)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("server starting", "addr", a.Config.Addr, "strapi", a.Config.StrapiURL)
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down", "timeout", a.Config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	return a.Echo.Shutdown(shutdownCtx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	publicFS, _ := fs.Sub(PublicAssets, "public")
	e.StaticFS("/public", publicFS)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/healthz", handleHealthz)
	e.GET("/readyz", a.handleReadyz)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	e.GET("/", a.handleHome)
	e.GET("/blog/", a.handleBlogList)
	e.GET("/blog/:slug/", a.handlePost)
	e.GET("/categories/", a.handleCategories)
	e.GET("/category/:slug/", a.handleCategory)
	e.GET("/tag/:slug/", a.handleTag)
	e.GET("/about/", a.handleAbout)
	e.GET("/contact/", a.handleContact)
	e.POST("/contact/", a.handleContactSubmit)
	e.POST("/newsletter/", a.handleNewsletterSubmit)
	e.GET("/search/", a.handleSearch)

	if a.Config.AdminPassword != "" {
		e.GET("/admin/", a.handleAdmin)
		e.POST("/admin/login/", a.handleAdminLogin)
		e.POST("/admin/logout/", handleAdminLogout)
		e.POST("/admin/submissions/:id/delete/", a.handleAdminDelete)
		e.POST("/admin/search/refresh/", a.handleAdminRefreshSearch)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if l, ok := a.limiter.(*WindowLimiter); ok {
		l.Close()
	}
	if a.ownRedis && a.redis != nil {
		a.redis.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
