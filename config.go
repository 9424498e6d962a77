package cmsblog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/eringen/cmsblog/search"
	"github.com/eringen/cmsblog/strapi"
)

// SiteConfig holds all configuration for a cmsblog site. Every field can be
// set from the environment; zero values are replaced by setDefaults.
type SiteConfig struct {
	Name        string `env:"SITE_NAME" envDefault:"Blog"`
	URL         string `env:"SITE_URL" envDefault:"http://localhost:3000"`
	Description string `env:"SITE_DESCRIPTION"`
	Author      string `env:"SITE_AUTHOR"`

	Addr            string        `env:"ADDR" envDefault:":3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Content backend
	StrapiURL     string        `env:"STRAPI_URL" envDefault:"http://localhost:1337"`
	StrapiToken   string        `env:"STRAPI_TOKEN"`
	StrapiTimeout time.Duration `env:"STRAPI_TIMEOUT" envDefault:"10s"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/submissions.db"`
	SiteCopyPath string `env:"SITE_COPY_PATH"`

	AdminPassword string `env:"ADMIN_PASSWORD"` // empty disables /admin/
	SessionSecret string `env:"SESSION_SECRET"` // empty generates a per-process key
	CookieSecure  bool   `env:"COOKIE_SECURE"`

	// Rate limiting; Redis is used when RedisURL is set.
	RedisURL       string        `env:"REDIS_URL"`
	FormRateLimit  int           `env:"FORM_RATE_LIMIT" envDefault:"5"`
	FormRateWindow time.Duration `env:"FORM_RATE_WINDOW" envDefault:"1m"`

	SearchSnapshotSize int           `env:"SEARCH_SNAPSHOT_SIZE" envDefault:"100"`
	SearchResultLimit  int           `env:"SEARCH_RESULT_LIMIT" envDefault:"5"`
	SearchTTL          time.Duration `env:"SEARCH_TTL" envDefault:"5m"`

	PostsPerPage int `env:"POSTS_PER_PAGE" envDefault:"10"`
	RecentPosts  int `env:"RECENT_POSTS" envDefault:"6"`
	FeedSize     int `env:"FEED_SIZE" envDefault:"20"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadConfig reads .env style files (".env" when none are named) into the
// process environment without overriding it, then parses SiteConfig.
// Missing env files are not an error.
func LoadConfig(envFiles ...string) (SiteConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return SiteConfig{}, fmt.Errorf("cmsblog: load env file: %w", err)
	}
	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("cmsblog: parse config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.StrapiURL == "" {
		c.StrapiURL = strapi.DefaultOrigin
	}
	if c.StrapiTimeout <= 0 {
		c.StrapiTimeout = 10 * time.Second
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/submissions.db"
	}
	if c.FormRateLimit <= 0 {
		c.FormRateLimit = 5
	}
	if c.FormRateWindow <= 0 {
		c.FormRateWindow = time.Minute
	}
	if c.SearchSnapshotSize <= 0 {
		c.SearchSnapshotSize = search.DefaultSize
	}
	if c.SearchResultLimit <= 0 {
		c.SearchResultLimit = search.DefaultLimit
	}
	if c.PostsPerPage <= 0 {
		c.PostsPerPage = 10
	}
	if c.RecentPosts <= 0 {
		c.RecentPosts = 6
	}
	if c.FeedSize <= 0 {
		c.FeedSize = 20
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithContent replaces the Strapi client built from the config.
func WithContent(api strapi.API) Option {
	return func(a *App) {
		a.Content = api
	}
}

// WithLogger sets the application logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithLimiter replaces the rate limiter used for form posts and admin login.
func WithLimiter(l Limiter) Option {
	return func(a *App) {
		a.limiter = l
	}
}

// WithRedis supplies an existing Redis client instead of dialing RedisURL.
func WithRedis(client *redis.Client) Option {
	return func(a *App) {
		a.redis = client
	}
}
