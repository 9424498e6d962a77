package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eringen/cmsblog/content"
)

// DefaultSize is the number of posts loaded into a snapshot.
const DefaultSize = 100

// Loader fetches one page of posts, newest first. A nil pagination signals
// a failed load. *strapi.Client satisfies it.
type Loader interface {
	FetchAllPosts(ctx context.Context, page, pageSize int) ([]content.Post, *content.Pagination)
}

// Snapshot holds the most recent successfully loaded Index. Reads share the
// installed index; a reload happens after the TTL expires or after Invalidate.
type Snapshot struct {
	mu      sync.RWMutex
	index   *Index
	fetched time.Time

	loader Loader
	size   int
	limit  int
	ttl    time.Duration
	guard  Guard
	flight singleflight.Group
	now    func() time.Time
	log    *slog.Logger
}

// SnapshotOption configures a Snapshot.
type SnapshotOption func(*Snapshot)

// WithSize sets how many posts are loaded.
func WithSize(n int) SnapshotOption {
	return func(s *Snapshot) {
		if n > 0 {
			s.size = n
		}
	}
}

// WithLimit sets the result cap of the built index.
func WithLimit(n int) SnapshotOption {
	return func(s *Snapshot) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithTTL sets how long a loaded snapshot is reused. Zero or less loads once.
func WithTTL(d time.Duration) SnapshotOption {
	return func(s *Snapshot) { s.ttl = d }
}

// WithLogger sets the logger used for reload diagnostics.
func WithLogger(l *slog.Logger) SnapshotOption {
	return func(s *Snapshot) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSnapshot returns an empty snapshot that loads from loader on first use.
func NewSnapshot(loader Loader, opts ...SnapshotOption) *Snapshot {
	s := &Snapshot{
		loader: loader,
		size:   DefaultSize,
		limit:  DefaultLimit,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Snapshot) valid() bool {
	if s.index == nil {
		return false
	}
	return s.ttl <= 0 || s.now().Sub(s.fetched) < s.ttl
}

// Invalidate drops the installed index so the next search reloads from the
// CMS. Loads already in flight will not install their result.
func (s *Snapshot) Invalidate() {
	s.guard.Next()
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
}

// Index returns a fresh index, loading one if needed. Concurrent callers
// that find the snapshot expired share a single load. When a load fails the
// previous index is kept and returned; with none, an empty index is returned.
func (s *Snapshot) Index(ctx context.Context) *Index {
	s.mu.RLock()
	if s.valid() {
		idx := s.index
		s.mu.RUnlock()
		return idx
	}
	s.mu.RUnlock()

	v, _, _ := s.flight.Do("load", func() (any, error) {
		return s.load(context.WithoutCancel(ctx)), nil
	})
	return v.(*Index)
}

func (s *Snapshot) load(ctx context.Context) *Index {
	s.mu.RLock()
	if s.valid() {
		idx := s.index
		s.mu.RUnlock()
		return idx
	}
	stale := s.index
	s.mu.RUnlock()

	ticket := s.guard.Next()
	posts, meta := s.loader.FetchAllPosts(ctx, 1, s.size)
	if meta == nil {
		s.log.WarnContext(ctx, "search snapshot load failed", "keeping_previous", stale != nil)
		if stale != nil {
			return stale
		}
		return NewIndex(nil, s.limit)
	}
	idx := NewIndex(posts, s.limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.guard.Current(ticket) {
		s.log.DebugContext(ctx, "discarding stale search snapshot", "ticket", ticket)
		return idx
	}
	s.index = idx
	s.fetched = s.now()
	s.log.DebugContext(ctx, "search snapshot installed", "posts", idx.Len())
	return idx
}

// Search runs q against the current snapshot.
func (s *Snapshot) Search(ctx context.Context, q string) []content.Post {
	return s.Index(ctx).Query(q)
}

// Posts returns the snapshot posts, newest first.
func (s *Snapshot) Posts(ctx context.Context) []content.Post {
	return s.Index(ctx).Posts()
}
