package search

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/eringen/cmsblog/content"
)

type fakeLoader struct {
	mu    sync.Mutex
	calls int
	size  int
	posts []content.Post
	fail  bool
	// before runs inside FetchAllPosts, before returning.
	before func()
}

func (f *fakeLoader) FetchAllPosts(ctx context.Context, page, pageSize int) ([]content.Post, *content.Pagination) {
	f.mu.Lock()
	f.calls++
	f.size = pageSize
	posts, fail, before := f.posts, f.fail, f.before
	f.mu.Unlock()
	if before != nil {
		before()
	}
	if fail {
		return []content.Post{}, nil
	}
	return posts, &content.Pagination{Page: page, PageSize: pageSize, PageCount: 1, Total: len(posts)}
}

func (f *fakeLoader) set(posts []content.Post, fail bool) {
	f.mu.Lock()
	f.posts, f.fail = posts, fail
	f.mu.Unlock()
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quiet() SnapshotOption {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSnapshotLoadsOnceWithoutTTL(t *testing.T) {
	loader := &fakeLoader{posts: []content.Post{{Title: "Alpha"}}}
	s := NewSnapshot(loader, quiet())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if got := s.Search(ctx, "alpha"); len(got) != 1 {
			t.Fatalf("Search len = %d, want 1", len(got))
		}
	}
	if loader.callCount() != 1 {
		t.Errorf("loader calls = %d, want 1", loader.callCount())
	}
	if loader.size != DefaultSize {
		t.Errorf("page size = %d, want %d", loader.size, DefaultSize)
	}
}

func TestSnapshotReloadsAfterTTL(t *testing.T) {
	loader := &fakeLoader{posts: []content.Post{{Title: "Alpha"}}}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSnapshot(loader, WithTTL(time.Minute), WithSize(20), quiet())
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.Index(ctx)
	now = now.Add(30 * time.Second)
	s.Index(ctx)
	if loader.callCount() != 1 {
		t.Fatalf("loader calls = %d, want 1 within TTL", loader.callCount())
	}

	loader.set([]content.Post{{Title: "Alpha"}, {Title: "Alpha two"}}, false)
	now = now.Add(time.Minute)
	if got := s.Search(ctx, "alpha"); len(got) != 2 {
		t.Errorf("Search after TTL len = %d, want 2", len(got))
	}
	if loader.callCount() != 2 {
		t.Errorf("loader calls = %d, want 2", loader.callCount())
	}
	if loader.size != 20 {
		t.Errorf("page size = %d, want 20", loader.size)
	}
}

func TestSnapshotDoesNotCacheFailures(t *testing.T) {
	loader := &fakeLoader{fail: true}
	s := NewSnapshot(loader, quiet())
	ctx := context.Background()

	if idx := s.Index(ctx); idx.Len() != 0 {
		t.Fatalf("failed load Len = %d, want 0", idx.Len())
	}
	loader.set([]content.Post{{Title: "Alpha"}}, false)
	if idx := s.Index(ctx); idx.Len() != 1 {
		t.Fatalf("Len after recovery = %d, want 1", idx.Len())
	}
	if loader.callCount() != 2 {
		t.Errorf("loader calls = %d, want 2", loader.callCount())
	}
}

func TestSnapshotKeepsPreviousOnFailure(t *testing.T) {
	loader := &fakeLoader{posts: []content.Post{{Title: "Alpha"}}}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSnapshot(loader, WithTTL(time.Minute), quiet())
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.Index(ctx)
	loader.set(nil, true)
	now = now.Add(2 * time.Minute)
	if got := s.Search(ctx, "alpha"); len(got) != 1 {
		t.Errorf("Search with failing reload len = %d, want previous result", len(got))
	}
}

func TestSnapshotDiscardsStaleLoad(t *testing.T) {
	loader := &fakeLoader{posts: []content.Post{{Title: "Old"}}}
	s := NewSnapshot(loader, quiet())
	ctx := context.Background()

	// Invalidate while the first load is in flight.
	loader.before = func() {
		loader.before = nil
		s.Invalidate()
	}
	if idx := s.Index(ctx); idx.Len() != 1 {
		t.Fatalf("caller should still get its own result, Len = %d", idx.Len())
	}
	s.mu.RLock()
	installed := s.index
	s.mu.RUnlock()
	if installed != nil {
		t.Fatal("stale load should not be installed")
	}

	loader.set([]content.Post{{Title: "New"}}, false)
	if got := titles(s.Posts(ctx)); len(got) != 1 || got[0] != "New" {
		t.Errorf("Posts = %v, want [New]", got)
	}
}

func TestSnapshotSharesConcurrentLoads(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	loader := &fakeLoader{posts: []content.Post{{Title: "Alpha"}}}
	loader.before = func() {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}
	s := NewSnapshot(loader, quiet())
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*Index, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = s.Index(ctx)
		}(i)
	}
	<-entered
	close(release)
	wg.Wait()

	if n := loader.callCount(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}
	for i, idx := range got {
		if idx.Len() != 1 {
			t.Errorf("caller %d Len = %d, want 1", i, idx.Len())
		}
	}
}

func TestGuard(t *testing.T) {
	var g Guard
	first := g.Next()
	if !g.Current(first) {
		t.Fatal("first ticket should be current")
	}
	second := g.Next()
	if g.Current(first) {
		t.Error("first ticket should be stale")
	}
	if !g.Current(second) {
		t.Error("second ticket should be current")
	}
}
