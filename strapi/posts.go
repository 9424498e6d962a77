package strapi

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/cmsblog/content"
)

const (
	newestFirst = "publishedAt:desc"

	// relatedPageSize bounds the posts listed on a category or tag page.
	relatedPageSize = 100
)

// FetchHero returns the home page banner, or nil when none is configured.
func (c *Client) FetchHero(ctx context.Context) *content.Hero {
	env, err := c.get(ctx, pathHero, NewQuery().PopulateAll())
	if err != nil {
		c.fail(ctx, "hero", err)
		return nil
	}
	recs, err := env.records()
	if err != nil {
		c.fail(ctx, "hero", err)
		return nil
	}
	if len(recs) == 0 || len(recs[0]) == 0 {
		return nil
	}
	hero := c.decoder.Hero(recs[0])
	return &hero
}

// FetchFeaturedPost returns the newest post flagged as featured.
func (c *Client) FetchFeaturedPost(ctx context.Context) *content.Post {
	q := NewQuery().Eq("featured", "true").Sort(newestFirst).Limit(1).PopulateAll()
	posts, _, ok := c.posts(ctx, "featured post", q)
	if !ok || len(posts) == 0 {
		return nil
	}
	return &posts[0]
}

// FetchRecentPosts returns up to limit posts, newest first.
func (c *Client) FetchRecentPosts(ctx context.Context, limit int) []content.Post {
	if limit <= 0 {
		return []content.Post{}
	}
	q := NewQuery().Sort(newestFirst).Limit(limit).PopulateAll()
	posts, _, _ := c.posts(ctx, "recent posts", q)
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts
}

// FetchAllPosts returns one page of posts, newest first, with the page
// metadata. On failure it returns an empty slice and nil pagination.
func (c *Client) FetchAllPosts(ctx context.Context, page, pageSize int) ([]content.Post, *content.Pagination) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	q := NewQuery().Sort(newestFirst).Page(page, pageSize).PopulateAll()
	posts, meta, ok := c.posts(ctx, "all posts", q)
	if !ok {
		return posts, nil
	}
	if meta == nil {
		meta = &content.Pagination{Page: page, PageSize: pageSize, Total: len(posts)}
		if len(posts) > 0 {
			meta.PageCount = 1
		}
	}
	return posts, meta
}

// FetchPostBySlug returns the post whose slug equals slug exactly.
func (c *Client) FetchPostBySlug(ctx context.Context, slug string) *content.Post {
	if strings.TrimSpace(slug) == "" {
		return nil
	}
	q := NewQuery().Eq("slug", slug).PopulateAll()
	posts, _, _ := c.posts(ctx, "post by slug", q)
	for i := range posts {
		if posts[i].Slug == slug {
			return &posts[i]
		}
	}
	return nil
}

// FetchCategories returns every category.
func (c *Client) FetchCategories(ctx context.Context) []content.Category {
	return c.categories(ctx, "categories", NewQuery().Sort("name:asc").PopulateAll())
}

// FetchCategoriesWithCount returns every category with PostCount filled in.
func (c *Client) FetchCategoriesWithCount(ctx context.Context) []content.Category {
	return c.categories(ctx, "categories with count", NewQuery().Sort("name:asc").PopulateCount("blog_posts"))
}

// FetchPostsByCategory looks up the category by slug and lists its posts.
// Both requests run concurrently; the category is nil when it does not exist.
func (c *Client) FetchPostsByCategory(ctx context.Context, slug string) (*content.Category, []content.Post) {
	if strings.TrimSpace(slug) == "" {
		return nil, []content.Post{}
	}
	var (
		category *content.Category
		posts    []content.Post
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env, err := c.get(gctx, pathCategories, NewQuery().Eq("slug", slug).PopulateAll())
		if err != nil {
			return err
		}
		recs, err := env.records()
		if err != nil {
			return err
		}
		for _, cat := range c.decoder.Categories(recs) {
			if cat.Slug == slug {
				category = &cat
				break
			}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		posts, err = c.postList(gctx, NewQuery().Eq("category.slug", slug).Sort(newestFirst).Page(1, relatedPageSize).PopulateAll())
		return err
	})
	if err := g.Wait(); err != nil {
		c.fail(ctx, "posts by category", err)
		return nil, []content.Post{}
	}
	return category, posts
}

// FetchPostsByTag looks up the tag by slug and lists its posts.
func (c *Client) FetchPostsByTag(ctx context.Context, slug string) (*content.Tag, []content.Post) {
	if strings.TrimSpace(slug) == "" {
		return nil, []content.Post{}
	}
	var (
		tag   *content.Tag
		posts []content.Post
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env, err := c.get(gctx, pathTags, NewQuery().Eq("slug", slug))
		if err != nil {
			return err
		}
		recs, err := env.records()
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if t := c.decoder.Tag(rec); t.Slug == slug {
				tag = &t
				break
			}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		posts, err = c.postList(gctx, NewQuery().Eq("tags.slug", slug).Sort(newestFirst).Page(1, relatedPageSize).PopulateAll())
		return err
	})
	if err := g.Wait(); err != nil {
		c.fail(ctx, "posts by tag", err)
		return nil, []content.Post{}
	}
	return tag, posts
}

// posts runs a post list query and collapses failures. ok is false when the
// request or decoding failed.
func (c *Client) posts(ctx context.Context, op string, q *Query) ([]content.Post, *content.Pagination, bool) {
	env, err := c.get(ctx, pathPosts, q)
	if err != nil {
		c.fail(ctx, op, err)
		return []content.Post{}, nil, false
	}
	posts, err := c.decodePosts(env)
	if err != nil {
		c.fail(ctx, op, err)
		return []content.Post{}, nil, false
	}
	return posts, env.Meta.Pagination, true
}

// postList is posts without the collapsing, for use inside an errgroup.
func (c *Client) postList(ctx context.Context, q *Query) ([]content.Post, error) {
	env, err := c.get(ctx, pathPosts, q)
	if err != nil {
		return nil, err
	}
	return c.decodePosts(env)
}

func (c *Client) decodePosts(env envelope) ([]content.Post, error) {
	recs, err := env.records()
	if err != nil {
		return nil, err
	}
	posts := c.decoder.Posts(recs)
	content.SortByPublished(posts)
	return posts, nil
}

func (c *Client) categories(ctx context.Context, op string, q *Query) []content.Category {
	env, err := c.get(ctx, pathCategories, q)
	if err != nil {
		c.fail(ctx, op, err)
		return []content.Category{}
	}
	recs, err := env.records()
	if err != nil {
		c.fail(ctx, op, err)
		return []content.Category{}
	}
	return c.decoder.Categories(recs)
}
