package content

import (
	"sort"
	"strconv"
	"strings"
)

// Decoder converts raw records into the canonical model. Its resolver is
// used to fill in fully qualified image URLs.
type Decoder struct {
	Images ImageResolver
}

// NewDecoder returns a Decoder resolving media against origin.
func NewDecoder(origin string) Decoder {
	return Decoder{Images: NewImageResolver(origin)}
}

// Post decodes a post record. The slug falls back to the record id and the
// publication time falls back to createdAt.
func (d Decoder) Post(rec Record) Post {
	id := rec.ID()
	p := Post{
		ID:         id,
		DocumentID: rec.String("documentId", ""),
		Title:      rec.String("title", ""),
		Slug:       rec.String("slug", fallbackSlug(id)),
		Excerpt:    rec.String("excerpt", ""),
		Body:       body(rec),
		ReadTime:   rec.String("readTime", ""),
		ViewCount:  rec.Int("viewCount", 0),
		Featured:   rec.Bool("featured", false),
	}
	if t, ok := rec.Time("publishedAt"); ok {
		p.PublishedAt = t
	} else if t, ok := rec.Time("createdAt"); ok {
		p.PublishedAt = t
	}
	p.CoverImage = coverMedia(rec)
	if p.CoverImage != nil {
		p.CoverURL = d.Images.FullURL(p.CoverImage.URL)
	}
	if cat, ok := rec.Relation("category"); ok {
		c := d.Category(cat)
		p.Category = &c
	}
	tags := rec.Relations("tags")
	p.Tags = make([]Tag, 0, len(tags))
	for _, t := range tags {
		p.Tags = append(p.Tags, d.Tag(t))
	}
	if author, ok := rec.Relation("author"); ok {
		a := d.Author(author)
		p.Author = &a
	}
	return p
}

// Posts decodes a list of post records.
func (d Decoder) Posts(recs []Record) []Post {
	posts := make([]Post, 0, len(recs))
	for _, rec := range recs {
		posts = append(posts, d.Post(rec))
	}
	return posts
}

// Category decodes a category record. When the record was fetched with a
// populated post count, PostCount carries it.
func (d Decoder) Category(rec Record) Category {
	id := rec.ID()
	return Category{
		ID:          id,
		Slug:        rec.String("slug", fallbackSlug(id)),
		Name:        rec.String("name", ""),
		Icon:        rec.String("icon", ""),
		Description: rec.String("description", ""),
		PostCount:   postCount(rec),
	}
}

// Categories decodes a list of category records.
func (d Decoder) Categories(recs []Record) []Category {
	out := make([]Category, 0, len(recs))
	for _, rec := range recs {
		out = append(out, d.Category(rec))
	}
	return out
}

// Tag decodes a tag record.
func (d Decoder) Tag(rec Record) Tag {
	id := rec.ID()
	return Tag{
		ID:   id,
		Slug: rec.String("slug", fallbackSlug(id)),
		Name: rec.String("name", ""),
	}
}

// Author decodes an author record.
func (d Decoder) Author(rec Record) Author {
	a := Author{
		ID:   rec.ID(),
		Name: rec.String("name", ""),
		Bio:  rec.String("bio", ""),
	}
	if avatar, ok := rec.Relation("avatar"); ok {
		a.Avatar = DecodeMedia(avatar)
		if a.Avatar != nil {
			a.AvatarURL = d.Images.FullURL(a.Avatar.URL)
		}
	}
	return a
}

// Hero decodes the single-type hero record.
func (d Decoder) Hero(rec Record) Hero {
	return Hero{
		Title:       rec.String("title", ""),
		Description: rec.String("description", ""),
		CTALabel:    rec.String("ctaLabel", rec.String("ctaText", "")),
		CTALink:     rec.String("ctaLink", rec.String("ctaUrl", "")),
	}
}

// DecodeMedia reads an upload record. It returns nil when no url is present.
func DecodeMedia(rec Record) *Media {
	url := rec.String("url", "")
	if url == "" {
		return nil
	}
	return &Media{
		URL:             url,
		AlternativeText: rec.String("alternativeText", ""),
		Width:           rec.Int("width", 0),
		Height:          rec.Int("height", 0),
	}
}

// SortByPublished orders posts newest first, keeping the relative order of
// posts with equal timestamps.
func SortByPublished(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].PublishedAt.After(posts[j].PublishedAt)
	})
}

// postCount reads blog_posts.data.attributes.count (v4) or blog_posts.count (v5).
func postCount(rec Record) int {
	v, ok := rec.Field("blog_posts")
	if !ok {
		return 0
	}
	inner := unwrapData(v)
	if list, ok := inner.([]any); ok {
		return len(list)
	}
	if counted, ok := single(inner); ok {
		return counted.Int("count", 0)
	}
	return 0
}

func fallbackSlug(id int) string {
	if id == 0 {
		return ""
	}
	return strconv.Itoa(id)
}

// body returns the post body as markdown. Strapi "blocks" rich text is
// flattened; plain strings are returned unchanged.
func body(rec Record) string {
	v, ok := rec.Field("content")
	if !ok {
		return ""
	}
	switch b := v.(type) {
	case string:
		return b
	case []any:
		return BlocksToMarkdown(b)
	}
	return ""
}

// BlocksToMarkdown flattens Strapi blocks rich text into markdown.
func BlocksToMarkdown(blocks []any) string {
	var parts []string
	for _, raw := range blocks {
		block, ok := AsRecord(raw)
		if !ok {
			continue
		}
		text := inlineText(block)
		switch block.String("type", "") {
		case "heading":
			level := block.Int("level", 2)
			if level < 1 || level > 6 {
				level = 2
			}
			parts = append(parts, strings.Repeat("#", level)+" "+text)
		case "quote":
			parts = append(parts, "> "+text)
		case "code":
			parts = append(parts, "```\n"+text+"\n```")
		case "list":
			ordered := block.String("format", "") == "ordered"
			var items []string
			for i, child := range block.Relations("children") {
				marker := "- "
				if ordered {
					marker = strconv.Itoa(i+1) + ". "
				}
				items = append(items, marker+inlineText(child))
			}
			parts = append(parts, strings.Join(items, "\n"))
		default:
			if text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

func inlineText(block Record) string {
	var b strings.Builder
	children, _ := block["children"].([]any)
	for _, raw := range children {
		child, ok := AsRecord(raw)
		if !ok {
			continue
		}
		if child.String("type", "") == "link" {
			b.WriteString("[" + inlineText(child) + "](" + child.String("url", "") + ")")
			continue
		}
		text := child.String("text", "")
		if text == "" {
			if nested, ok := child["children"].([]any); ok && len(nested) > 0 {
				text = inlineText(child)
			}
		}
		if text == "" {
			continue
		}
		if child.Bool("code", false) {
			text = "`" + text + "`"
		}
		if child.Bool("bold", false) {
			text = "**" + text + "**"
		}
		if child.Bool("italic", false) {
			text = "*" + text + "*"
		}
		b.WriteString(text)
	}
	return b.String()
}
