package content

import "strings"

// coverFields lists the post fields that may carry the cover image, in lookup order.
var coverFields = []string{"coverImage", "coverimage", "cover"}

// ImageResolver turns media paths stored by the CMS into browser-loadable URLs.
type ImageResolver struct {
	origin string
}

// NewImageResolver returns a resolver that prefixes relative paths with origin.
func NewImageResolver(origin string) ImageResolver {
	return ImageResolver{origin: strings.TrimRight(origin, "/")}
}

// Origin returns the configured backend origin without a trailing slash.
func (r ImageResolver) Origin() string {
	return r.origin
}

// FullURL returns path unchanged when it is already absolute, otherwise the
// path (minus one leading slash) joined onto the origin. An empty path yields "".
func (r ImageResolver) FullURL(path string) string {
	if path == "" {
		return ""
	}
	if IsAbsoluteURL(path) {
		return path
	}
	path = strings.TrimPrefix(path, "/")
	return r.origin + "/" + path
}

// CoverURL locates a post's cover image and resolves it.
// It returns ("", false) when the post has no cover image or no path.
func (r ImageResolver) CoverURL(post Record) (string, bool) {
	media := coverMedia(post)
	if media == nil || media.URL == "" {
		return "", false
	}
	return r.FullURL(media.URL), true
}

// IsAbsoluteURL reports whether s starts with http://, https:// or //.
func IsAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(s, "//")
}

func coverMedia(post Record) *Media {
	for _, name := range coverFields {
		if rec, ok := post.Relation(name); ok {
			if m := DecodeMedia(rec); m != nil {
				return m
			}
		}
	}
	return nil
}
