package views

import (
	"github.com/eringen/cmsblog/content"
	"github.com/eringen/cmsblog/search"
	"github.com/eringen/cmsblog/sitecopy"
)

// SiteConfig holds site-wide settings populated from environment variables.
// Every handler passes this to templates so nothing is hardcoded.
type SiteConfig struct {
	Name        string // SITE_NAME  (default "Blog")
	URL         string // SITE_URL   (default "http://localhost:3000")
	Description string // SITE_DESCRIPTION
	Author      string // SITE_AUTHOR
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image, absolute
}

// Flash is a one-shot notice shown after a form redirect.
type Flash struct {
	Kind    string // "success" or "error"
	Message string
}

// Page is the chrome shared by every full page.
type Page struct {
	Site   SiteConfig
	Meta   PageMeta
	Copy   sitecopy.Copy
	Active string // href of the highlighted nav entry
	CSRF   string
	Flash  *Flash
	JSONLD string
	// Search is the state of the header search box.
	Search *search.Widget
}

// HeroView is the banner, from the CMS when present and the site copy otherwise.
type HeroView struct {
	Title       string
	Description string
	Primary     sitecopy.Link
	Secondary   sitecopy.Link
}

type HomeData struct {
	Page
	Hero       HeroView
	Featured   *content.Post
	Recent     []content.Post
	Categories []content.Category
}

type BlogListData struct {
	Page
	Posts      []content.Post
	Pagination *content.Pagination
}

type PostData struct {
	Page
	Post    content.Post
	Related []content.Post
}

type CategoriesData struct {
	Page
	Categories []content.Category
}

type CategoryData struct {
	Page
	Category content.Category
	Posts    []content.Post
}

type TagData struct {
	Page
	Tag   content.Tag
	Posts []content.Post
}

type ContactData struct {
	Page
	Form  content.ContactMessage
	Error string
}

// SearchData backs both the search page and the results fragment.
type SearchData struct {
	Page
	Query   string
	Results []content.Post
}

// Submission is one journal row on the admin page.
type Submission struct {
	ID        string
	Kind      string
	Email     string
	Name      string
	Message   string
	Delivered bool
	CreatedAt string
}

type AdminLoginData struct {
	Page
	ShowError bool
}

type AdminJournalData struct {
	Page
	Entries []Submission
	Message string
}
