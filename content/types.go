package content

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// Post is a blog post in its canonical shape.
type Post struct {
	ID          int
	DocumentID  string
	Title       string
	Slug        string
	Excerpt     string
	Body        string // markdown
	PublishedAt time.Time
	ReadTime    string
	ViewCount   int
	Featured    bool
	CoverImage  *Media
	CoverURL    string // fully qualified, "" when the post has no cover image
	Category    *Category
	Tags        []Tag
	Author      *Author
}

// Link returns the site-relative URL of the post.
func (p Post) Link() string {
	return "/blog/" + p.Slug + "/"
}

// Category groups posts. PostCount is only set by count-populated queries.
type Category struct {
	ID          int
	Slug        string
	Name        string
	Icon        string
	Description string
	PostCount   int
}

// Tag labels posts; many-to-many with Post.
type Tag struct {
	ID   int
	Slug string
	Name string
}

// Author is referenced by posts.
type Author struct {
	ID        int
	Name      string
	Bio       string
	Avatar    *Media
	AvatarURL string
}

// Media is an uploaded file reference. URL is stored as the CMS returned it.
type Media struct {
	URL             string
	AlternativeText string
	Width           int
	Height          int
}

// Hero is the home page banner copy.
type Hero struct {
	Title       string
	Description string
	CTALabel    string
	CTALink     string
}

// Pagination accompanies every paged list query.
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool { return p.Page < p.PageCount }

// Subscriber is a newsletter signup.
type Subscriber struct {
	Email string `json:"email"`
}

// ContactMessage is a contact form submission.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Form validation errors.
var (
	ErrMissingName    = errors.New("name is required")
	ErrMissingEmail   = errors.New("email is required")
	ErrInvalidEmail   = errors.New("email address is invalid")
	ErrMissingMessage = errors.New("message is required")
)

// Validate checks that every field is filled in and the address parses.
func (m ContactMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrMissingName
	}
	if err := ValidateEmail(m.Email); err != nil {
		return err
	}
	if strings.TrimSpace(m.Message) == "" {
		return ErrMissingMessage
	}
	return nil
}

// ValidateEmail accepts a bare address such as "a@b.co".
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrMissingEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return ErrInvalidEmail
	}
	return nil
}
