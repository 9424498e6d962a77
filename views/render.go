package views

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/cmsblog/markdown"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"date":        FormatDate,
	"isoDate":     ISODate,
	"views":       ViewCount,
	"cover":       CoverURL,
	"titleSlug":   TitleFromSlug,
	"truncate":    Truncate,
	"summary":     Summary,
	"pageNumbers": PageNumbers,
	"pathEscape":  PathEscape,
	"add":         func(a, b int) int { return a + b },
	"dict":        dict,
	"jsonLD":      func(s string) template.JS { return template.JS(s) },
	"markdown": func(s string) (template.HTML, error) {
		var buf bytes.Buffer
		if err := markdown.RenderMarkdown(&buf, s); err != nil {
			return "", err
		}
		return template.HTML(buf.String()), nil
	},
}

var pageNames = []string{
	"home", "blog", "post", "categories", "category", "tag",
	"about", "contact", "search", "admin_login", "admin_journal",
	"not_found", "server_error",
}

var pages = parsePages()

// parsePages clones the shared layout for every page so each page can define
// its own "content" block.
func parsePages() map[string]*template.Template {
	base := template.Must(template.New("base").Funcs(funcs).ParseFS(templateFS,
		"templates/layout.html", "templates/partials.html"))
	out := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t := template.Must(base.Clone())
		out[name] = template.Must(t.ParseFS(templateFS, "templates/"+name+".html"))
	}
	return out
}

// dict builds a map from alternating keys and values so a partial can take
// more than one argument.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("views: dict needs key/value pairs, got %d args", len(pairs))
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("views: dict key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

// component executes block from the named page set as a templ component.
func component(page, block string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, ok := pages[page]
		if !ok {
			return fmt.Errorf("views: unknown page %q", page)
		}
		return t.ExecuteTemplate(w, block, data)
	})
}

func Home(d HomeData) templ.Component { return component("home", "layout", d) }

func BlogList(d BlogListData) templ.Component { return component("blog", "layout", d) }

// BlogListPartial renders only the post list and pager, for HTMX page swaps.
func BlogListPartial(d BlogListData) templ.Component { return component("blog", "post_page", d) }

func Post(d PostData) templ.Component { return component("post", "layout", d) }

func Categories(d CategoriesData) templ.Component { return component("categories", "layout", d) }

func Category(d CategoryData) templ.Component { return component("category", "layout", d) }

func Tag(d TagData) templ.Component { return component("tag", "layout", d) }

func About(p Page) templ.Component { return component("about", "layout", p) }

func Contact(d ContactData) templ.Component { return component("contact", "layout", d) }

func Search(d SearchData) templ.Component { return component("search", "layout", d) }

// SearchResults renders the dropdown fragment requested while typing.
func SearchResults(d SearchData) templ.Component { return component("search", "search_results", d) }

func AdminLogin(d AdminLoginData) templ.Component { return component("admin_login", "layout", d) }

func AdminJournal(d AdminJournalData) templ.Component {
	return component("admin_journal", "layout", d)
}

func NotFound(p Page) templ.Component { return component("not_found", "layout", p) }

func ServerError(p Page) templ.Component { return component("server_error", "layout", p) }
