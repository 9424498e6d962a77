package cmsblog

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/cmsblog/content"
	"github.com/eringen/cmsblog/views"
)

const tooManyRequests = "Too many submissions. Please try again in a minute."

func (a *App) handleContact(c echo.Context) error {
	return Render(c, a.Views.Contact(views.ContactData{
		Page: a.page(c, "/contact/", views.PageMeta{Title: a.Copy.Contact.Title}),
	}))
}

// handleContactSubmit validates and forwards a contact message. Validation
// errors re-render the form with the input kept; delivery results redirect
// back with a flash message.
func (a *App) handleContactSubmit(c echo.Context) error {
	ctx := c.Request().Context()
	msg := content.ContactMessage{
		Name:    strings.TrimSpace(c.FormValue("name")),
		Email:   strings.TrimSpace(c.FormValue("email")),
		Message: strings.TrimSpace(c.FormValue("message")),
	}
	if err := msg.Validate(); err != nil {
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.Contact(views.ContactData{
			Page:  a.page(c, "/contact/", views.PageMeta{Title: a.Copy.Contact.Title}),
			Form:  msg,
			Error: err.Error(),
		}))
	}
	if !a.limiter.Allow(ctx, rateKey("contact", c)) {
		return c.String(http.StatusTooManyRequests, tooManyRequests)
	}

	delivered := a.Content.SubmitContactMessage(ctx, msg)
	a.journal(c, Submission{
		Kind:      KindContact,
		Name:      msg.Name,
		Email:     msg.Email,
		Message:   msg.Message,
		Delivered: delivered,
	})
	if delivered {
		return a.redirectWithFlash(c, "/contact/", "success", a.Copy.Contact.Success)
	}
	return a.redirectWithFlash(c, "/contact/", "error", a.Copy.Contact.Failure)
}

// handleNewsletterSubmit forwards a signup and returns to the referring page.
func (a *App) handleNewsletterSubmit(c echo.Context) error {
	ctx := c.Request().Context()
	back := localReferer(c)
	email := strings.TrimSpace(c.FormValue("email"))
	if err := content.ValidateEmail(email); err != nil {
		return a.redirectWithFlash(c, back, "error", err.Error())
	}
	if !a.limiter.Allow(ctx, rateKey("newsletter", c)) {
		return c.String(http.StatusTooManyRequests, tooManyRequests)
	}

	delivered := a.Content.SubmitSubscription(ctx, email)
	a.journal(c, Submission{Kind: KindNewsletter, Email: email, Delivered: delivered})
	if delivered {
		return a.redirectWithFlash(c, back, "success", a.Copy.Newsletter.Success)
	}
	return a.redirectWithFlash(c, back, "error", a.Copy.Newsletter.Failure)
}

// journal records a submission. A failed write is logged and does not
// change what the visitor sees.
func (a *App) journal(c echo.Context, sub Submission) {
	saved, err := a.Store.SaveSubmission(sub)
	if err != nil {
		a.log.ErrorContext(c.Request().Context(), "journal write failed", "kind", sub.Kind, "error", err)
		return
	}
	a.log.InfoContext(c.Request().Context(), "form submission",
		"id", saved.ID, "kind", saved.Kind, "delivered", saved.Delivered)
}

func (a *App) redirectWithFlash(c echo.Context, to, kind, message string) error {
	if err := addFlash(c, kind, message); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, to)
}

// localReferer returns the path of a same-site Referer, or "/".
func localReferer(c echo.Context) string {
	ref := c.Request().Referer()
	if ref == "" {
		return "/"
	}
	host := c.Request().Host
	for _, scheme := range []string{"http://", "https://"} {
		if rest, ok := strings.CutPrefix(ref, scheme+host); ok {
			if rest == "" {
				return "/"
			}
			if isLocalPath(rest) {
				return rest
			}
			return "/"
		}
	}
	if isLocalPath(ref) {
		return ref
	}
	return "/"
}

// isLocalPath reports whether p is a path on this site. Browsers read "//"
// and "/\" as the start of another host.
func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}
