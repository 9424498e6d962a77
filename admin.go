package cmsblog

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/cmsblog/views"
)

const journalPageSize = 200

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(views.AdminLoginData{Page: a.adminPage(c)}))
	}
	return a.renderAdminJournal(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	if !a.limiter.Allow(c.Request().Context(), rateKey("login", c)) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(views.AdminLoginData{
		Page:      a.adminPage(c),
		ShowError: true,
	}))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminDelete(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	err := a.Store.DeleteSubmission(c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Redirect(http.StatusSeeOther, "/admin/?msg=Submission+not+found.")
	case err != nil:
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/?msg=Submission+deleted.")
}

// handleAdminRefreshSearch drops the search snapshot so posts published in
// the CMS show up in search before the TTL runs out.
func (a *App) handleAdminRefreshSearch(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.Search.Invalidate()
	a.log.InfoContext(c.Request().Context(), "search snapshot invalidated")
	return c.Redirect(http.StatusSeeOther, "/admin/?msg=Search+index+refreshed.")
}

func (a *App) adminPage(c echo.Context) views.Page {
	return a.page(c, "", views.PageMeta{Title: "Admin"})
}

func (a *App) renderAdminJournal(c echo.Context, msg string) error {
	subs, err := a.Store.ListSubmissions("", journalPageSize)
	if err != nil {
		return err
	}
	entries := make([]views.Submission, 0, len(subs))
	for _, s := range subs {
		entries = append(entries, views.Submission{
			ID:        s.ID,
			Kind:      string(s.Kind),
			Email:     s.Email,
			Name:      s.Name,
			Message:   s.Message,
			Delivered: s.Delivered,
			CreatedAt: s.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return Render(c, a.Views.AdminJournal(views.AdminJournalData{
		Page:    a.adminPage(c),
		Entries: entries,
		Message: msg,
	}))
}
