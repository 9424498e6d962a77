package search

import (
	"strings"

	"github.com/eringen/cmsblog/content"
)

// State is the visibility of the search widget.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Widget is the search box state machine. It starts Closed; typing has no
// effect until it is opened. Results are delivered against the ticket issued
// for the query that produced them, so a late answer for an older query is
// dropped. A Widget belongs to one visitor and is not safe for concurrent use.
type Widget struct {
	state   State
	query   string
	results []content.Post
	ticket  uint64
	guard   Guard
}

// NewWidget returns a widget in the given state with query q.
func NewWidget(open bool, q string) *Widget {
	w := &Widget{}
	if open {
		w.state = Open
		w.query = blankToEmpty(q)
		w.ticket = w.guard.Next()
	}
	return w
}

// blankToEmpty keeps q as typed unless it holds only whitespace.
func blankToEmpty(q string) string {
	if strings.TrimSpace(q) == "" {
		return ""
	}
	return q
}

func (w *Widget) State() State { return w.state }

func (w *Widget) IsOpen() bool { return w.state == Open }

func (w *Widget) Query() string { return w.query }

func (w *Widget) Results() []content.Post { return w.results }

// Ticket returns the ticket of the current query.
func (w *Widget) Ticket() uint64 { return w.ticket }

// Toggle opens a closed widget and closes an open one.
func (w *Widget) Toggle() {
	if w.state == Open {
		w.close()
		return
	}
	w.state = Open
}

// OutsideClick closes the widget. It mirrors what site.js does in the browser
// when a click lands outside the search box.
func (w *Widget) OutsideClick() {
	w.close()
}

// Select closes the widget and clears the query. It mirrors what site.js does
// in the browser when a result is followed.
func (w *Widget) Select() {
	w.close()
	w.query = ""
	w.results = nil
	w.ticket = w.guard.Next()
}

// Type sets the query and returns the ticket results must be delivered with.
// While closed it does nothing and reports false.
func (w *Widget) Type(q string) (uint64, bool) {
	if w.state != Open {
		return 0, false
	}
	w.query = blankToEmpty(q)
	w.ticket = w.guard.Next()
	if w.query == "" {
		w.results = nil
	}
	return w.ticket, true
}

// Deliver installs results computed for ticket. It reports false and keeps
// the current results when the ticket is stale or the widget is closed.
func (w *Widget) Deliver(ticket uint64, results []content.Post) bool {
	if w.state != Open || !w.guard.Current(ticket) {
		return false
	}
	w.results = results
	return true
}

func (w *Widget) close() {
	w.state = Closed
}
