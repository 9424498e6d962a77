package cmsblog

import (
	"database/sql"
	"time"
)

// ErrNotFound is returned when a journal entry does not exist.
var ErrNotFound = sql.ErrNoRows

// SubmissionKind names the form a submission came from.
type SubmissionKind string

const (
	KindContact    SubmissionKind = "contact"
	KindNewsletter SubmissionKind = "newsletter"
)

// Submission is one contact or newsletter form post as recorded in the
// journal. Delivered reports whether the CMS accepted it.
type Submission struct {
	ID        string
	Kind      SubmissionKind
	Email     string
	Name      string
	Message   string
	Delivered bool
	CreatedAt time.Time
}
