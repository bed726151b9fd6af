package credentials

import (
	"context"
	"errors"
	"time"
)

// Credential is one upstream API key managed by the pool together with the
// health counters that drive its selection order.
type Credential struct {
	// ID is the opaque upstream secret. It is immutable and unique.
	ID string `json:"key"`

	// AddedAt is when the credential was first registered.
	AddedAt time.Time `json:"added_at"`

	// SuccessCount is the number of attempts that succeeded with this credential.
	SuccessCount int64 `json:"successful_requests"`

	// ErrorCount is the number of attempts that failed with this credential.
	ErrorCount int64 `json:"error_requests"`

	// ErrorsSinceLastSuccess is the length of the current failure streak.
	// It resets to zero on every success.
	ErrorsSinceLastSuccess int64 `json:"errors_since_last_success"`

	// FirstErrorAt is when the current failure streak began, nil when there
	// is no active streak.
	FirstErrorAt *time.Time `json:"first_error_at"`

	// ErrorStreakStartedAt mirrors FirstErrorAt and is kept as a separate
	// column for operators that reset one without the other.
	ErrorStreakStartedAt *time.Time `json:"error_counter_started_at"`

	// Removed marks a soft-deleted credential. Removed credentials are never
	// selected but remain visible to administrative listings.
	Removed bool `json:"removed"`
}

// TotalRequests returns the number of attempts recorded for the credential.
func (c Credential) TotalRequests() int64 {
	return c.SuccessCount + c.ErrorCount
}

// Outcome classifies a single upstream attempt.
type Outcome struct {
	// Success is true when the upstream returned a 2xx status.
	Success bool

	// StatusCode is the upstream status for failures, or 500 when the
	// attempt failed before a status was available.
	StatusCode int

	// Body is the upstream error body for failures.
	Body []byte
}

// Succeeded returns a successful outcome.
func Succeeded() Outcome {
	return Outcome{Success: true}
}

// Failed returns a failed outcome carrying the upstream diagnostics.
func Failed(statusCode int, body []byte) Outcome {
	return Outcome{StatusCode: statusCode, Body: body}
}

// SortField names a column that administrative listings may order by.
type SortField string

// Sortable columns, named after the persisted layout.
const (
	SortByKey                    SortField = "key"
	SortByAddedAt                SortField = "added_at"
	SortBySuccessfulRequests     SortField = "successful_requests"
	SortByErrorRequests          SortField = "error_requests"
	SortByErrorsSinceLastSuccess SortField = "errors_since_last_success"
	SortByFirstErrorAt           SortField = "first_error_at"
	SortByErrorCounterStartedAt  SortField = "error_counter_started_at"
	SortByRemoved                SortField = "removed"
)

var sortFields = map[SortField]bool{
	SortByKey:                    true,
	SortByAddedAt:                true,
	SortBySuccessfulRequests:     true,
	SortByErrorRequests:          true,
	SortByErrorsSinceLastSuccess: true,
	SortByFirstErrorAt:           true,
	SortByErrorCounterStartedAt:  true,
	SortByRemoved:                true,
}

// ListOptions controls the ordering of List.
type ListOptions struct {
	SortBy     SortField
	Descending bool
}

// ParseListOptions builds ListOptions from loosely typed input. Unknown
// columns fall back to added_at and unknown orders fall back to ascending.
func ParseListOptions(sortBy, sortOrder string) ListOptions {
	opts := ListOptions{SortBy: SortField(sortBy)}
	if !sortFields[opts.SortBy] {
		opts.SortBy = SortByAddedAt
	}
	opts.Descending = sortOrder == "desc"
	return opts
}

// normalize applies the fallbacks of ParseListOptions to a literal value.
func (o ListOptions) normalize() ListOptions {
	if !sortFields[o.SortBy] {
		o.SortBy = SortByAddedAt
	}
	return o
}

// ErrNotFound is returned by Get when the credential does not exist.
var ErrNotFound = errors.New("credential not found")

// Store is the durable record of every credential and its health counters.
// Every mutating call is durable before it returns.
type Store interface {
	// ListActive returns the non-removed credentials in selection order.
	ListActive(ctx context.Context) ([]Credential, error)

	// List returns every credential, removed ones included, ordered by opts.
	List(ctx context.Context, opts ListOptions) ([]Credential, error)

	// Get returns a single credential or ErrNotFound.
	Get(ctx context.Context, id string) (Credential, error)

	// RecordOutcome atomically applies an attempt outcome to the counters.
	// Unknown ids are ignored.
	RecordOutcome(ctx context.Context, id string, outcome Outcome) error

	// SetRemoved sets the soft-delete flag and reports whether a credential
	// with that id exists.
	SetRemoved(ctx context.Context, id string, removed bool) (bool, error)

	// InsertIfAbsent registers a credential with zero counters and reports
	// whether it was newly created.
	InsertIfAbsent(ctx context.Context, id string) (bool, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// TimestampLayout is the display format for credential timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in local time for listings, or "-" when t is
// nil or zero.
func FormatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(TimestampLayout)
}
