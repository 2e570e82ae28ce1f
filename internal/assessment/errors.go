package assessment

import (
	"errors"
	"fmt"
)

// Kind classifies domain failures so the transport layer can map them to
// problem+json responses without inspecting error strings.
type Kind int

const (
	KindNotFound Kind = iota
	KindInvalidState
	KindInvalidInput
	KindConfigurationMissing
	KindNoEligibleItems
	KindTransient
	KindInternal
)

// Error is a domain failure carrying an RFC 9457 problem slug and title.
type Error struct {
	Kind   Kind
	Slug   string
	Title  string
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Slug, e.Detail)
	}
	return e.Slug
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error for wrapping.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// IsKind reports whether err wraps a domain Error of the given kind.
func IsKind(err error, k Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == k
}

func ErrSessionNotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Slug: "session-not-found", Title: "Session not found", Detail: fmt.Sprintf(format, args...)}
}

func ErrAssignmentNotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Slug: "assigned-assessment-not-found", Title: "Assigned assessment not found", Detail: fmt.Sprintf(format, args...)}
}

func ErrItemNotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Slug: "item-not-found", Title: "Assessment item not found", Detail: fmt.Sprintf(format, args...)}
}

// ErrNoEligibleItems is raised when the item selector finds no candidate at
// all. It shares the item-not-found slug on the wire.
func ErrNoEligibleItems(format string, args ...any) *Error {
	return &Error{Kind: KindNoEligibleItems, Slug: "item-not-found", Title: "Assessment item not found", Detail: fmt.Sprintf(format, args...)}
}

func ErrConfigurationNotFound(format string, args ...any) *Error {
	return &Error{Kind: KindConfigurationMissing, Slug: "assessment-configuration-not-found", Title: "Assessment configuration not found", Detail: fmt.Sprintf(format, args...)}
}

func ErrInvalidSessionState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Slug: "invalid-session-state", Title: "Invalid session state", Detail: fmt.Sprintf(format, args...)}
}

func ErrInvalidResponse(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Slug: "invalid-response", Title: "Invalid response data", Detail: fmt.Sprintf(format, args...)}
}

func ErrAssessmentTerminated(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Slug: "assessment-terminated", Title: "Assessment terminated", Detail: fmt.Sprintf(format, args...)}
}

// ErrTransient marks retryable store failures (I/O, lock conflicts).
func ErrTransient(format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Slug: "internal-server-error", Title: "Internal server error", Detail: fmt.Sprintf(format, args...)}
}

func ErrInternal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Slug: "internal-server-error", Title: "Internal server error", Detail: fmt.Sprintf(format, args...)}
}
