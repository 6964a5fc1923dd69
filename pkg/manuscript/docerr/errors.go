// Package docerr provides the error taxonomy shared by every stage of a manuscript conversion.
//
// All errors produced by the engine are fatal to the current conversion. They are grouped into
// four kinds that callers can match with errors.Is:
//
//	errors.Is(err, docerr.ErrMalformedInput)
//	errors.Is(err, docerr.ErrMissingResource)
//	errors.Is(err, docerr.ErrAmbiguousMatch)
//	errors.Is(err, docerr.ErrUseAfterInvalidation)
//
// A finer-grained Code identifies the exact failure (for example CodePlaceholderNotExclusive)
// and can be tested with HasCode.
package docerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error.
type Kind int

const (
	KindMalformedInput Kind = iota + 1
	KindMissingResource
	KindAmbiguousMatch
	KindUseAfterInvalidation
)

func (k Kind) String() string {
	switch k {
	case KindMalformedInput:
		return "malformed input"
	case KindMissingResource:
		return "missing required resource"
	case KindAmbiguousMatch:
		return "ambiguous match"
	case KindUseAfterInvalidation:
		return "use after invalidation"
	default:
		return "unknown error"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrMalformedInput       = errors.New("malformed input")
	ErrMissingResource      = errors.New("missing required resource")
	ErrAmbiguousMatch       = errors.New("ambiguous match")
	ErrUseAfterInvalidation = errors.New("use after invalidation")
)

// Code identifies a specific failure inside a Kind.
type Code string

const (
	CodeMalformedXML            Code = "MalformedXml"
	CodeMalformedMetadata       Code = "MalformedMetadata"
	CodeMalformedMarkdown       Code = "MalformedMarkdown"
	CodeMissingRequiredPart     Code = "MissingRequiredPart"
	CodeMissingNamedStyle       Code = "MissingNamedStyle"
	CodeUnknownStyleID          Code = "UnknownStyleId"
	CodePlaceholderNotFound     Code = "PlaceholderNotFound"
	CodePlaceholderNotExclusive Code = "PlaceholderNotExclusive"
	CodeUnrecognizedStyle       Code = "UnrecognizedStyle"
	CodeMetadataMissing         Code = "MetadataMissing"
	CodeMetadataWrongType       Code = "MetadataWrongType"
	CodeUnsupportedImage        Code = "UnsupportedImage"
	CodeAmbiguousChild          Code = "AmbiguousChild"
	CodeAmbiguousPart           Code = "AmbiguousPart"
	CodeUseAfterInvalidation    Code = "UseAfterInvalidation"
)

// Error is the concrete error type returned by the engine.
type Error struct {
	Kind    Kind
	Code    Code
	Op      string // operation that failed, e.g. "parse" or "reconcile styles"
	Subject string // offending style name, dotted metadata path, part name, marker...
	Detail  string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	if e.Subject != "" {
		fmt.Fprintf(&b, " of '%s'", e.Subject)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrMalformedInput:
		return e.Kind == KindMalformedInput
	case ErrMissingResource:
		return e.Kind == KindMissingResource
	case ErrAmbiguousMatch:
		return e.Kind == KindAmbiguousMatch
	case ErrUseAfterInvalidation:
		return e.Kind == KindUseAfterInvalidation
	}
	return false
}

// New creates an error of the given kind and code.
func New(kind Kind, code Code, op, subject, detail string) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Subject: subject, Detail: detail}
}

// Wrap creates an error of the given kind and code around a cause.
func Wrap(kind Kind, code Code, op, subject string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Subject: subject, Cause: cause}
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Code == code {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// IsKind reports whether err matches the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ContextError adds pipeline context to an existing error
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	var contextParts []string
	for k, v := range e.Context {
		contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(contextParts)

	if len(contextParts) > 0 {
		return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(contextParts, ", "), e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps an error with additional context. A nil error stays nil.
func WithContext(err error, operation string, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{
		Operation: operation,
		Context:   context,
		Cause:     err,
	}
}

// MultiError collects multiple errors
type MultiError struct {
	errors []error
}

// NewMultiError creates a new multi-error collector
func NewMultiError() *MultiError {
	return &MultiError{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collection (ignores nil errors)
func (m *MultiError) Add(err error) {
	if err != nil {
		m.errors = append(m.errors, err)
	}
}

// Len returns the number of errors
func (m *MultiError) Len() int {
	return len(m.errors)
}

// Err returns the multi-error, the single collected error, or nil if empty
func (m *MultiError) Err() error {
	if len(m.errors) == 0 {
		return nil
	}
	if len(m.errors) == 1 {
		return m.errors[0]
	}
	return m
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.errors
}

func (m *MultiError) Error() string {
	if len(m.errors) == 0 {
		return "no errors"
	}

	if len(m.errors) == 1 {
		return m.errors[0].Error()
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d errors occurred:", len(m.errors)))
	for i, err := range m.errors {
		parts = append(parts, fmt.Sprintf("  [%d] %v", i+1, err))
	}
	return strings.Join(parts, "\n")
}
