package convert

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Kind classifies why a conversion produced no result
type Kind string

const (
	KindReference Kind = "reference" // No remote reference could be derived
	KindTransport Kind = "transport" // Request could not be sent or answered
	KindStatus    Kind = "status"    // Service answered with a non-200 status
	KindMalformed Kind = "malformed" // Body is not a JSON object
	KindIO        Kind = "io"        // Source document could not be read
)

// Strategy names a way of asking the service for a conversion
type Strategy string

const (
	StrategyReference Strategy = "reference"
	StrategyContent   Strategy = "content"
)

// Error is a typed conversion failure
type Error struct {
	Kind       Kind
	Strategy   Strategy
	Document   string
	StatusCode int    // Set for KindStatus
	Body       string // Truncated response body, set for KindStatus and KindMalformed
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("conversion of %s failed (%s)", e.Document, e.Kind)
	if e.Strategy != "" {
		msg = string(e.Strategy) + " " + msg
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += fmt.Sprintf(": %s", e.Body)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so sentinels such as ErrIO
// work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Document == "" && t.Strategy == ""
}

// Sentinels for errors.Is
var (
	ErrReference = &Error{Kind: KindReference}
	ErrTransport = &Error{Kind: KindTransport}
	ErrStatus    = &Error{Kind: KindStatus}
	ErrMalformed = &Error{Kind: KindMalformed}
	ErrIO        = &Error{Kind: KindIO}
)

// KindOf returns the failure kind of err, or "" when err is not a conversion error
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
