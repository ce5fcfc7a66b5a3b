package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Kind classifies a failed backend call.
type Kind int

const (
	// KindTransport means no response was received.
	KindTransport Kind = iota
	// KindBackend means the backend answered with a non-success status.
	KindBackend
	// KindDecode means the response body did not match the expected schema.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindBackend:
		return "backend"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by every Client method that fails.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindBackend && e.Message != "":
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Message)
	case e.Kind == KindBackend:
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Cause)
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage prefers the backend's own error text and falls back otherwise.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindBackend && e.Message != "" {
		return e.Message
	}
	return fallback
}

func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindBackend && e.Status == http.StatusNotFound
}

// IsUnauthorized reports whether the backend refused the caller's credentials.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindBackend &&
		(e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// IsRetryable reports whether repeating an idempotent call could help.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindTransport || (e.Kind == KindBackend && e.Status >= 500)
}

const maxMessageLen = 500

// extractMessage pulls a human-readable message out of an error body: a JSON
// "message" or "error" field when present, else the trimmed plain text.
func extractMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if strings.HasPrefix(text, "{") {
		if err := json.Unmarshal(body, &obj); err == nil {
			if obj.Message != "" {
				return obj.Message
			}
			return obj.Error
		}
	}
	if strings.HasPrefix(text, "<") {
		return ""
	}
	if len(text) > maxMessageLen {
		n := maxMessageLen
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		text = text[:n]
	}
	return text
}
