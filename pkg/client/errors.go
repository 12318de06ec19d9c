package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// MaxMessageLength bounds user-facing messages, in characters.
const MaxMessageLength = 200

const (
	MessageBadRequest   = "The request was invalid."
	MessageUnauthorized = "Your session has expired. Please sign in again."
	MessageForbidden    = "You do not have permission to do that."
	MessageNotFound     = "The requested resource was not found."
	MessageConflict     = "The resource was modified by someone else."
	MessageServer       = "The server encountered an error. Please try again later."
	MessageNetwork      = "Connection lost. Check your network and try again."
	MessageUnknown      = "Something went wrong."
	MessageSecretName   = "Secret names must start with a lowercase letter and use only lowercase letters, digits and underscores (at most 63 characters)."
)

// ErrInvalidSecretName is returned by CreateSecret before any request is made.
var ErrInvalidSecretName = errors.New("invalid secret name")

// NetworkError means no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a response with a non-2xx status.
type APIError struct {
	Op         string
	StatusCode int
	Body       []byte
	// Message is the human-readable message supplied by the body, if any.
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

// NotFound reports whether the resource does not exist.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// UnknownError is any other failure, such as an undecodable response.
type UnknownError struct {
	Op  string
	Err error
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnknownError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.NotFound()
}

// IsCanceled reports whether err comes from the caller abandoning the request.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

var bodyMessagePaths = []string{"message", "detail", "error.message", "error"}

func bodyMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}

	for _, path := range bodyMessagePaths {
		result := gjson.GetBytes(body, path)
		if result.Type == gjson.String && result.Str != "" {
			return result.Str
		}
	}

	return ""
}

func statusMessage(code int) string {
	switch {
	case code == http.StatusBadRequest:
		return MessageBadRequest
	case code == http.StatusUnauthorized:
		return MessageUnauthorized
	case code == http.StatusForbidden:
		return MessageForbidden
	case code == http.StatusNotFound:
		return MessageNotFound
	case code == http.StatusConflict:
		return MessageConflict
	case code >= http.StatusInternalServerError:
		return MessageServer
	}

	return MessageUnknown
}

// UserMessage turns an error from this package into a message for a person.
// It returns "" for nil and for canceled requests, which have nobody to tell.
func UserMessage(err error) string {
	if err == nil || IsCanceled(err) {
		return ""
	}

	var (
		apiErr     *APIError
		networkErr *NetworkError
		message    string
	)

	switch {
	case errors.As(err, &apiErr):
		message = apiErr.Message
		if message == "" {
			message = statusMessage(apiErr.StatusCode)
		}
	case errors.As(err, &networkErr), errors.Is(err, context.DeadlineExceeded):
		message = MessageNetwork
	case errors.Is(err, ErrInvalidSecretName):
		message = MessageSecretName
	default:
		message = MessageUnknown
	}

	return Truncate(message, MaxMessageLength)
}

// Truncate shortens s to at most limit characters, ending with an ellipsis when cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	if limit <= 0 {
		return ""
	}

	runes := []rune(s)

	return string(runes[:limit-1]) + "…"
}
