package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrUnrecognizedResponse marks a 2xx body whose shape the client cannot map.
var ErrUnrecognizedResponse = errors.New("unrecognized response shape")

// Error is a non-2xx answer from the ticketing API.
type Error struct {
	Status  int
	Message string
	Body    []byte
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

type errorBody struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

func newError(status int, body []byte) *Error {
	return &Error{Status: status, Message: messageFromBody(body), Body: body}
}

// messageFromBody pulls a human readable message out of a structured error
// body. Field errors are used when no top level message exists.
func messageFromBody(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(parsed.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(parsed.Error); msg != "" {
		return msg
	}
	fields := make([]string, 0, len(parsed.Errors))
	for field := range parsed.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if msgs := parsed.Errors[field]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return ""
}

func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func IsStatus(err error, status int) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == status
}

func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

func IsConflict(err error) bool {
	return IsStatus(err, http.StatusConflict)
}

// Message returns the server supplied message of err, if any.
func Message(err error) string {
	if apiErr, ok := AsError(err); ok {
		return apiErr.Message
	}
	return ""
}
