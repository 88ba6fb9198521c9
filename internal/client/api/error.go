package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Server error codes, as emitted in the response's detail field.
const (
	CodeEventNotFound   = "event_not_found"
	CodeAlreadyVerified = "already_verified"
	CodeNotVerified     = "not_verified"
	CodeNotEventTaker   = "not_event_taker"
	CodeNoData          = "no_data"
	CodeEventIDRequired = "event_id_required"
)

// Error is a non-2xx response from the backend, carrying the HTTP status and
// the server's error code when one was supplied.
type Error struct {
	Status int
	Code   string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("server error %d", e.Status)
}

// errorBody covers the two shapes the backend uses: FastAPI's {"detail": ...}
// and the auth routes' {"error": ...}.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Err    string          `json:"error"`
}

func parseError(resp *resty.Response) *Error {
	e := &Error{Status: resp.StatusCode()}

	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return e
	}
	if body.Err != "" {
		e.Code = body.Err
		return e
	}
	var detail string
	if json.Unmarshal(body.Detail, &detail) == nil {
		e.Code = detail
	}
	return e
}

// ErrorCode extracts the server error code from err, or "".
func ErrorCode(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// ErrorStatus extracts the HTTP status from err, or 0.
func ErrorStatus(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
