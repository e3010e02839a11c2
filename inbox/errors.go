package inbox

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorFetchFailed  ErrorCode = "FETCH_FAILED"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("inbox: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("inbox: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// IsValidation reports whether err is a refusal caused by missing identifiers.
func IsValidation(err error) bool {
	return hasCode(err, ErrorInvalidInput)
}

// IsFetch reports whether err came from a failed upstream fetch.
func IsFetch(err error) bool {
	return hasCode(err, ErrorFetchFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func validate(clinicID, key string) error {
	if strings.TrimSpace(clinicID) == "" {
		return newError(ErrorInvalidInput, "clinic id is required", nil)
	}
	if strings.TrimSpace(key) == "" {
		return newError(ErrorInvalidInput, "conversation key is required", nil)
	}
	return nil
}
