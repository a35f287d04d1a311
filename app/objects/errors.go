package objects

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	CodeValidation        = "ValidationError"
	CodeNotFound          = "NotFound"
	CodeUnauthorized      = "Unauthorized"
	CodeForbidden         = "Forbidden"
	CodeRateLimited       = "RateLimited"
	CodeExecution         = "ExecutionError"
	CodeAmbiguousContext  = "AmbiguousContext"
	CodeUnsupportedAction = "UnsupportedAction"
	CodeInternal          = "InternalError"
)

// ValidationError carries field level detail, keyed by field path.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	return fmt.Sprintf("%s (%s)", msg, strings.Join(parts, "; "))
}

func NewValidationError(message string, fields map[string]string) *ValidationError {
	if fields == nil {
		fields = map[string]string{}
	}
	return &ValidationError{Message: message, Fields: fields}
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason
}

type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return "forbidden: " + e.Reason
}

type RateLimitedError struct {
	Limit   int
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit of %d calls exceeded, window resets at %s", e.Limit, e.ResetAt.Format(time.RFC3339))
}

// ExecutionError wraps the failure of a single action handler.
type ExecutionError struct {
	Action string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

type AmbiguousContextError struct {
	Reason string
}

func (e *AmbiguousContextError) Error() string {
	return "ambiguous user context: " + e.Reason
}

type UnsupportedActionError struct {
	Action string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("action %q is not supported", e.Action)
}

func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, gorm.ErrRecordNotFound)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}

func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

func IsRateLimited(err error) bool {
	var re *RateLimitedError
	return errors.As(err, &re)
}

func IsAmbiguousContext(err error) bool {
	var ae *AmbiguousContextError
	return errors.As(err, &ae)
}

func IsUnsupportedAction(err error) bool {
	var ue *UnsupportedActionError
	return errors.As(err, &ue)
}

func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// ErrorCode maps err onto the code reported in response envelopes.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidationError(err):
		return CodeValidation
	case IsNotFoundError(err):
		return CodeNotFound
	case IsUnauthorized(err):
		return CodeUnauthorized
	case IsForbidden(err):
		return CodeForbidden
	case IsRateLimited(err):
		return CodeRateLimited
	case IsAmbiguousContext(err):
		return CodeAmbiguousContext
	case IsUnsupportedAction(err):
		return CodeUnsupportedAction
	case IsExecutionError(err):
		return CodeExecution
	}
	return CodeInternal
}

func HTTPStatus(err error) int {
	switch ErrorCode(err) {
	case "":
		return http.StatusOK
	case CodeValidation, CodeAmbiguousContext, CodeUnsupportedAction, CodeExecution:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// notFound folds gorm's sentinel into a NotFoundError.
func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return err
}
