package workflow

import (
	"errors"
	"fmt"

	"autoflow/app/objects"
)

// ActionResult is the envelope every dispatch returns, success or not.
type ActionResult struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message"`
	Error   string            `json:"error,omitempty"`
	Details map[string]string `json:"details,omitempty"`

	err error
}

func succeeded(data interface{}, message string) ActionResult {
	return ActionResult{Success: true, Data: data, Message: message}
}

func failed(err error) ActionResult {
	r := ActionResult{
		Success: false,
		Error:   objects.ErrorCode(err),
		Message: err.Error(),
		err:     err,
	}
	if r.Error == objects.CodeInternal {
		r.Message = "internal error"
	}
	var verr *objects.ValidationError
	if errors.As(err, &verr) {
		r.Details = verr.Fields
	}
	return r
}

func (r ActionResult) IsSuccess() bool {
	return r.Success
}

// Err is the failure behind the envelope, nil on success.
func (r ActionResult) Err() error {
	return r.err
}

func (r ActionResult) String() string {
	return fmt.Sprintf("Result [success=%t, error=%s, message=%s]", r.Success, r.Error, r.Message)
}
