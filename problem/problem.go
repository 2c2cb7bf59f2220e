package problem

import (
	"errors"
	"net/http"
)

const baseURL = "https://gleamops.app/errors"

// Problem is an RFC 9457 problem-details body. All API errors use this shape.
// Code is machine-readable; Detail is for humans and operators.
type Problem struct {
	Type     string       `json:"type"`
	Code     string       `json:"code"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p *Problem) Error() string {
	return p.Code + ": " + p.Detail
}

func New(code string, title string, status int, detail string) *Problem {
	return &Problem{
		Type:   baseURL + "/" + code,
		Code:   code,
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// Error catalog. Codes follow the shared error catalog; SHIFT_* codes belong
// to the shifts-time module.

func Unauthenticated() *Problem {
	return New("AUTH_001", "Unauthorized", http.StatusUnauthorized, "Authentication required")
}

func Forbidden() *Problem {
	return New("AUTH_002", "Forbidden", http.StatusForbidden, "You do not have permission for this action")
}

func FeatureDisabled(detail string) *Problem {
	return New("SHIFT_001", "Feature disabled", http.StatusNotFound, detail)
}

func Validation(detail string) *Problem {
	return New("SHIFT_002", "Invalid request", http.StatusBadRequest, detail)
}

func NotFound(detail string) *Problem {
	return New("SHIFT_003", "Not found", http.StatusNotFound, detail)
}

func Conflict(detail string) *Problem {
	return New("SHIFT_004", "Conflict", http.StatusConflict, detail)
}

// SystemFailure preserves the underlying persistence error message: operators
// need the original detail, not a generic message.
func SystemFailure(err error) *Problem {
	detail := "internal error"
	if err != nil {
		detail = err.Error()
	}
	return New("SYS_002", "Internal error", http.StatusInternalServerError, detail)
}

// FromError maps an error to a Problem, defaulting to SystemFailure for
// anything that isn't already one.
func FromError(err error) *Problem {
	var p *Problem
	if errors.As(err, &p) {
		return p
	}
	return SystemFailure(err)
}
