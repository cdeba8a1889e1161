package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/swiftbook-app/swiftbook/internal/identity"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(code int) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    lower(http.StatusText(code)),
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest)
}

// NewValidationError reports the first failing field of a request body.
func NewValidationError(err error) *ApiError {
	e := NewBadRequestError()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e.Message = fmt.Sprintf("invalid field %q: %s", lower(verrs[0].Field()), verrs[0].Tag())
	}
	return e
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound)
}

func NewInternalServerError(err error) *ApiError {
	e := newApiError(http.StatusInternalServerError)
	e.Err = err
	return e
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden)
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict)
}

// errorFromDomain maps an error returned by the repository or directory
// onto its HTTP form.
func errorFromDomain(err error) *ApiError {
	switch {
	case identity.IsUnauthorized(err):
		return NewUnauthorizedError()
	case errors.Is(err, types.ErrForbidden):
		return NewForbiddenError()
	case errors.Is(err, types.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, types.ErrConflict):
		return NewConflictError()
	case errors.Is(err, types.ErrMalformedMessage), errors.Is(err, types.ErrInvalidMembers):
		e := NewBadRequestError()
		if errors.Is(err, types.ErrInvalidMembers) {
			e.Message = types.ErrInvalidMembers.Error()
		}
		return e
	default:
		return NewInternalServerError(err)
	}
}
