package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	FetchFailed      Kind = "fetch_failed"
	ExportFailed     Kind = "export_failed"
	ExportInProgress Kind = "export_in_progress"
	ValidationFailed Kind = "validation_failed"
	Unauthorized     Kind = "unauthorized"
	NotFound         Kind = "not_found"
	Internal         Kind = "internal"
)

const defaultPublicMsg = "An unexpected error occurred."

// AppError carries a Kind, a message safe to show to the user and the
// underlying cause.
type AppError struct {
	Kind      Kind
	PublicMsg string
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.PublicMsg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(kind Kind, publicMsg string, err error) *AppError {
	return &AppError{Kind: kind, PublicMsg: publicMsg, Err: err}
}

func FetchErr(publicMsg string, err error) *AppError {
	return New(FetchFailed, publicMsg, err)
}

func ExportErr(publicMsg string, err error) *AppError {
	return New(ExportFailed, publicMsg, err)
}

func InProgressErr(publicMsg string) *AppError {
	return New(ExportInProgress, publicMsg, nil)
}

func ValidationErr(publicMsg string) *AppError {
	return New(ValidationFailed, publicMsg, nil)
}

func UnauthorizedErr(publicMsg string) *AppError {
	return New(Unauthorized, publicMsg, nil)
}

func NotFoundErr(publicMsg string) *AppError {
	return New(NotFound, publicMsg, nil)
}

// Wrap hides err behind the generic message as an internal error.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(Internal, defaultPublicMsg, err)
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case ValidationFailed:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case ExportInProgress:
		return http.StatusConflict
	case FetchFailed, ExportFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return defaultPublicMsg
}
