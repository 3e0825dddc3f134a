package http

import (
	"errors"
	"net/http"

	"skillquiz-service/internal/domain"
)

// statusFor maps a domain error kind to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
