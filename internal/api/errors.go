package api

import (
	"errors"
	"net/http"

	"gavel/internal/workers"
)

// HTTPStatus maps domain sentinel errors onto HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, workers.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workers.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, workers.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, workers.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, workers.ErrWorker):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
