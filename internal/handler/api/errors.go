package api

import (
	"errors"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/service/upstream"
	"MacroPulse/internal/usecase"
	xhttp "MacroPulse/pkg/http"
)

// toAppError maps use case errors onto the response envelope. An open
// circuit wins over the not-found family because it wraps through
// ErrPriceUnavailable.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, upstream.ErrCircuitOpen):
		return xhttp.UnavailableError("upstream data source unavailable").WithError(err)
	case errors.Is(err, usecase.ErrStoreDisabled):
		return xhttp.UnavailableError("dataset store disabled").WithError(err)
	case errors.Is(err, usecase.ErrPriceUnavailable),
		errors.Is(err, usecase.ErrNoData),
		errors.Is(err, domrepo.ErrNotFound):
		return xhttp.NotFoundError("no data for ticker").WithError(err)
	case errors.Is(err, models.ErrInsufficientHistory),
		errors.Is(err, models.ErrMissingInput):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
