package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"courtpay_api/internal/services"
)

// errorResponse is the JSON body returned for every error
type errorResponse struct {
	Error     string `json:"error"`
	Reference string `json:"reference,omitempty"`
}

// JSONErrorHandler maps the typed domain errors onto HTTP status codes.
// Every error is returned to the caller; nothing money-affecting is
// swallowed here.
func JSONErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	body := errorResponse{Error: "internal server error"}

	var duplicateErr *services.DuplicatePaymentError
	var feeSetErr *services.InconsistentFeeSetError
	var notSettledErr *services.PaymentNotSettledError
	var transitionErr *services.InvalidTransitionError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &duplicateErr):
		code = http.StatusConflict
		body = errorResponse{Error: duplicateErr.Error(), Reference: duplicateErr.Reference}
	case errors.As(err, &feeSetErr):
		code = http.StatusUnprocessableEntity
		body = errorResponse{Error: feeSetErr.Error(), Reference: feeSetErr.PaymentReference}
	case errors.As(err, &notSettledErr):
		code = http.StatusConflict
		body = errorResponse{Error: notSettledErr.Error(), Reference: notSettledErr.Reference}
	case errors.As(err, &transitionErr):
		code = http.StatusConflict
		body = errorResponse{Error: transitionErr.Error(), Reference: transitionErr.Reference}
	case errors.Is(err, services.ErrMissingCaseIdentifier):
		code = http.StatusBadRequest
		body = errorResponse{Error: err.Error()}
	case errors.Is(err, services.ErrConcurrentStatusUpdate):
		code = http.StatusConflict
		body = errorResponse{Error: err.Error()}
	case errors.Is(err, services.ErrSequenceExhausted):
		// fatal and operator-visible, never retried
		body = errorResponse{Error: err.Error()}
	case errors.Is(err, gorm.ErrRecordNotFound):
		code = http.StatusNotFound
		body = errorResponse{Error: "resource not found"}
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			body = errorResponse{Error: msg}
		} else {
			body = errorResponse{Error: http.StatusText(code)}
		}
	}

	if code >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if jsonErr := c.JSON(code, body); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
