package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ServiceAuthHeader carries the shared service-to-service token
const ServiceAuthHeader = "ServiceAuthorization"

// RequireServiceAuth returns a middleware that verifies the shared
// service token on every request. The full S2S auth infrastructure lives
// outside this gateway; this check is the local gate.
func RequireServiceAuth(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			provided := c.Request().Header.Get(ServiceAuthHeader)
			if provided == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing service authorization")
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid service authorization")
			}
			return next(c)
		}
	}
}
