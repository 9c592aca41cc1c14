package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const adminTokenHeader = "X-Admin-Token"

// AdminAuthMiddleware guards the provisioning endpoints with a static
// deployment-scoped token.
type AdminAuthMiddleware struct {
	token  string
	logger *logrus.Logger
}

func NewAdminAuthMiddleware(token string, logger *logrus.Logger) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{token: token, logger: logger}
}

func (m *AdminAuthMiddleware) RequireAdminToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			presented := c.Request().Header.Get(adminTokenHeader)
			if m.token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(m.token)) != 1 {
				if m.logger != nil {
					m.logger.WithField("path", c.Path()).Warn("rejected admin request with bad token")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid admin token")
			}
			return next(c)
		}
	}
}
