package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/admission"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/asset"
)

// secretHeader carries the client secret on every ingestion request.
const secretHeader = "X-Client-Secret"

func (s *Server) uploadAsset(c echo.Context) error {
	secret := c.Request().Header.Get(secretHeader)
	if secret == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing client secret")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable file field")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read file")
	}

	a, err := s.ingestionSvc.Upload(c.Request().Context(), secret, data, fileHeader.Filename)
	if err != nil {
		return ingestionHTTPError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (s *Server) listAssets(c echo.Context) error {
	secret := c.Request().Header.Get(secretHeader)
	if secret == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing client secret")
	}
	cl, err := s.credentials.Resolve(c.Request().Context(), secret)
	if err != nil {
		return ingestionHTTPError(err)
	}

	limit, offset := paginationParams(c)
	assets, err := s.ingestionSvc.ListAssets(c.Request().Context(), cl.ID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, assets)
}

func (s *Server) deleteAsset(c echo.Context) error {
	secret := c.Request().Header.Get(secretHeader)
	if secret == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing client secret")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid asset ID")
	}

	cl, err := s.credentials.Resolve(c.Request().Context(), secret)
	if err != nil {
		return ingestionHTTPError(err)
	}

	// Ownership check before the destructive call; foreign assets look like
	// missing ones.
	a, err := s.ingestionSvc.GetAsset(c.Request().Context(), id)
	if err != nil {
		return ingestionHTTPError(err)
	}
	if a.ClientID != cl.ID {
		return echo.NewHTTPError(http.StatusNotFound, asset.ErrNotFound.Error())
	}

	if err := s.ingestionSvc.Delete(c.Request().Context(), id); err != nil {
		return ingestionHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ingestionHTTPError maps the domain taxonomy onto HTTP status codes.
func ingestionHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, admission.ErrInvalidCredential):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, admission.ErrClientInactive):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, admission.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, admission.ErrAssetTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, admission.ErrFormatNotAllowed):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, admission.ErrQuotaExceeded):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, asset.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func paginationParams(c echo.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
