package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
)

func (s *Server) createClient(c echo.Context) error {
	var req client.CreateClientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	created, creds, err := s.clientSvc.CreateClient(c.Request().Context(), &req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// The secret is readable only in this response.
	return c.JSON(http.StatusCreated, map[string]any{
		"client":      created,
		"credentials": creds,
	})
}

func (s *Server) getClient(c echo.Context) error {
	id, err := clientIDParam(c)
	if err != nil {
		return err
	}
	cl, err := s.clientSvc.GetClient(c.Request().Context(), id)
	if err != nil {
		return clientHTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (s *Server) listClients(c echo.Context) error {
	limit, offset := paginationParams(c)
	clients, err := s.clientSvc.ListClients(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, clients)
}

func (s *Server) rotateClientCredentials(c echo.Context) error {
	id, err := clientIDParam(c)
	if err != nil {
		return err
	}
	creds, err := s.clientSvc.RotateCredentials(c.Request().Context(), id)
	if err != nil {
		return clientHTTPError(err)
	}
	return c.JSON(http.StatusOK, creds)
}

func (s *Server) activateClient(c echo.Context) error {
	return s.setClientActive(c, true)
}

func (s *Server) deactivateClient(c echo.Context) error {
	return s.setClientActive(c, false)
}

func (s *Server) setClientActive(c echo.Context, active bool) error {
	id, err := clientIDParam(c)
	if err != nil {
		return err
	}
	if err := s.clientSvc.SetClientActive(c.Request().Context(), id, active); err != nil {
		return clientHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func clientIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid client ID")
	}
	return id, nil
}

func clientHTTPError(err error) *echo.HTTPError {
	if errors.Is(err, client.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
