package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Kris4js/WildGooseAgent/internal/contextstore"
)

// ContextHandler exposes the tool-output context store: full-text search
// over a query's records and retrieval of a single record.
type ContextHandler struct {
	Store contextstore.Store
}

func (h *ContextHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.GET("/:query_id/search", h.search)
	g.GET("/:query_id/records/:id", h.read)
}

func (h *ContextHandler) search(c echo.Context) error {
	queryID := c.Param("query_id")
	text := strings.TrimSpace(c.QueryParam("q"))
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	limit := 10
	if val := c.QueryParam("limit"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	pointers, err := h.Store.Search(c.Request().Context(), queryID, text, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if pointers == nil {
		pointers = []contextstore.Pointer{}
	}
	return c.JSON(http.StatusOK, pointers)
}

func (h *ContextHandler) read(c echo.Context) error {
	rec, err := h.Store.Read(c.Request().Context(), c.Param("query_id"), c.Param("id"))
	if errors.Is(err, contextstore.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}
