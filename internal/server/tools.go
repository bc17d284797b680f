package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Kris4js/WildGooseAgent/internal/skills"
	"github.com/Kris4js/WildGooseAgent/internal/tools"
)

// ToolsHandler lists the registered tool catalog.
type ToolsHandler struct {
	Registry *tools.Registry
}

type toolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

func (h *ToolsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.GET("", h.list)
}

func (h *ToolsHandler) list(c echo.Context) error {
	out := make([]toolInfo, 0)
	for _, t := range h.Registry.List() {
		out = append(out, toolInfo{Name: t.Name(), Description: t.Description(), InputSchema: t.InputSchema()})
	}
	return c.JSON(http.StatusOK, out)
}

// SkillsHandler lists discovered skills and serves their instructions.
type SkillsHandler struct {
	Registry *skills.Registry
}

type skillInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

type skillDetail struct {
	skillInfo
	Instructions string `json:"instructions"`
}

func (h *SkillsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.GET("", h.list)
	g.GET("/:name", h.get)
}

func (h *SkillsHandler) list(c echo.Context) error {
	discovered, err := h.Registry.Discover()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]skillInfo, 0, len(discovered))
	for _, s := range discovered {
		out = append(out, skillInfo{Name: s.Name, Description: s.Description, Source: string(s.Source)})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SkillsHandler) get(c echo.Context) error {
	s, err := h.Registry.Get(c.Param("name"))
	if errors.Is(err, skills.ErrSkillNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "skill not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, skillDetail{
		skillInfo:    skillInfo{Name: s.Name, Description: s.Description, Source: string(s.Source)},
		Instructions: s.Instructions,
	})
}
