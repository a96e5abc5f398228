// Package api exposes the execution pipeline over HTTP using echo,
// the same framework the teacher's sandbox API was built on. The
// surface is intentionally thin: request parsing, auth, and error
// mapping live here; all behavior lives in internal/pipeline.
package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/isolatesandbox/isolate-sandbox/internal/domain"
	"github.com/isolatesandbox/isolate-sandbox/internal/pipeline"
	"github.com/isolatesandbox/isolate-sandbox/internal/registry"
	"github.com/labstack/echo/v4"
)

// Handler binds the pipeline and registry to the HTTP surface.
type Handler struct {
	pipeline *pipeline.Pipeline
	registry *registry.Registry
	apiKey   string
}

// NewHandler returns a Handler. An empty apiKey disables auth.
func NewHandler(p *pipeline.Pipeline, reg *registry.Registry, apiKey string) *Handler {
	return &Handler{pipeline: p, registry: reg, apiKey: apiKey}
}

// RegisterRoutes mounts the service's routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)

	protected := e.Group("")
	if h.apiKey != "" {
		protected.Use(h.authMiddleware)
	}

	protected.GET("/languages", h.listLanguages)
	protected.POST("/execute", h.execute)
	protected.GET("/boxes/:id/files", h.listFiles)
	protected.GET("/boxes/:id/files/:name", h.getFile)
	protected.DELETE("/boxes/:id", h.deleteBox)
}

// authMiddleware implements the spec's three-way outcome: missing
// header -> 403, wrong key -> 401, matching -> proceed. /health is
// registered outside this group and is never subject to it.
func (h *Handler) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get("X-API-Key")
		if key == "" {
			return echo.NewHTTPError(http.StatusForbidden, "missing API key")
		}
		if key != h.apiKey {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid API key")
		}
		return next(c)
	}
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listLanguages(c echo.Context) error {
	languages := h.registry.List()
	names := make([]string, 0, len(languages))
	for _, lang := range languages {
		names = append(names, lang.Name)
	}
	return c.JSON(http.StatusOK, map[string]any{"languages": names})
}

type executeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type executeResponse struct {
	Stdout   string                   `json:"stdout"`
	Stderr   string                   `json:"stderr"`
	Metadata domain.ExecutionMetadata `json:"metadata"`
	BoxID    int                      `json:"box_id"`
}

func (h *Handler) execute(c echo.Context) error {
	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}

	result, err := h.pipeline.Execute(c.Request().Context(), domain.ExecutionRequest{
		Language: req.Language,
		Code:     []byte(req.Code),
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, executeResponse{
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		Metadata: result.Metadata,
		BoxID:    result.SlotID,
	})
}

func (h *Handler) listFiles(c echo.Context) error {
	slotID, err := parseSlotID(c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	files, err := h.pipeline.ListFiles(c.Request().Context(), slotID)
	if err != nil {
		return errorResponse(c, err)
	}
	if files == nil {
		files = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"files": files})
}

func (h *Handler) getFile(c echo.Context) error {
	slotID, err := parseSlotID(c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	data, err := h.pipeline.ReadFile(c.Request().Context(), slotID, c.Param("name"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"name":    c.Param("name"),
		"content": base64.StdEncoding.EncodeToString(data),
	})
}

func (h *Handler) deleteBox(c echo.Context) error {
	slotID, err := parseSlotID(c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.pipeline.Release(c.Request().Context(), slotID); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "released"})
}

func parseSlotID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, domain.Wrapf(domain.ErrInvalidConfiguration, "invalid box id: %s", raw)
	}
	return id, nil
}

// errorResponse maps a core error to its HTTP status and a
// {"error": message} JSON body, per the spec's propagation policy.
func errorResponse(c echo.Context, err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return c.JSON(domain.HTTPStatus(err), map[string]string{"error": domain.Message(err)})
}
