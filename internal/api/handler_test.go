package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/isolatesandbox/isolate-sandbox/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestAuthMiddlewareOutcomes(t *testing.T) {
	h := &Handler{apiKey: "secret"}
	next := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/languages", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := h.authMiddleware(next)(c)
	he, ok := err.(*echo.HTTPError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)

	req = httptest.NewRequest(http.MethodGet, "/languages", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	err = h.authMiddleware(next)(c)
	he, ok = err.(*echo.HTTPError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)

	req = httptest.NewRequest(http.MethodGet, "/languages", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	err = h.authMiddleware(next)(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthIsUnprotected(t *testing.T) {
	h := &Handler{apiKey: "secret"}
	e := echo.New()
	h.RegisterRoutes(e)

	// No X-API-Key header, yet auth is enabled: /health must still answer.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestParseSlotID(t *testing.T) {
	id, err := parseSlotID("3")
	assert.NoError(t, err)
	assert.Equal(t, 3, id)

	_, err = parseSlotID("-1")
	assert.Error(t, err)

	_, err = parseSlotID("not-a-number")
	assert.Error(t, err)
}

func TestErrorResponseMapsDomainErrors(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/languages", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := errorResponse(c, domain.Wrapf(domain.ErrLanguageNotFound, "cobol"))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "cobol")
}
