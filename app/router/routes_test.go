package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/outreach-autopilot/config"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandlers struct{}

func (stubHandlers) RunCampaign(c fiber.Ctx) error       { return c.SendStatus(fiber.StatusAccepted) }
func (stubHandlers) GetRun(c fiber.Ctx) error            { return c.SendStatus(fiber.StatusAccepted) }
func (stubHandlers) ListRunEvents(c fiber.Ctx) error     { return c.SendStatus(fiber.StatusAccepted) }
func (stubHandlers) DownloadRunReport(c fiber.Ctx) error { return c.SendStatus(fiber.StatusAccepted) }
func (stubHandlers) Open(c fiber.Ctx) error              { return c.SendStatus(fiber.StatusAccepted) }
func (stubHandlers) Reply(c fiber.Ctx) error             { return c.SendStatus(fiber.StatusAccepted) }
func (stubHandlers) Unsubscribe(c fiber.Ctx) error       { return c.SendStatus(fiber.StatusAccepted) }

func newTestRouter(t *testing.T, mutate func(*config.ProductionConfig)) *fiber.App {
	t.Helper()
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("LOG_ENABLE_ACCESS", "false")
	cfg, err := config.LoadProductionConfig()
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}
	r := NewFiberRouter(cfg, stubHandlers{}, stubHandlers{})
	r.SetupRoutes()
	return r.GetApp()
}

func send(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRoutes(t *testing.T) {
	app := newTestRouter(t, nil)

	t.Run("Health", func(t *testing.T) {
		resp := send(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

		var body struct {
			Success bool           `json:"success"`
			Data    map[string]any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.Success)
		assert.Equal(t, "ok", body.Data["status"])
	})

	t.Run("OpsRoutesMounted", func(t *testing.T) {
		resp := send(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/autopilot/campaigns/1/run", nil))
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

		resp = send(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/engagement/unsubscribe", nil))
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})

	t.Run("NotFound", func(t *testing.T) {
		resp := send(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Metrics", func(t *testing.T) {
		resp := send(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "http_requests_total")
	})
}

func TestAPIKeyMiddleware(t *testing.T) {
	app := newTestRouter(t, func(cfg *config.ProductionConfig) {
		cfg.Security.RequireAPIKey = true
		cfg.Security.AllowedAPIKeys = []string{"k1"}
	})

	t.Run("Missing", func(t *testing.T) {
		resp := send(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/autopilot/runs/x", nil))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/autopilot/runs/x", nil)
		req.Header.Set("X-API-Key", "k2")
		resp := send(t, app, req)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/autopilot/runs/x", nil)
		req.Header.Set("X-API-Key", "k1")
		resp := send(t, app, req)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})

	t.Run("HealthIsOpen", func(t *testing.T) {
		resp := send(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
