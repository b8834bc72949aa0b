package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiv1 "github.com/ManuelReschke/Agape/internal/api/v1"
	"github.com/ManuelReschke/Agape/internal/pkg/middleware"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	t.Setenv("CACHE_HOST", "")
	app := fiber.New()
	InstallRouter(app, apiv1.NewAPIServer(apiv1.Services{}), middleware.Admin("ops", "secret"))
	return app
}

func get(t *testing.T, app *fiber.App, path string) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestInstallRouter(t *testing.T) {
	app := newApp(t)

	assert.Equal(t, http.StatusOK, get(t, app, "/health"))
	assert.Equal(t, http.StatusOK, get(t, app, "/api/v1/ping"))
	assert.Equal(t, http.StatusNotFound, get(t, app, "/api/v2/ping"))
}

func TestApiRateLimit(t *testing.T) {
	t.Setenv("API_RATE_LIMIT", "2")
	app := newApp(t)

	assert.Equal(t, http.StatusOK, get(t, app, "/api/v1/ping"))
	assert.Equal(t, http.StatusOK, get(t, app, "/api/v1/ping"))
	assert.Equal(t, http.StatusTooManyRequests, get(t, app, "/api/v1/ping"))

	// the health check is outside the limited group
	assert.Equal(t, http.StatusOK, get(t, app, "/health"))
}
