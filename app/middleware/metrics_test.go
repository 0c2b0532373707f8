package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/api/v1/campaigns":               "campaigns",
		"/api/v1/campaigns/12/start":      "campaigns",
		"/api/v1/conversations/3":         "conversations",
		"/api/v1/health":                  "health",
		"/api/v1/unknown":                 "other",
		"/webhooks/twilio/message":        "webhooks",
		"/storage/attachments/ME1.jpg":    "storage",
		"/metrics":                        "metrics",
		"/favicon.ico":                    "other",
		"/api/v2/campaigns":               "other",
		"/api/v1/campaignsX/12":           "other",
		"/api/v1/campaigns/dashboard/x/y": "campaigns",
	}
	for path, want := range tests {
		assert.Equal(t, want, RouteGroup(path), path)
	}
}

func TestMetrics_LabelsByRouteTemplate(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/api/v1/campaigns/:id", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	for _, target := range []string{"/api/v1/campaigns/7", "/api/v1/campaigns/8"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	count := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("campaigns", "GET", "/api/v1/campaigns/:id", "200"))
	assert.Equal(t, 2.0, count)
	assert.Equal(t, 0.0, testutil.ToFloat64(httpInFlight.WithLabelValues("campaigns")))
}
