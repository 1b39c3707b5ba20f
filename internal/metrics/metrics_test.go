package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/v1/doctors/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/doctors/"+id, nil))
	}

	out := scrape(t, m)
	assert.Contains(t, out, `http_requests_total{method="GET",route="/api/v1/doctors/:id",status="200"} 2`)
	assert.Contains(t, out, `http_request_duration_seconds_count{method="GET",route="/api/v1/doctors/:id"} 2`)
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.AppointmentBooked("payment")
	m.PaymentStatus("COMPLETED")
	m.PaymentStatus("COMPLETED")
	m.ChatMessageSent()
	m.WebsocketOpened()
	m.WebsocketOpened()
	m.WebsocketClosed()

	out := scrape(t, m)
	assert.Contains(t, out, `appointments_booked_total{source="payment"} 1`)
	assert.Contains(t, out, `payments_total{status="COMPLETED"} 2`)
	assert.Contains(t, out, "chat_messages_total 1")
	assert.Contains(t, out, "websocket_connections 1")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AppointmentBooked("direct")
		m.PaymentStatus("FAILED")
		m.ChatMessageSent()
		m.WebsocketOpened()
		m.WebsocketClosed()
	})
}
