package receiver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(handler EventHandler) *Server {
	return NewServer(ServerConfig{
		Port:       0,
		Production: true,
		Logger:     zap.NewNop(),
		Handler:    handler,
	})
}

func TestHealth(t *testing.T) {
	server := newTestServer(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestEventHandedToHandler(t *testing.T) {
	notification := `<Envelope><Body><Notify><Message>IsMotion=true</Message></Notify></Body></Envelope>`

	var received []byte
	server := newTestServer(func(body []byte) {
		received = body
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(notification))
	server.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, notification, string(received))
}

func TestEventWithoutHandler(t *testing.T) {
	server := newTestServer(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader("<Envelope/>"))
	server.router.ServeHTTP(w, req)

	// The camera drops the subscription on non-2xx answers, so the body is
	// acknowledged even with nothing registered to consume it.
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownRouteRejected(t *testing.T) {
	server := newTestServer(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/other", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
