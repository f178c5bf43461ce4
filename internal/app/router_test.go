package app

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadflow-service/internal/config"
	dataHandler "leadflow-service/internal/handlers/distribution"
	statsHandler "leadflow-service/internal/handlers/stats"
	wsHandler "leadflow-service/internal/handlers/websocket"
	"leadflow-service/internal/middleware"
	"leadflow-service/internal/pkg/jwt"
	"leadflow-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouterProtectsDataRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	verifier := jwt.NewVerifier(&key.PublicKey, "identity", "leadflow")

	r := gin.New()
	SetupRouter(r, zap.NewNop(), config.AppConfig{ImportRateLimit: 5}, &Handlers{
		DataHandler:    dataHandler.NewDataHandler(nil, 1<<20, zap.NewNop()),
		StatsHandler:   statsHandler.NewStatsHandler(nil),
		WSHandler:      wsHandler.NewWebSocketHandler(websocket.NewHub(verifier, nil, zap.NewNop()), nil, zap.NewNop()),
		AuthMiddleware: middleware.NewAuthMiddleware(verifier, nil, zap.NewNop()),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/admin/data/import"},
		{http.MethodPost, "/api/v1/admin/data/assign/tl"},
		{http.MethodGet, "/api/v1/admin/data/stats"},
		{http.MethodGet, "/api/v1/admin/tl/3/stats"},
		{http.MethodPost, "/api/v1/tl/data/distribute"},
		{http.MethodGet, "/api/v1/tl/data"},
		{http.MethodGet, "/api/v1/data/my"},
		{http.MethodPut, "/api/v1/data/abc/status"},
		{http.MethodGet, "/api/v1/data/abc"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}
}
