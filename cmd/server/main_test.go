package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/config"
	"github.com/eventlodge/accommodation-backend/internal/handlers"
	"github.com/eventlodge/accommodation-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (p fakePinger) PingContext(context.Context) error { return p.err }

func testRouter(db fakePinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{CORS: config.CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}}

	return newRouter(cfg, logger, db, jwt.NewService("test-secret", "test-issuer", time.Hour),
		handlers.NewAccommodationHandler(nil, logger),
		handlers.NewAllocationHandler(nil, logger),
		handlers.NewPaymentHandler(nil, logger),
	)
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		w := httptest.NewRecorder()
		testRouter(fakePinger{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, version, body["version"])
	})

	t.Run("database down", func(t *testing.T) {
		w := httptest.NewRecorder()
		testRouter(fakePinger{err: errors.New("dial tcp: connection refused")}).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	router := testRouter(fakePinger{})

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/events/7c1e3a52-0d5b-4c57-9a53-3f1f0f3b5e11/accommodations?kind=HOSTEL"},
		{http.MethodPost, "/api/v1/accommodations/reserve"},
		{http.MethodPost, "/api/v1/allocations/hostel"},
		{http.MethodPost, "/api/v1/allocations/hotel"},
		{http.MethodGet, "/api/v1/allocations"},
		{http.MethodPost, "/api/v1/payments/checkout"},
		{http.MethodGet, "/api/v1/payments/ref-1"},
	}

	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(r.method, r.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}
