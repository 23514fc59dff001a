package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newLoggedRouter := func(logBuffer *bytes.Buffer) *gin.Engine {
		testLogger := slog.New(slog.NewJSONHandler(logBuffer, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		router := gin.New()
		router.Use(CorrelationID())
		router.Use(Logger(testLogger))
		return router
	}

	t.Run("LogsRequestDetails", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := newLoggedRouter(&logBuffer)
		router.GET("/payouts_log", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		req, _ := http.NewRequest(http.MethodGet, "/payouts_log?limit=50", nil)
		req.Header.Set("User-Agent", "test-agent")
		testCorrelationID := uuid.New().String()
		req.Header.Set(CorrelationIDHeader, testCorrelationID)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		logOutput := logBuffer.String()
		assert.NotEmpty(t, logOutput, "Log output should not be empty")

		assert.Contains(t, logOutput, `"level":"INFO"`)
		assert.Contains(t, logOutput, `"msg":"HTTP request"`)
		assert.Contains(t, logOutput, `"method":"GET"`)
		assert.Contains(t, logOutput, `"path":"/payouts_log?limit=50"`)
		assert.Contains(t, logOutput, `"status":200`)
		assert.Contains(t, logOutput, `"latency":`)
		assert.Contains(t, logOutput, `"client_ip":`)
		assert.Contains(t, logOutput, `"user_agent":"test-agent"`)
		assert.Contains(t, logOutput, `"correlation_id":"`+testCorrelationID+`"`)
	})

	t.Run("LogsErrorStatuses", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := newLoggedRouter(&logBuffer)
		router.POST("/failing", func(c *gin.Context) {
			c.String(http.StatusServiceUnavailable, "unavailable")
		})

		req, _ := http.NewRequest(http.MethodPost, "/failing", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		logOutput := logBuffer.String()
		assert.Contains(t, logOutput, `"method":"POST"`)
		assert.Contains(t, logOutput, `"status":503`)
		assert.Contains(t, logOutput, `"correlation_id":`)
	})

	t.Run("SkipsHealthProbes", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := newLoggedRouter(&logBuffer)
		router.GET("/health", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, logBuffer.String(), "health checks should not be logged")
	})
}
