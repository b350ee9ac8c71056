package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
)

type staticTokens map[string]uuid.UUID

func (s staticTokens) ParseAccess(token string) (uuid.UUID, string, error) {
	id, ok := s[token]
	if !ok {
		return uuid.Nil, "", errors.New("bad token")
	}
	return id, "CREATOR", nil
}

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAndRoleGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()
	r := gin.New()
	r.GET("/me", AuthMiddleware(staticTokens{"good": userID}), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(ContextUserIDKey).(uuid.UUID).String())
	})
	r.GET("/admin", AuthMiddleware(staticTokens{"good": userID}), RequireRole("ADMIN"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer bad"}).Code)

	w := serve(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer good"}).Code)
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/conflict", func(c *gin.Context) { _ = c.Error(apperror.ErrStaleState) })
	r.GET("/raw", func(c *gin.Context) { _ = c.Error(errors.New("pq: connection refused")) })

	w := serve(r, http.MethodGet, "/conflict", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), apperror.ErrStaleState.Message)

	w = serve(r, http.MethodGet, "/raw", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestStatusOf(t *testing.T) {
	status, msg := StatusOf(apperror.ErrInsufficientFunds)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, apperror.ErrInsufficientFunds.Message, msg)

	status, msg = StatusOf(apperror.Wrap(errors.New("boom"), apperror.ErrCodeInternal, "sql: select failed"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, internalMessage, msg)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/limited", RateLimitMiddleware("test", 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/limited", nil).Code)
	w := serve(r, http.MethodGet, "/limited", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/limited", nil).Code)
}

func TestCORSAndUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.cutflow.test"}))
	r.GET("/orders/:id", UUIDValidator("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodOptions, "/orders/x", map[string]string{"Origin": "https://app.cutflow.test"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.cutflow.test", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/orders/"+uuid.NewString(), map[string]string{"Origin": "https://evil.test"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/orders/not-a-uuid", nil).Code)
}
