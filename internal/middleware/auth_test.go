package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhjj/staychat/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Интеграционные тесты, требуют живой Redis для черного списка токенов
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func newAuthRouter(rdb *redis.Client, jwtMgr *auth.JWTManager) *gin.Engine {
	r := gin.New()
	r.GET("/protected", AuthMiddleware(jwtMgr, rdb), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.MustGet(UserIDKey)})
	})
	r.GET("/ws", WSAuthMiddleware(jwtMgr, rdb), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.MustGet(UserIDKey)})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	rdb := newTestRedis(t)
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	r := newAuthRouter(rdb, jwtMgr)

	token, err := jwtMgr.Generate("Guest@Example.COM")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// Subject нормализуется до канонического id
	assert.Contains(t, w.Body.String(), "guest@example.com")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareBlacklist(t *testing.T) {
	rdb := newTestRedis(t)
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	r := newAuthRouter(rdb, jwtMgr)

	token, err := jwtMgr.Generate("guest@example.com")
	require.NoError(t, err)
	require.NoError(t, rdb.Set(context.Background(), "blacklist:"+token, "1", time.Minute).Err())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWSAuthMiddlewareQueryToken(t *testing.T) {
	rdb := newTestRedis(t)
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	r := newAuthRouter(rdb, jwtMgr)

	token, err := jwtMgr.Generate("guest@example.com")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
