package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/config"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/testutil"
)

func TestRedisCache_ReloadPurgesEventReads(t *testing.T) {
	if !testutil.EnableIntegrationTest() {
		t.Skip("set RUN_INTEGRATION_TEST to run against Redis")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "test-cache-" + uuid.NewString(),
	}
	version := 1
	e := echo.New()
	g := e.Group("/v1/events/:id")
	g.GET("/gift-rules", func(c echo.Context) error {
		return c.String(http.StatusOK, "rules v"+strconv.Itoa(version))
	}, NewRedisCache(cfg, rdb))
	g.POST("/reload", func(c echo.Context) error {
		version++
		return c.NoContent(http.StatusOK)
	}, NewCachePurge(cfg, rdb, zerolog.Nop()))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/v1/events/77/gift-rules")
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	require.Equal(t, "rules v1", rec.Body.String())
	get("/v1/events/78/gift-rules")

	rec = get("/v1/events/77/gift-rules")
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	reload := httptest.NewRecorder()
	e.ServeHTTP(reload, httptest.NewRequest(http.MethodPost, "/v1/events/77/reload", nil))
	require.Equal(t, http.StatusOK, reload.Code)

	rec = get("/v1/events/77/gift-rules")
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	require.Equal(t, "rules v2", rec.Body.String())

	rec = get("/v1/events/78/gift-rules")
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"), "other events keep their entries")
	require.Equal(t, "rules v1", rec.Body.String())
}
