package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/config"
)

// captureWriter tees the response body, up to limit bytes, while
// forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.truncated {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.truncated = true
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// cachedResponse is what is stored under a cache key.
type cachedResponse struct {
	Status int         `json:"s"`
	Header http.Header `json:"h"`
	Body   []byte      `json:"b"`
}

// cacheKey hashes the parts selected by the key strategy. The resolved
// path is used rather than the route pattern so events never share
// entries.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var tail string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		tail = r.URL.Path
	case "method_route":
		tail = r.Method + " " + r.URL.Path
	case "method_route_query":
		tail = r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery
	default:
		tail = r.URL.Path + "?" + r.URL.RawQuery
	}
	return fmt.Sprintf("%s:%x", cfg.Prefix, sha1.Sum([]byte(tail)))
}

// cacheScope names the set indexing every key cached for one event, or ""
// outside an event route.
func cacheScope(cfg config.CacheConfig, c echo.Context) string {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return ""
	}
	return cfg.Prefix + ":event:" + id
}

// NewRedisCache serves repeated reads from Redis. Only 200 responses whose
// body fit in MaxBodyBytes are stored.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg, c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var cr cachedResponse
				if json.Unmarshal(bs, &cr) == nil {
					h := c.Response().Header()
					for k, vals := range cr.Header {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						h[k] = vals
					}
					h.Set("X-Cache", "HIT")
					c.Response().WriteHeader(cr.Status)
					_, _ = c.Response().Write(cr.Body)
					return nil
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}
			payload, err := json.Marshal(cachedResponse{
				Status: cw.status,
				Header: c.Response().Header().Clone(),
				Body:   cw.buf.Bytes(),
			})
			if err == nil {
				// The request context may be cancelled once the body is out.
				bg := context.WithoutCancel(ctx)
				_, _ = rdb.TxPipelined(bg, func(p redis.Pipeliner) error {
					p.Set(bg, key, payload, cfg.TTL)
					if scope := cacheScope(cfg, c); scope != "" {
						p.SAdd(bg, scope, key)
						p.Expire(bg, scope, cfg.TTL)
					}
					return nil
				})
			}
			return nil
		}
	}
}

// NewCachePurge drops every cached read of the route's event once the
// wrapped request succeeds, so a reload is visible on the next read.
func NewCachePurge(cfg config.CacheConfig, rdb *redis.Client, log zerolog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}
			scope := cacheScope(cfg, c)
			if scope == "" || c.Response().Status >= http.StatusMultipleChoices {
				return nil
			}
			ctx := context.WithoutCancel(c.Request().Context())
			keys, err := rdb.SMembers(ctx, scope).Result()
			if err == nil {
				err = rdb.Del(ctx, append(keys, scope)...).Err()
			}
			if err != nil {
				log.Warn().Err(err).Str("scope", scope).Msg("cache purge failed")
			}
			return nil
		}
	}
}
