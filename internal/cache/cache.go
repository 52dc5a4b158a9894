// AngelaMos | 2026
// cache.go

package cache

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // G505: key fingerprint, not a security boundary
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/cinemadb/internal/config"
	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/middleware"
)

const (
	HeaderCache = "X-Cache"
	anonymous   = "anonymous"
	headerSize  = 8
)

// ResponseCache memoizes successful GET responses in Redis. Each resource
// owns a generation counter; bumping it orphans every cached page of that
// resource.
type ResponseCache struct {
	rdb *redis.Client
	cfg config.CacheConfig
}

func New(rdb *redis.Client, cfg config.CacheConfig) *ResponseCache {
	return &ResponseCache{rdb: rdb, cfg: cfg}
}

func (c *ResponseCache) enabled() bool {
	return c != nil && c.cfg.Enabled && c.rdb != nil
}

func (c *ResponseCache) Middleware(resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !c.enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			key, err := c.keyFor(ctx, resource, r)
			if err != nil {
				slog.Warn("response cache unavailable", "error", err, "resource", resource)
				next.ServeHTTP(w, r)
				return
			}

			if c.replay(ctx, w, key) {
				return
			}

			cw := &captureWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
				limit:          int64(c.cfg.MaxBodyBytes),
			}
			w.Header().Set(HeaderCache, "MISS")

			next.ServeHTTP(cw, r)

			if cw.status != http.StatusOK || cw.truncated() {
				return
			}

			payload, err := encodePayload(cw.status, w.Header(), cw.buf.Bytes())
			if err != nil {
				slog.Warn("encode cached response", "error", err, "key", key)
				return
			}

			if err := c.rdb.Set(context.WithoutCancel(ctx), key, payload, c.cfg.TTL).Err(); err != nil {
				slog.Warn("store cached response", "error", err, "key", key)
			}
		})
	}
}

func (c *ResponseCache) replay(ctx context.Context, w http.ResponseWriter, key string) bool {
	bs, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("read cached response", "error", err, "key", key)
		}
		return false
	}

	status, header, body, ok := decodePayload(bs)
	if !ok {
		return false
	}

	for k, vals := range header {
		if strings.EqualFold(k, "Content-Length") || strings.EqualFold(k, HeaderCache) {
			continue
		}
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(HeaderCache, "HIT")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response write
	_, _ = w.Write(body)

	return true
}

// Invalidate drops every cached response of resource.
func (c *ResponseCache) Invalidate(ctx context.Context, resource string) error {
	if !c.enabled() {
		return nil
	}

	if err := c.rdb.Incr(ctx, c.generationKey(resource)).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}

	return nil
}

// Purge deletes the stored entries of resource and returns how many were
// removed.
func (c *ResponseCache) Purge(ctx context.Context, resource string) (int, error) {
	if !c.enabled() {
		return 0, nil
	}

	if err := c.Invalidate(ctx, resource); err != nil {
		return 0, err
	}

	pattern := core.RedisKey(c.cfg.Prefix, resource, "*")
	genKey := c.generationKey(resource)

	removed := 0
	iter := c.rdb.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		if iter.Val() == genKey {
			continue
		}
		n, err := c.rdb.Unlink(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("unlink cache entry: %w", err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan cache entries: %w", err)
	}

	return removed, nil
}

func (c *ResponseCache) generationKey(resource string) string {
	return core.RedisKey(c.cfg.Prefix, resource, "gen")
}

func (c *ResponseCache) keyFor(ctx context.Context, resource string, r *http.Request) (string, error) {
	gen, err := c.rdb.Get(ctx, c.generationKey(resource)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("read cache generation: %w", err)
	}

	user := middleware.GetUserID(ctx)
	if user == "" {
		user = anonymous
	}

	return Key(c.cfg.Prefix, resource, gen, r.URL.Path, user, r.URL.Query()), nil
}

// Key builds the cache key for one request: the path, the caller and a
// normalized digest of the query parameters.
func Key(prefix, resource string, generation int64, path, user string, q url.Values) string {
	sum := sha1.Sum([]byte(path + "|" + user + "|" + QueryDigest(q))) //nolint:gosec // G401: fingerprint only
	return core.RedisKey(
		prefix,
		resource,
		"v"+strconv.FormatInt(generation, 10),
		hex.EncodeToString(sum[:]),
	)
}

// QueryDigest renders q with keys and values sorted, so parameter order
// never changes the digest.
func QueryDigest(q url.Values) string {
	normalized := make(url.Values, len(q))
	for k, vals := range q {
		sorted := append([]string(nil), vals...)
		sort.Strings(sorted)
		normalized[k] = sorted
	}
	return normalized.Encode()
}

type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
	size        int64
	limit       int64
}

func (cw *captureWriter) WriteHeader(code int) {
	if !cw.wroteHeader {
		cw.status = code
		cw.wroteHeader = true
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}

	if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))

	return cw.ResponseWriter.Write(b)
}

func (cw *captureWriter) truncated() bool {
	return cw.limit > 0 && cw.size > cw.limit
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize+len(hdrJSON)+len(body))
	//nolint:gosec // G115: HTTP status codes and header sizes fit in uint32
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	//nolint:gosec // G115: see above
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[headerSize:], hdrJSON)
	copy(out[headerSize+len(hdrJSON):], body)

	return out, nil
}

func decodePayload(bs []byte) (int, http.Header, []byte, bool) {
	if len(bs) < headerSize {
		return 0, nil, nil, false
	}

	status := int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || headerSize+hlen > len(bs) {
		return 0, nil, nil, false
	}

	header := make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[headerSize:headerSize+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}

	return status, header, bs[headerSize+hlen:], true
}
