package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/kvrest/internal/cache/facade"
	"goflare.io/kvrest/internal/config"
	"goflare.io/kvrest/internal/models"
)

// Mock metrics for testing
type MockMetrics struct {
	paths []string
}

func (m *MockMetrics) RecordHTTPRequest(_ context.Context, _, path string, _ int, _ time.Duration) {
	m.paths = append(m.paths, path)
}

type testServer struct {
	router  http.Handler
	cache   *facade.Facade
	mr      *miniredis.Miniredis
	metrics *MockMetrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerOn(t, miniredis.RunT(t))
}

func newTestServerOn(t *testing.T, mr *miniredis.Miniredis) *testServer {
	t.Helper()

	cfg, err := config.NewConfig(
		config.WithLogger(zap.NewNop()),
		config.WithRetry(config.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1}),
	)
	require.NoError(t, err)

	f, err := facade.New(context.Background(), cfg, redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	metrics := &MockMetrics{}
	h := NewHandler(f, zap.NewNop())
	router := h.Routes(NewMiddleware(zap.NewNop(), metrics), cfg.Security, nil)

	return &testServer{router: router, cache: f, mr: mr, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAddMapWritesHash(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cache/add", `{"key":"a","value":{"x":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec))

	v, found, err := s.cache.GetField(context.Background(), "a", "x")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1), v)

	assert.True(t, s.mr.Exists("a"))
	assert.Equal(t, "hash", s.mr.Type("a"))
}

func TestAddInfersShapes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cache/add", `{"key":"l","value":["a","b","c"],"time":60}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "list", s.mr.Type("l"))
	assert.Equal(t, time.Minute, s.mr.TTL("l"))

	rec = s.do(t, http.MethodPost, "/cache/add", `{"key":"s","value":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "string", s.mr.Type("s"))

	rec = s.do(t, http.MethodPost, "/cache/add", `{"key":"t","value":["x","x","y"],"shape":"set"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "set", s.mr.Type("t"))

	n, err := s.cache.SetSize(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAddWithItemWritesField(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cache/add", `{"key":"h","item":"f","value":"v","time":30}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30*time.Second, s.mr.TTL("h"))

	rec = s.do(t, http.MethodGet, "/cache/get?key=h&item=f", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v", decodeBody(t, rec))
}

func TestAddRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"malformed json": `{"key":`,
		"missing key":    `{"value":1}`,
		"missing value":  `{"key":"k"}`,
		"unknown shape":  `{"key":"k","value":1,"shape":"tree"}`,
		"map not object": `{"key":"k","value":[1],"shape":"map"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/cache/add", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAddKeepsLargeIntegers(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cache/add", `{"key":"n","value":9007199254740993}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/cache/get?key=n", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "9007199254740993", strings.TrimSpace(rec.Body.String()))
}

func TestTimeOutOfRange(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cache/add", `{"key":"k","value":"v","time":18446744074}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, s.mr.Exists("k"))

	require.NoError(t, s.cache.Set(context.Background(), "k", "v", 0))
	rec = s.do(t, http.MethodPost, "/cache/expire", `{"key":"k","time":18446744074}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, s.mr.TTL("k"))
}

func TestSecondsToTTL(t *testing.T) {
	ttl, err := secondsToTTL(maxTTLSeconds)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(maxTTLSeconds)*time.Second, ttl)

	_, err = secondsToTTL(maxTTLSeconds + 1)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	ttl, err = secondsToTTL(-1)
	require.NoError(t, err)
	assert.Equal(t, -time.Second, ttl)

	ttl, err = requestTTL(nil)
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestGetByType(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.cache.SetMap(ctx, "m", map[string]any{"k": "v"}, 0))
	require.NoError(t, s.cache.SetSequence(ctx, "l", 0, 1, 2))
	_, err := s.cache.AddToSet(ctx, "s", "only")
	require.NoError(t, err)
	require.NoError(t, s.cache.Set(ctx, "v", "scalar", 0))

	tests := []struct {
		target string
		want   any
	}{
		{"/cache/get?key=m&type=java.util.HashMap", map[string]any{"k": "v"}},
		{"/cache/get?key=l&type=ArrayList", []any{float64(1), float64(2)}},
		{"/cache/get?key=s&type=HashSet", []any{"only"}},
		{"/cache/get?key=v", "scalar"},
		{"/cache/get?key=v&type=Tree", nil},
		{"/cache/get?key=missing", nil},
	}
	for _, tt := range tests {
		rec := s.do(t, http.MethodGet, tt.target, nil)
		require.Equal(t, http.StatusOK, rec.Code, tt.target)
		assert.Equal(t, tt.want, decodeBody(t, rec), tt.target)
	}
}

func TestGetWrongTypeIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.cache.SetMap(context.Background(), "m", map[string]any{"k": "v"}, 0))

	rec := s.do(t, http.MethodGet, "/cache/get?key=m", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteCache(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.cache.SetMap(ctx, "m", map[string]any{"a": 1, "b": 2}, 0))

	rec := s.do(t, http.MethodDelete, "/cache/delete?key=m&item=a", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	has, err := s.cache.HasField(ctx, "m", "a")
	require.NoError(t, err)
	assert.False(t, has)

	rec = s.do(t, http.MethodDelete, "/cache/delete?key=m", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, s.mr.Exists("m"))

	rec = s.do(t, http.MethodDelete, "/cache/delete", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExpireTTLExists(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.cache.Set(context.Background(), "k", 1, 0))

	rec := s.do(t, http.MethodGet, "/cache/ttl?key=k", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec))

	rec = s.do(t, http.MethodPost, "/cache/expire", ExpireRequest{Key: "k", Time: 10})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec))

	rec = s.do(t, http.MethodGet, "/cache/ttl?key=k", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(10), decodeBody(t, rec))

	rec = s.do(t, http.MethodPost, "/cache/expire", ExpireRequest{Key: "k", Time: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/cache/exists?key=k", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec))

	rec = s.do(t, http.MethodGet, "/cache/exists?key=nope", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec))
}

func TestLegacyPrefix(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/redis/cache/add", `{"key":"k","value":42}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/redis/cache/get?key=k", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(42), decodeBody(t, rec))
}

func TestHealthzAndStoreDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	s := newTestServerOn(t, mr)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, decodeBody(t, rec))

	s.mr.Close()
	rec = s.do(t, http.MethodGet, "/cache/get?key=k", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.Contains(t, s.metrics.paths, "/healthz")
	assert.Contains(t, s.metrics.paths, "/cache/get")
}

func TestRateLimit(t *testing.T) {
	m := NewMiddleware(zap.NewNop(), nil)
	h := m.RateLimit(6)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRecoverer(t *testing.T) {
	m := NewMiddleware(zap.NewNop(), nil)
	h := m.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResolveValue(t *testing.T) {
	v, err := resolveValue(json.RawMessage(` {"a":1}`), "")
	require.NoError(t, err)
	assert.Equal(t, "map", v.Shape.String())

	v, err = resolveValue(json.RawMessage(`"x"`), "list")
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, v.Items)

	v, err = resolveValue(json.RawMessage(`[1,2]`), "scalar")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, v.Scalar)
}
