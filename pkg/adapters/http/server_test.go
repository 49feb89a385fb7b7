package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/pkg/adapters/memory"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/manifest"
	"github.com/aretw0/rux/pkg/observability"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cameraManifest = `
slices:
  - name: Camera
    fields:
      bit_depth: {type: int, default: 16}
    reducers:
      - name: set_bit_depth
        payload: int
        set: bit_depth
        expr: min(64, max(0, payload))
      - name: halve
        set: bit_depth
        expr: bit_depth / 2
  - name: Display
    fields:
      bit_depth: {type: int, default: 8}
    derive:
      - name: follow
        from: [Camera.bit_depth]
        set: bit_depth
        expr: min(Camera_bit_depth, 32)
`

func newTestEngine(t *testing.T, opts ...rux.Option) *rux.Engine {
	t.Helper()
	m, err := manifest.Load([]byte(cameraManifest))
	require.NoError(t, err)
	eng, err := rux.NewFromManifest(m, opts...)
	require.NoError(t, err)
	return eng
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_StateRoundTrip(t *testing.T) {
	eng := newTestEngine(t)
	h := NewServer(eng)

	w := do(t, h, http.MethodPut, "/state/Camera/bit_depth", `{"value": 64}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/state/Display/bit_depth", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Path  string `json:"path"`
		Value int    `json:"value"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Display.bit_depth", resp.Path)
	assert.Equal(t, 32, resp.Value)
}

func TestServer_Dispatch(t *testing.T) {
	eng := newTestEngine(t)
	h := NewServer(eng)

	w := do(t, h, http.MethodPost, "/dispatch/Camera/set_bit_depth", `{"payload": 100}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	v, _ := eng.GetState(domain.BuildPath("Camera", "bit_depth"))
	assert.Equal(t, 64, v)

	w = do(t, h, http.MethodPost, "/dispatch/Camera/halve", "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	v, _ = eng.GetState(domain.BuildPath("Camera", "bit_depth"))
	assert.Equal(t, 32, v)
}

func TestServer_ErrorStatus(t *testing.T) {
	h := NewServer(newTestEngine(t))

	tests := []struct {
		name, method, target, body string
		want                       int
	}{
		{"unknown slice", http.MethodGet, "/state/Nope/x", "", http.StatusNotFound},
		{"unknown reducer", http.MethodPost, "/dispatch/Camera/nope", "", http.StatusNotFound},
		{"missing value", http.MethodPut, "/state/Camera/bit_depth", `{}`, http.StatusBadRequest},
		{"bad json", http.MethodPut, "/state/Camera/bit_depth", `{`, http.StatusBadRequest},
		{"wrong type", http.MethodPut, "/state/Camera/bit_depth", `{"value": "x"}`, http.StatusBadRequest},
		{"missing root", http.MethodPut, "/store", `{"Camera": {"bit_depth": 1}}`, http.StatusNotFound},
		{"invalid root value", http.MethodPut, "/store", `{"Camera": {"bit_depth": "x"}, "Display": {"bit_depth": 1}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestServer_StoreDumpLoad(t *testing.T) {
	eng := newTestEngine(t)
	h := NewServer(eng)

	w := do(t, h, http.MethodGet, "/store", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"Camera": {"bit_depth": 16}, "Display": {"bit_depth": 16}}`, w.Body.String())

	w = do(t, h, http.MethodPut, "/store", `{"Camera": {"bit_depth": 4}, "Display": {"bit_depth": 2}}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	v, _ := eng.GetState(domain.BuildPath("Display", "bit_depth"))
	assert.Equal(t, 2, v)

	w = do(t, h, http.MethodGet, "/slices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"roots": ["Camera", "Display"], "slices": {"Camera": {"bit_depth": "int"}, "Display": {"bit_depth": "int"}}}`, w.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	metrics := observability.NewMetrics()
	h := NewServer(newTestEngine(t, rux.WithLifecycleHooks(metrics.Hooks())), WithMetricsHandler(metrics.Handler()))

	w := do(t, h, http.MethodPost, "/dispatch/Camera/halve", "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `rux_dispatch_total{action="Camera.halve",outcome="committed",slice="Camera"} 1`)

	w = do(t, NewServer(newTestEngine(t)), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_SubscribeEvents(t *testing.T) {
	h := NewServer(newTestEngine(t))
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?path=Display.bit_depth", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if line := lines.Text(); strings.HasPrefix(line, "data: ") {
				return strings.TrimPrefix(line, "data: ")
			}
		}
		return ""
	}
	assert.Equal(t, "connected", next())
	assert.Equal(t, "[16]", next())

	put, err := http.NewRequest(http.MethodPut, srv.URL+"/state/Camera/bit_depth", strings.NewReader(`{"value": 8}`))
	require.NoError(t, err)
	putResp, err := http.DefaultClient.Do(put)
	require.NoError(t, err)
	putResp.Body.Close()
	require.Equal(t, http.StatusNoContent, putResp.StatusCode)

	assert.Equal(t, "[8]", next())
}

func TestServer_Snapshots(t *testing.T) {
	eng := newTestEngine(t, rux.WithSnapshotStore(memory.NewStore()), rux.WithLocker(memory.NewLocker(), 0))
	h := NewServer(eng)

	w := do(t, h, http.MethodGet, "/snapshots", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"snapshots": []}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/snapshots", `{"id": "before"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"id": "before"}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/snapshots", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, eng.DispatchState(domain.BuildPath("Camera", "bit_depth"), 2))
	w = do(t, h, http.MethodPost, "/snapshots/before/restore", "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	v, _ := eng.GetState(domain.BuildPath("Display", "bit_depth"))
	assert.Equal(t, 16, v)

	w = do(t, h, http.MethodPost, "/snapshots/missing/restore", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, NewServer(newTestEngine(t)), http.MethodPost, "/snapshots", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "no snapshot store configured")
}

func TestServer_WebSocket(t *testing.T) {
	srv := httptest.NewServer(NewServer(newTestEngine(t)))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?path=Camera.bit_depth&path=Display.bit_depth"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	read := func() string {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		return string(msg)
	}
	assert.JSONEq(t, `[16, 16]`, read())

	// The derived Display write lands before Camera commits, so an
	// intermediate frame may precede the settled values.
	require.NoError(t, conn.WriteJSON(map[string]any{"path": "Camera.bit_depth", "value": 64}))
	settled := false
	for range 3 {
		var values []int
		require.NoError(t, json.Unmarshal([]byte(read()), &values))
		if settled = assert.ObjectsAreEqual([]int{64, 32}, values); settled {
			break
		}
	}
	assert.True(t, settled, "never saw [64 32]")

	// A rejected write renotifies the committed values before the error frame.
	readError := func() string {
		for range 4 {
			if msg := read(); strings.Contains(msg, `"error"`) {
				return msg
			}
		}
		return ""
	}
	require.NoError(t, conn.WriteJSON(map[string]any{"path": "Camera.bit_depth", "value": "x"}))
	assert.NotEmpty(t, readError())

	require.NoError(t, conn.WriteJSON(map[string]any{"path": "no-dot", "value": 1}))
	assert.Contains(t, readError(), "expected Slice.field")
}

func TestServer_WebSocketRequiresPath(t *testing.T) {
	w := do(t, NewServer(newTestEngine(t)), http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_RateLimit(t *testing.T) {
	h := NewServer(newTestEngine(t), WithRateLimit(1, 2))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error": "rate limit exceeded"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)

	unlimited := NewServer(newTestEngine(t), WithRateLimit(0, 0))
	for range 5 {
		assert.Equal(t, http.StatusOK, do(t, unlimited, http.MethodGet, "/health", "").Code)
	}
}

func TestServer_Locked(t *testing.T) {
	srv := NewServer(newTestEngine(t))

	err := srv.Locked(func(e Engine) error {
		return e.DispatchState(domain.BuildPath("Camera", "bit_depth"), 4)
	})
	require.NoError(t, err)

	w := do(t, srv, http.MethodGet, "/state/Display/bit_depth", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"path": "Display.bit_depth", "value": 4}`, w.Body.String())
}

func TestServer_Replace(t *testing.T) {
	first := newTestEngine(t)
	srv := NewServer(first)
	require.Equal(t, http.StatusNoContent, do(t, srv, http.MethodPut, "/state/Camera/bit_depth", `{"value": 12}`).Code)

	next := newTestEngine(t)
	err := srv.Replace(func(current Engine) (Engine, error) {
		assert.Same(t, first, current)
		dump, err := current.DumpStore()
		if err != nil {
			return nil, err
		}
		return next, next.LoadStore(dump)
	})
	require.NoError(t, err)

	w := do(t, srv, http.MethodGet, "/state/Camera/bit_depth", "")
	assert.JSONEq(t, `{"path": "Camera.bit_depth", "value": 12}`, w.Body.String())
	require.Equal(t, http.StatusNoContent, do(t, srv, http.MethodPut, "/state/Camera/bit_depth", `{"value": 20}`).Code)
	v, err := next.GetState(domain.BuildPath("Camera", "bit_depth"))
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	boom := assert.AnError
	assert.ErrorIs(t, srv.Replace(func(Engine) (Engine, error) { return nil, boom }), boom)
	assert.Error(t, srv.Replace(func(Engine) (Engine, error) { return nil, nil }))
	w = do(t, srv, http.MethodGet, "/state/Camera/bit_depth", "")
	assert.JSONEq(t, `{"path": "Camera.bit_depth", "value": 20}`, w.Body.String(), "a failed replace keeps the engine")
}

func TestServer_BearerAuth(t *testing.T) {
	secret := []byte("s3cret")
	h := NewServer(newTestEngine(t), WithBearerAuth(secret))

	valid, err := IssueToken(secret, "ops", time.Minute)
	require.NoError(t, err)
	forged, err := IssueToken([]byte("other"), "ops", time.Minute)
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name, target, auth string
		want               int
	}{
		{"health is open", "/health", "", http.StatusOK},
		{"missing token", "/store", "", http.StatusUnauthorized},
		{"wrong scheme", "/store", "Basic " + valid, http.StatusUnauthorized},
		{"forged", "/store", "Bearer " + forged, http.StatusUnauthorized},
		{"expired", "/store", "Bearer " + expired, http.StatusUnauthorized},
		{"valid", "/store", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	_, err = IssueToken(nil, "ops", 0)
	assert.Error(t, err)
}

func TestServer_OpenAPI(t *testing.T) {
	h := NewServer(newTestEngine(t), WithBearerAuth([]byte("s3cret")))

	w := do(t, h, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc, err := openapi3.NewLoader().LoadFromData(w.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	camera := doc.Components.Schemas["Camera"]
	require.NotNil(t, camera)
	assert.True(t, camera.Value.Properties["bit_depth"].Value.Type.Is("integer"))
	assert.Contains(t, doc.Components.Schemas["Store"].Value.Properties, "Display")

	dispatch := doc.Paths.Find("/dispatch/{slice}/{reducer}")
	require.NotNil(t, dispatch)
	require.NotNil(t, dispatch.Post)
	assert.Len(t, dispatch.Post.Parameters, 2)
}

func TestTypeSchema(t *testing.T) {
	assert.True(t, typeSchema("[float]").Items.Value.Type.Is("number"))
	assert.Equal(t, "roi", typeSchema("roi").Description)
	assert.Empty(t, typeSchema("any").Description)
}
