package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	beecontext "github.com/beego/beego/v2/server/web/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(method, target string) (*beecontext.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.8:51234"
	w := httptest.NewRecorder()
	ctx := beecontext.NewContext()
	ctx.Reset(w, req)
	return ctx, w
}

func TestAdminRequired(t *testing.T) {
	sec := NewSecurity(SecurityConfig{AdminToken: "s3cret"}, nil)
	filter := sec.AdminRequired()

	ctx, w := newContext(http.MethodPost, "/api/features/synonym/activate")
	filter(ctx)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.Equal(t, false, body["success"])

	ctx, w = newContext(http.MethodPost, "/api/features/synonym/activate")
	ctx.Request.Header.Set("Authorization", "Bearer s3cret")
	filter(ctx)
	assert.False(t, ctx.ResponseWriter.Started)
	assert.Empty(t, w.Body.String())

	ctx, _ = newContext(http.MethodPost, "/api/content/4/sync")
	ctx.Request.Header.Set(TokenHeader, "s3cret")
	filter(ctx)
	assert.False(t, ctx.ResponseWriter.Started)

	ctx, w = newContext(http.MethodPost, "/api/content/4/sync")
	ctx.Request.Header.Set(TokenHeader, "wrong")
	filter(ctx)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRequired_Disabled(t *testing.T) {
	ctx, _ := newContext(http.MethodPost, "/api/content/4/sync")
	NewSecurity(SecurityConfig{}, nil).AdminRequired()(ctx)
	assert.False(t, ctx.ResponseWriter.Started)
}

func TestAPIRateLimit(t *testing.T) {
	sec := NewSecurity(SecurityConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute}, nil)
	filter := sec.APIRateLimit()

	for i := 0; i < 2; i++ {
		ctx, _ := newContext(http.MethodGet, "/api/search?s=x")
		filter(ctx)
		assert.False(t, ctx.ResponseWriter.Started)
	}

	ctx, w := newContext(http.MethodGet, "/api/search?s=x")
	filter(ctx)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimiter_Window(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("a"))
	assert.Len(t, rl.clients, 1)
}

func TestClientIPTrustedProxy(t *testing.T) {
	sec := NewSecurity(SecurityConfig{TrustedProxies: []string{"10.0.0.8"}}, nil)
	ctx, _ := newContext(http.MethodGet, "/api/search")
	ctx.Request.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.8")
	assert.Equal(t, "203.0.113.5", sec.getClientIP(ctx))

	untrusted := NewSecurity(SecurityConfig{}, nil)
	assert.Equal(t, "10.0.0.8", untrusted.getClientIP(ctx))
}

func TestSecurityHeaders(t *testing.T) {
	ctx, w := newContext(http.MethodGet, "/health")
	NewSecurity(SecurityConfig{}, nil).SecurityHeaders()(ctx)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestCORS(t *testing.T) {
	filter := CORS([]string{"https://example.com/"})

	ctx, w := newContext(http.MethodOptions, "/api/suggest")
	ctx.Request.Header.Set("Origin", "https://example.com")
	filter(ctx)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))

	ctx, w = newContext(http.MethodGet, "/api/suggest")
	ctx.Request.Header.Set("Origin", "https://other.test")
	filter(ctx)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
