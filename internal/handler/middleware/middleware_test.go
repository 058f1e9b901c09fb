package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newCollector() *metrics.Collector {
	return metrics.NewCollector("medrx_test", prometheus.NewRegistry())
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(HeaderRequestID)
	if generated == "" || w.Body.String() != generated {
		t.Fatalf("expected generated id echoed, header=%q body=%q", generated, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "upstream-123")
	w = serve(r, req)
	if w.Header().Get(HeaderRequestID) != "upstream-123" {
		t.Fatalf("expected upstream id propagated, got %q", w.Header().Get(HeaderRequestID))
	}
}

func TestAuthenticate(t *testing.T) {
	mgr := auth.NewJWTManager(config.JWTConfig{Secret: "middleware-test-secret", Issuer: "medrx-auth"})
	token, err := mgr.IssueAccessToken(7, domain.RoleDoctor, time.Minute)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	expired, err := mgr.IssueAccessToken(7, domain.RoleDoctor, -time.Minute)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	r := gin.New()
	r.Use(RequestID(), Authenticate(mgr))
	r.GET("/me", func(c *gin.Context) {
		caller := CallerFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": caller.UserID, "role": caller.Role, "rid": caller.RequestID})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic abc", http.StatusUnauthorized},
		{"tampered", "Bearer " + token + "x", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestCallerFromWithoutIdentity(t *testing.T) {
	r := gin.New()
	var got domain.Caller
	r.GET("/", func(c *gin.Context) { got = CallerFrom(c) })
	serve(r, httptest.NewRequest(http.MethodGet, "/", nil))

	if got.IsAuthenticated() {
		t.Fatalf("expected anonymous caller, got %+v", got)
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	m := newCollector()
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2}, m)

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5555"
		return serve(r, req).Code
	}

	for i := 0; i < 2; i++ {
		if code := request("10.0.0.1"); code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := request("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}
	if code := request("10.0.0.2"); code != http.StatusNoContent {
		t.Fatalf("other client must not be limited, got %d", code)
	}
	if v := promtest.ToFloat64(m.RateLimited); v != 1 {
		t.Errorf("rate limited = %v", v)
	}

	rl.evictIdle(time.Now().Add(time.Minute))
	if len(rl.clients) != 0 {
		t.Fatalf("expected idle clients evicted, %d left", len(rl.clients))
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	m := newCollector()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/items/1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/items/2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if v := promtest.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/items/:id", "200")); v != 2 {
		t.Errorf("templated requests = %v, want 2", v)
	}
	if v := promtest.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")); v != 1 {
		t.Errorf("unmatched requests = %v, want 1", v)
	}
}

func TestRecoveryAndLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(zap.NewNop()), Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
