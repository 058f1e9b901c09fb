package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/dispatch"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/handler/middleware"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/notify"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/repository"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/service"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/testutil"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	router *gin.Engine
	tokens *auth.JWTManager
}

func newServer(t *testing.T) *server {
	t.Helper()

	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, 42, "Jane Roe", domain.RolePatient)
	testutil.SeedUser(t, db, 7, "Dr. Gregory House", domain.RoleDoctor)
	testutil.SeedUser(t, db, 8, "Carla Espinosa", domain.RoleNurse)
	testutil.SeedPharmacy(t, db, 1, "Central Pharmacy")

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("medrx_test", reg)
	log := zap.NewNop()

	audit := service.NewAuditService(repository.NewAuditRepository(db), m, log)
	t.Cleanup(audit.Shutdown)

	tokens := auth.NewJWTManager(config.JWTConfig{Secret: "router-test-secret", Issuer: "medrx-auth"})

	router, err := NewRouter(RouterDeps{
		Prescriptions: service.NewPrescriptionService(
			repository.NewPrescriptionRepository(db),
			repository.NewDispatchLedger(db),
			notify.NopPublisher{}, audit, m, log,
		),
		Pharmacies:  service.NewPharmacyService(repository.NewPharmacyDirectory(db)),
		Tokens:      tokens,
		RateLimiter: middleware.NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000}, m),
		Metrics:     m,
		Gatherer:    reg,
		Ready:       func(ctx context.Context) error { return database.Ping(ctx, db) },
		Log:         log,
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	return &server{router: router, tokens: tokens}
}

func (s *server) token(t *testing.T, userID int64, role domain.Role) string {
	t.Helper()
	tok, err := s.tokens.IssueAccessToken(userID, role, time.Minute)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	return tok
}

func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding %s: %v", w.Body.String(), err)
	}
	return resp.Data
}

var amoxicillin = map[string]any{
	"patient_id":   42,
	"instructions": "Take with food",
	"medications": []map[string]string{
		{"name": "Amoxicillin", "dosage": "500mg", "frequency": "3x/day", "duration": "10 days"},
	},
}

func TestPrescriptionFlowOverHTTP(t *testing.T) {
	s := newServer(t)
	doctor := s.token(t, 7, domain.RoleDoctor)
	nurse := s.token(t, 8, domain.RoleNurse)

	w := s.do(t, http.MethodPost, "/api/v1/prescriptions", doctor, amoxicillin)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	created := decodeData[prescription.Prescription](t, w)
	path := "/api/v1/prescriptions/" + strconv.FormatInt(created.ID, 10)

	w = s.do(t, http.MethodGet, path, nurse, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	got := decodeData[prescription.Prescription](t, w)
	if got.Status != prescription.StatusActive || len(got.Medications) != 1 || got.PatientName != "Jane Roe" {
		t.Fatalf("unexpected prescription: %+v", got)
	}

	w = s.do(t, http.MethodPut, path+"/status", nurse, map[string]string{"status": "completed"})
	if w.Code != http.StatusOK || decodeData[prescription.Prescription](t, w).Status != prescription.StatusCompleted {
		t.Fatalf("status change: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, path+"/dispatches", nurse, map[string]int64{"pharmacy_id": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("first dispatch: status %d body %s", w.Code, w.Body.String())
	}
	if rec := decodeData[dispatch.Record](t, w); rec.Status != dispatch.StatusSent {
		t.Fatalf("dispatch status = %q", rec.Status)
	}

	w = s.do(t, http.MethodPost, path+"/dispatches", nurse, map[string]int64{"pharmacy_id": 1})
	if w.Code != http.StatusConflict {
		t.Fatalf("second dispatch: status %d, want 409", w.Code)
	}

	w = s.do(t, http.MethodGet, path+"/dispatches", doctor, nil)
	if records := decodeData[[]dispatch.Record](t, w); len(records) != 1 {
		t.Fatalf("expected one dispatch record, got %d", len(records))
	}

	w = s.do(t, http.MethodGet, "/api/v1/patients/42/prescriptions", nurse, nil)
	if list := decodeData[[]prescription.Prescription](t, w); len(list) != 1 {
		t.Fatalf("expected one prescription for patient, got %d", len(list))
	}
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	doctor := s.token(t, 7, domain.RoleDoctor)
	nurse := s.token(t, 8, domain.RoleNurse)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"no token", http.MethodGet, "/api/v1/pharmacies", "", nil, http.StatusUnauthorized},
		{"nurse cannot prescribe", http.MethodPost, "/api/v1/prescriptions", nurse, amoxicillin, http.StatusForbidden},
		{"empty medications", http.MethodPost, "/api/v1/prescriptions", doctor, map[string]any{"patient_id": 42, "medications": []any{}}, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/v1/prescriptions", doctor, `{"patient_id":`, http.StatusBadRequest},
		{"unknown patient", http.MethodPost, "/api/v1/prescriptions", doctor, map[string]any{"patient_id": 404, "medications": amoxicillin["medications"]}, http.StatusNotFound},
		{"malformed id", http.MethodGet, "/api/v1/prescriptions/abc", nurse, nil, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/v1/prescriptions/999", nurse, nil, http.StatusNotFound},
		{"unknown pharmacy", http.MethodGet, "/api/v1/pharmacies/9", nurse, nil, http.StatusNotFound},
		{"unknown patient list", http.MethodGet, "/api/v1/patients/404/prescriptions", nurse, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.token, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestValidationResponseListsFields(t *testing.T) {
	s := newServer(t)
	doctor := s.token(t, 7, domain.RoleDoctor)

	body := map[string]any{
		"patient_id":  42,
		"medications": []map[string]string{{"name": "Amoxicillin"}},
	}
	w := s.do(t, http.MethodPost, "/api/v1/prescriptions", doctor, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Error != "validation failed" || len(resp.Fields) != 3 {
		t.Fatalf("unexpected validation response: %+v", resp)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		if w := s.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, w.Code)
		}
	}
}

func TestReadinessFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("medrx_test", reg)
	router, err := NewRouter(RouterDeps{
		Tokens:      auth.NewJWTManager(config.JWTConfig{Secret: "x", Issuer: "medrx-auth"}),
		RateLimiter: middleware.NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, m),
		Metrics:     m,
		Gatherer:    reg,
		Ready:       func(context.Context) error { return errors.New("db down") },
		Log:         zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func limitedRouter(t *testing.T, trusted []string) *gin.Engine {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("medrx_test", reg)
	router, err := NewRouter(RouterDeps{
		Tokens:         auth.NewJWTManager(config.JWTConfig{Secret: "x", Issuer: "medrx-auth"}),
		RateLimiter:    middleware.NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1}, m),
		Metrics:        m,
		Gatherer:       reg,
		Ready:          func(context.Context) error { return nil },
		Log:            zap.NewNop(),
		TrustedProxies: trusted,
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func statusCounts(router *gin.Engine, n int) map[int]int {
	counts := map[int]int{}
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/pharmacies", nil)
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", "10.9.0."+strconv.Itoa(i+1))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		counts[w.Code]++
	}
	return counts
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	counts := statusCounts(limitedRouter(t, nil), 20)
	if counts[http.StatusUnauthorized] != 1 || counts[http.StatusTooManyRequests] != 19 {
		t.Fatalf("status counts = %v, want one 401 and nineteen 429", counts)
	}
}

func TestRateLimitHonoursForwardedForFromTrustedProxy(t *testing.T) {
	counts := statusCounts(limitedRouter(t, []string{"203.0.113.0/24"}), 5)
	if counts[http.StatusUnauthorized] != 5 {
		t.Fatalf("status counts = %v, want every forwarded client limited separately", counts)
	}
}

func TestNewRouterRejectsBadProxy(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("medrx_test", reg)
	_, err := NewRouter(RouterDeps{
		Tokens:         auth.NewJWTManager(config.JWTConfig{Secret: "x", Issuer: "medrx-auth"}),
		RateLimiter:    middleware.NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, m),
		Metrics:        m,
		Gatherer:       reg,
		Log:            zap.NewNop(),
		TrustedProxies: []string{"not-an-ip"},
	})
	if err == nil {
		t.Fatal("expected an error for an invalid proxy address")
	}
}
