package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/coverledger/coverledger/internal/chain"
	"github.com/coverledger/coverledger/internal/config"
	"github.com/coverledger/coverledger/internal/contract"
	"github.com/coverledger/coverledger/internal/ledger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAdminSecret = "test-admin-secret"

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:             "0",
		Env:              "development",
		LogLevel:         "error",
		MaxCoverage:      config.DefaultMaxCoverage,
		PolicyTermBlocks: config.DefaultPolicyTermBlocks,
		BlockTime:        10 * time.Minute,
		AdminSecret:      testAdminSecret,
		RateLimitRPS:     1000,
	}
}

// newTestServer creates a server with in-memory storage and a manual clock
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig(), WithClock(chain.NewManual(1000)))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/ws",
		"GET:/v1/platform",
		"POST:/v1/accounts",
		"POST:/v1/quotes",
		"GET:/v1/policies/:id",
		"GET:/v1/policies/:id/claims",
		"GET:/v1/claims/:id",
		"GET:/v1/accounts/:address/policies",
		"GET:/v1/accounts/:address/profile",
		"GET:/v1/accounts/:address/balance",
		"POST:/v1/policies",
		"POST:/v1/policies/:id/claims",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

func TestAdminRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"POST:/v1/admin/pause",
		"POST:/v1/admin/resume",
		"POST:/v1/admin/claims/:id/process",
		"POST:/v1/admin/deposits",
		"POST:/v1/admin/accounts/:address/blacklist",
		"GET:/v1/admin/counters",
		"GET:/v1/admin/stream/stats",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Admin route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Registration and workflow tests
// ---------------------------------------------------------------------------

const testHolder = "0xaAaA000000000000000000000000000000000001"

func TestAccountRegistration(t *testing.T) {
	s := newTestServer(t)

	body := `{"account":"` + testHolder + `","name":"Primary"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/accounts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["apiKey"] == nil || resp["apiKey"] == "" {
		t.Error("Expected apiKey in registration response")
	}
}

// TestPolicyLifecycle drives register, deposit, and create-policy through
// the full HTTP stack.
func TestPolicyLifecycle(t *testing.T) {
	s := newTestServer(t)

	do := func(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		s.router.ServeHTTP(w, req)
		return w
	}

	// Register and capture the API key
	w := do("POST", "/v1/accounts", `{"account":"`+testHolder+`"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var reg struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &reg); err != nil {
		t.Fatal(err)
	}
	authHeader := map[string]string{"Authorization": "Bearer " + reg.APIKey}

	// Unauthenticated create is rejected
	w = do("POST", "/v1/policies", `{"coverageAmount":100000,"category":"property"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create: expected 401, got %d", w.Code)
	}

	// Fund the account through the admin surface
	w = do("POST", "/v1/admin/deposits",
		`{"account":"`+testHolder+`","amount":10000000}`,
		map[string]string{"X-Admin-Secret": testAdminSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("deposit: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Admin surface rejects a bad secret
	w = do("POST", "/v1/admin/deposits",
		`{"account":"`+testHolder+`","amount":1}`,
		map[string]string{"X-Admin-Secret": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad admin secret: expected 401, got %d", w.Code)
	}

	// Create a policy
	w = do("POST", "/v1/policies", `{"coverageAmount":100000,"category":"property"}`, authHeader)
	if w.Code != http.StatusCreated {
		t.Fatalf("create policy: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var policy struct {
		ID        uint64 `json:"id"`
		Premium   uint64 `json:"premium"`
		RiskScore uint64 `json:"riskScore"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &policy); err != nil {
		t.Fatal(err)
	}
	if policy.ID != 1 {
		t.Errorf("expected first policy id 1, got %d", policy.ID)
	}
	if policy.Premium == 0 {
		t.Error("expected non-zero premium")
	}

	// Policy is publicly readable
	w = do("GET", "/v1/policies/1", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get policy: expected 200, got %d", w.Code)
	}
}

func TestPlatformEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/platform", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		Platform struct {
			CurrentBlock uint64 `json:"currentBlock"`
		} `json:"platform"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Platform.CurrentBlock != 1000 {
		t.Errorf("Expected current block 1000, got %d", resp.Platform.CurrentBlock)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestClockResumesFromPersistedHeight(t *testing.T) {
	// Simulate a previous process: a policy issued mid-term and a clock
	// that reached well past the policy's end block before shutdown.
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	holder := common.HexToAddress(testHolder)

	_, err := store.IssuePolicy(ctx, &ledger.Policy{
		Holder:         holder,
		CoverageAmount: 100000,
		Premium:        5000,
		RiskScore:      60,
		Category:       "property",
		StartBlock:     100000,
		EndBlock:       152560,
		Active:         true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetHeight(ctx, 160000); err != nil {
		t.Fatal(err)
	}

	s, err := New(testConfig(), WithStore(store))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	// The clock resumes at the recorded height, not at a value derived
	// from the nonces, so stored block references stay in the past.
	if got := s.clock.Now(); got != 160000 {
		t.Fatalf("expected clock to resume at 160000, got %d", got)
	}

	// The policy that lapsed under the previous process stays lapsed:
	// a claim against it is rejected, not accepted against a rewound clock.
	_, err = s.service.SubmitClaim(ctx, holder, 1, 1000, "storm damage", common.Hash{})
	if err != contract.ErrPolicyExpired {
		t.Fatalf("expected ErrPolicyExpired, got %v", err)
	}

	// Custody mirrors the persisted contract balance after restart.
	if got := s.treasury.CustodyBalance(); got != 5000 {
		t.Errorf("expected custody seeded to 5000, got %d", got)
	}
}
