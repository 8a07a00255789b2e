package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sidesa.id/internal/auth"
)

type stubStores struct {
	identities map[string]*auth.Identity
	byID       map[int64]*auth.Identity
	grants     map[string][]auth.PermissionGrant
	permErr    error
}

func (s *stubStores) FindActiveByUsername(_ context.Context, username string) (*auth.Identity, error) {
	ident, ok := s.identities[username]
	if !ok || ident.Status != auth.StatusActive {
		return nil, auth.ErrNotFound
	}
	return ident, nil
}

func (s *stubStores) FindActiveByID(_ context.Context, id int64) (*auth.Identity, error) {
	ident, ok := s.byID[id]
	if !ok || ident.Status != auth.StatusActive {
		return nil, auth.ErrNotFound
	}
	return ident, nil
}

func (s *stubStores) Insert(context.Context, *auth.Session) error { return nil }

func (s *stubStores) TouchActiveByIdentity(context.Context, int64, time.Time) error { return nil }

func (s *stubStores) GrantsForRole(_ context.Context, role string) ([]auth.PermissionGrant, error) {
	if s.permErr != nil {
		return nil, s.permErr
	}
	return s.grants[role], nil
}

const (
	testAccessSecret  = "httpapi-access-secret"
	testRefreshSecret = "httpapi-refresh-secret"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	stores  *stubStores
	issuer  *auth.Issuer
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	admin := &auth.Identity{
		ID:               1,
		Username:         "admin",
		Email:            "admin@example.org",
		PasswordHash:     string(hash),
		Role:             auth.RoleSuperAdmin,
		Status:           auth.StatusActive,
		AssignedDesa:     []string{"desa-01"},
		AssignedKelompok: []string{"kel-02"},
	}
	stores := &stubStores{
		identities: map[string]*auth.Identity{"admin": admin},
		byID:       map[int64]*auth.Identity{1: admin},
		grants:     map[string][]auth.PermissionGrant{},
	}

	issuer, err := auth.NewIssuer(testAccessSecret, testRefreshSecret)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	svc, err := auth.NewService(stores, stores, stores, issuer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	api := New(ReadyProbe{}, "test", svc)
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		stores:  stores,
		issuer:  issuer,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func (c *apiClient) login(t *testing.T) map[string]any {
	t.Helper()
	resp := c.post("/v1/auth/login", map[string]string{
		"username": "admin",
		"password": "rahasia123",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func TestLoginReturnsTokensAndSession(t *testing.T) {
	c := newTestAPI(t)

	body := c.login(t)
	access, _ := body["access_token"].(string)
	refresh, _ := body["refresh_token"].(string)
	sessionID, _ := body["session_id"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("expected both tokens, got %v", body)
	}
	if matched := regexp.MustCompile(`^session_1_\d+_[0-9a-f]{8}$`).MatchString(sessionID); !matched {
		t.Fatalf("unexpected session id: %s", sessionID)
	}

	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("missing user object: %v", body)
	}
	if user["username"] != "admin" || user["role"] != auth.RoleSuperAdmin {
		t.Fatalf("unexpected user payload: %v", user)
	}
	for key := range user {
		if strings.Contains(key, "password") {
			t.Fatalf("password material leaked in response: %s", key)
		}
	}
}

func TestLoginFailureShapeIsUniform(t *testing.T) {
	c := newTestAPI(t)

	wrongPassword := c.post("/v1/auth/login", map[string]string{"username": "admin", "password": "salah"}, nil)
	unknownUser := c.post("/v1/auth/login", map[string]string{"username": "nobody", "password": "salah"}, nil)

	if wrongPassword.StatusCode != http.StatusUnauthorized || unknownUser.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPassword.StatusCode, unknownUser.StatusCode)
	}
	bodyA := decodeBody(t, wrongPassword)
	bodyB := decodeBody(t, unknownUser)
	if bodyA["error"] != bodyB["error"] {
		t.Fatalf("error messages differ: %v vs %v", bodyA["error"], bodyB["error"])
	}
	if bodyA["error"] == "" {
		t.Fatal("expected generic error message")
	}
}

func TestLoginMissingFields(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/v1/auth/login", map[string]string{"username": "admin"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp = c.post("/v1/auth/login", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", resp.StatusCode)
	}
}

func TestLoginMethodNotAllowed(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/v1/auth/login", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodPost {
		t.Fatalf("unexpected Allow header: %q", allow)
	}
}

func TestVerifyWithBearerToken(t *testing.T) {
	c := newTestAPI(t)
	body := c.login(t)
	access := body["access_token"].(string)

	resp := c.get("/v1/auth/verify", map[string]string{"Authorization": "Bearer " + access})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	verify := decodeBody(t, resp)
	if verify["valid"] != true {
		t.Fatalf("expected valid=true, got %v", verify)
	}
	user := verify["user"].(map[string]any)
	if user["username"] != "admin" {
		t.Fatalf("unexpected user: %v", user)
	}
}

func TestVerifyRejectsMissingAndGarbageTokens(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/v1/auth/verify", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", resp.StatusCode)
	}
	resp = c.get("/v1/auth/verify", map[string]string{"Authorization": "Bearer garbage"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", resp.StatusCode)
	}
	resp = c.get("/v1/auth/verify", map[string]string{"Authorization": "Basic abc"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: expected 401, got %d", resp.StatusCode)
	}
}

func TestVerifyExpiredTokenSameBodyAsMalformed(t *testing.T) {
	c := newTestAPI(t)

	past := time.Now().Add(-3 * time.Hour)
	expiredIssuer, err := auth.NewIssuer(testAccessSecret, testRefreshSecret,
		auth.WithIssuerClock(func() time.Time { return past }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	expired, _, err := expiredIssuer.IssueAccess(c.stores.identities["admin"])
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	respExpired := c.get("/v1/auth/verify", map[string]string{"Authorization": "Bearer " + expired})
	respGarbage := c.get("/v1/auth/verify", map[string]string{"Authorization": "Bearer garbage"})

	if respExpired.StatusCode != http.StatusUnauthorized || respGarbage.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", respExpired.StatusCode, respGarbage.StatusCode)
	}
	bodyA := decodeBody(t, respExpired)
	bodyB := decodeBody(t, respGarbage)
	if bodyA["error"] != bodyB["error"] {
		t.Fatalf("expired vs malformed bodies differ: %v vs %v", bodyA["error"], bodyB["error"])
	}
}

func TestRefreshReturnsNewAccessToken(t *testing.T) {
	c := newTestAPI(t)
	body := c.login(t)
	refresh := body["refresh_token"].(string)

	resp := c.post("/v1/auth/refresh", map[string]string{"refresh_token": refresh}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	renewed := decodeBody(t, resp)
	access, _ := renewed["access_token"].(string)
	if access == "" {
		t.Fatalf("expected new access token: %v", renewed)
	}
	if _, err := c.issuer.ValidateAccess(access); err != nil {
		t.Fatalf("renewed token invalid: %v", err)
	}
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	c := newTestAPI(t)

	eightDaysAgo := time.Now().Add(-8 * 24 * time.Hour)
	pastIssuer, err := auth.NewIssuer(testAccessSecret, testRefreshSecret,
		auth.WithIssuerClock(func() time.Time { return eightDaysAgo }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	expired, _, err := pastIssuer.IssueRefresh(c.stores.identities["admin"])
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	resp := c.post("/v1/auth/refresh", map[string]string{"refresh_token": expired}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRefreshRejectsInactiveIdentity(t *testing.T) {
	c := newTestAPI(t)
	body := c.login(t)
	refresh := body["refresh_token"].(string)

	c.stores.identities["admin"].Status = auth.StatusInactive

	resp := c.post("/v1/auth/refresh", map[string]string{"refresh_token": refresh}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRefreshMissingToken(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/v1/auth/refresh", map[string]string{"refresh_token": ""}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPermissionsEndpoint(t *testing.T) {
	c := newTestAPI(t)
	c.stores.grants[auth.RoleSuperAdmin] = []auth.PermissionGrant{
		{Role: auth.RoleSuperAdmin, Menu: "warga", CanView: true, CanCreate: true, CanEdit: true, CanDelete: true},
	}
	body := c.login(t)
	access := body["access_token"].(string)

	resp := c.get("/v1/user/permissions", map[string]string{"Authorization": "Bearer " + access})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	result := decodeBody(t, resp)

	perms, ok := result["permissions"].(map[string]any)
	if !ok {
		t.Fatalf("missing permissions mapping: %v", result)
	}
	warga, ok := perms["warga"].(map[string]any)
	if !ok || warga["can_view"] != true || warga["can_delete"] != true {
		t.Fatalf("unexpected warga capabilities: %v", perms["warga"])
	}

	areas, ok := result["accessible_areas"].(map[string]any)
	if !ok {
		t.Fatalf("missing accessible_areas: %v", result)
	}
	desa, ok := areas["desa"].([]any)
	if !ok || len(desa) != 1 || desa[0] != "desa-01" {
		t.Fatalf("unexpected desa scope: %v", areas["desa"])
	}
}

func TestPermissionsEmptyGrantsIsOK(t *testing.T) {
	c := newTestAPI(t)
	body := c.login(t)
	access := body["access_token"].(string)

	resp := c.get("/v1/user/permissions", map[string]string{"Authorization": "Bearer " + access})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for role without grants, got %d", resp.StatusCode)
	}
	result := decodeBody(t, resp)
	perms, ok := result["permissions"].(map[string]any)
	if !ok {
		t.Fatalf("permissions must be an object, got %v", result["permissions"])
	}
	if len(perms) != 0 {
		t.Fatalf("expected empty mapping, got %v", perms)
	}
}

func TestPermissionsStoreError(t *testing.T) {
	c := newTestAPI(t)
	body := c.login(t)
	access := body["access_token"].(string)

	c.stores.permErr = errors.New("connection refused")

	resp := c.get("/v1/user/permissions", map[string]string{"Authorization": "Bearer " + access})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	result := decodeBody(t, resp)
	if msg, _ := result["error"].(string); msg != "internal error" {
		t.Fatalf("internal details leaked: %v", result)
	}
}

func TestHealthAndInfoEndpoints(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	resp = c.get("/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", resp.StatusCode)
	}

	resp = c.get("/v1/info", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info: expected 200, got %d", resp.StatusCode)
	}
}
