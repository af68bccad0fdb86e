package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/communities-core/internal/account"
	"github.com/nerrad567/communities-core/internal/audit"
	"github.com/nerrad567/communities-core/internal/auth"
	"github.com/nerrad567/communities-core/internal/community"
	"github.com/nerrad567/communities-core/internal/infrastructure/config"
	"github.com/nerrad567/communities-core/internal/infrastructure/database"
	"github.com/nerrad567/communities-core/internal/infrastructure/logging"
	_ "github.com/nerrad567/communities-core/migrations"
)

var testSecret = strings.Repeat("s", auth.MinSecretLength)

const testPassword = "correct-horse-battery"

// captureMailer keeps the last token mailed to each address.
type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendEmailConfirmation(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens["confirm:"+to] = token
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens["reset:"+to] = token
	return nil
}

func (m *captureMailer) token(kind, to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[kind+":"+to]
}

// gateLog records filter outcomes.
type gateLog struct {
	mu       sync.Mutex
	outcomes []string
}

func (g *gateLog) RecordGateOutcome(stage, outcome string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes = append(g.outcomes, stage+"/"+outcome)
}

func (g *gateLog) snapshot() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.outcomes...)
}

type testEnv struct {
	handler http.Handler
	mailer  *captureMailer
	gate    *gateLog
	db      *database.DB
}

// newTestEnv builds a server over a migrated temp-file database.
func newTestEnv(t *testing.T, rejectionStatus int) *testEnv {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	rules := make([]auth.PathRule, 0, len(config.DefaultAdminPaths))
	for _, p := range config.DefaultAdminPaths {
		rule, err := auth.CompilePathRule(p.Pattern, p.Methods)
		if err != nil {
			t.Fatalf("CompilePathRule(%q) error = %v", p.Pattern, err)
		}
		rules = append(rules, rule)
	}

	codec := auth.NewTokenCodec()
	store := auth.NewSecurityTokenRepository(db.DB)
	mailer := &captureMailer{tokens: map[string]string{}}
	gate := &gateLog{}

	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditWriter := audit.NewWriter(auditRepo, "api", 0, logging.Discard())
	auditCtx, stopAudit := context.WithCancel(ctx)
	auditDone := make(chan struct{})
	go func() {
		auditWriter.Run(auditCtx)
		close(auditDone)
	}()
	t.Cleanup(func() {
		stopAudit()
		<-auditDone
	})

	accounts := account.NewService(account.Deps{
		Users:  auth.NewUserRepository(db.DB),
		Tokens: auth.NewSecurityTokenManager(store, auth.TokenLifetimes{EmailConfirm: time.Hour, PasswordReset: time.Hour}),
		Lookup: store,
		Mailer: mailer,
		Audit:  auditWriter,
		Bearer: account.BearerSettings{Codec: codec, Secret: []byte(testSecret), TTL: 15 * time.Minute},
		Logger: logging.Discard(),
	})

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1"},
		Security: config.SecurityConfig{
			Bearer:          config.BearerConfig{Header: "Authorization", Prefix: "Bearer ", Secret: testSecret},
			RejectionStatus: rejectionStatus,
		},
		Logger:      logging.Discard(),
		Accounts:    accounts,
		Communities: community.NewSQLiteRepository(db.DB),
		Codec:       codec,
		AdminRules:  rules,
		Audit:       auditWriter,
		AuditLog:    auditRepo,
		DB:          db,
		Gate:        gate,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{handler: srv.Handler(), mailer: mailer, gate: gate, db: db}
}

// do sends a JSON request, with a bearer credential when token is set.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// signUp registers, confirms, and logs in, returning the user ID and bearer token.
func (e *testEnv) signUp(t *testing.T, email string) (userID, token string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "display_name": "Resident", "password": testPassword,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var user auth.User
	decodeBody(t, rec, &user)

	rec = e.do(t, http.MethodPost, "/api/v1/auth/confirm-email", "", map[string]string{
		"token": e.mailer.token("confirm", email),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": testPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var login loginResponse
	decodeBody(t, rec, &login)
	return user.ID, login.AccessToken
}

// createCommunity creates a community owned by token's user.
func (e *testEnv) createCommunity(t *testing.T, token, name string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/communities", token, map[string]string{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create community status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var c community.Community
	decodeBody(t, rec, &c)
	return c.ID
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, rec.Body.String())
	}
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, wantStatus, rec.Body.String())
	}
	var e Error
	decodeBody(t, rec, &e)
	if e.Code != wantCode || e.Status != wantStatus {
		t.Errorf("error = %+v, want status %d code %q", e, wantStatus, wantCode)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New(empty deps) should fail")
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestHandleHealth_DatabaseDown(t *testing.T) {
	env := newTestEnv(t, 0)
	env.db.Close() //nolint:errcheck // closing to force failure

	rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var m SystemMetrics
	decodeBody(t, rec, &m)
	if m.Version != "test" || m.Runtime.Goroutines == 0 {
		t.Errorf("metrics = %+v", m)
	}
	if m.MQTT.Enabled || m.InfluxDB.Enabled {
		t.Error("optional connections should report disabled")
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	env := newTestEnv(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestAccountFlow(t *testing.T) {
	env := newTestEnv(t, 0)
	userID, token := env.signUp(t, "flow@example.com")

	rec := env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var me map[string]any
	decodeBody(t, rec, &me)
	if me["id"] != userID || me["email"] != "flow@example.com" {
		t.Errorf("me = %v", me)
	}
	if _, leaked := me["password_hash"]; leaked {
		t.Error("password hash must not be serialised")
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"bad email", map[string]string{"email": "nope", "password": testPassword}, http.StatusBadRequest, ErrCodeValidation},
		{"weak password", map[string]string{"email": "a@example.com", "password": "short"}, http.StatusBadRequest, ErrCodeValidation},
		{"unknown field", map[string]string{"email": "a@example.com", "role": "admin"}, http.StatusBadRequest, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", tt.body)
			assertError(t, rec, tt.wantCode, tt.wantErr)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t, 0)
	env.signUp(t, "dup@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "dup@example.com", "password": testPassword,
	})
	assertError(t, rec, http.StatusConflict, ErrCodeConflict)
}

func TestLogin_Unconfirmed(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "pending@example.com", "password": testPassword,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "pending@example.com", "password": testPassword,
	})
	assertError(t, rec, http.StatusForbidden, ErrCodeForbidden)
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t, 0)
	env.signUp(t, "creds@example.com")

	for _, body := range []map[string]string{
		{"email": "creds@example.com", "password": "wrong-password"},
		{"email": "missing@example.com", "password": testPassword},
	} {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		assertError(t, rec, http.StatusUnauthorized, ErrCodeUnauthorized)
	}
}

func TestConfirmEmail_Reuse(t *testing.T) {
	env := newTestEnv(t, 0)
	env.signUp(t, "reuse@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/confirm-email", "", map[string]string{
		"token": env.mailer.token("confirm", "reuse@example.com"),
	})
	assertError(t, rec, http.StatusBadRequest, ErrCodeInvalidToken)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t, 0)
	env.signUp(t, "forgot@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/password-reset", "", map[string]string{"email": "forgot@example.com"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("password-reset status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/password-reset/confirm", "", map[string]string{
		"token":    env.mailer.token("reset", "forgot@example.com"),
		"password": "a-whole-new-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "forgot@example.com", "password": "a-whole-new-password",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password status = %d", rec.Code)
	}
}

func TestPasswordReset_UnknownEmailAccepted(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/password-reset", "", map[string]string{"email": "ghost@example.com"})
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/auth/confirm-email/resend", "", map[string]string{"email": "ghost@example.com"})
	if rec.Code != http.StatusAccepted {
		t.Errorf("resend status = %d, want 202", rec.Code)
	}
}

func TestMe_RequiresIdentity(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.signUp(t, "me@example.com")

	tests := []struct {
		name  string
		token string
	}{
		{"no credential", ""},
		{"garbage credential", "not.a.jwt"},
		{"tampered credential", token[:len(token)-2] + flip(token[len(token)-2:])},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/auth/me", tt.token, nil)
			assertError(t, rec, http.StatusUnauthorized, ErrCodeUnauthorized)
		})
	}
}

// flip changes the first character of s to a different base64url character.
func flip(s string) string {
	if s[0] == 'A' {
		return "B" + s[1:]
	}
	return "A" + s[1:]
}

func TestCommunityAdminGuard(t *testing.T) {
	env := newTestEnv(t, 0)
	_, ownerToken := env.signUp(t, "owner@example.com")
	_, outsiderToken := env.signUp(t, "outsider@example.com")
	communityID := env.createCommunity(t, ownerToken, "Maple Court")

	admins := "/api/v1/communities/" + communityID + "/admins"
	amenities := "/api/v1/communities/" + communityID + "/amenities"
	unknown := "/api/v1/communities/00000000-0000-4000-8000-000000000000/admins"

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"owner lists admins", http.MethodGet, admins, ownerToken, nil, http.StatusOK},
		{"owner creates amenity", http.MethodPost, amenities, ownerToken, map[string]string{"name": "Gym"}, http.StatusCreated},
		{"owner lists amenities", http.MethodGet, amenities, ownerToken, nil, http.StatusOK},
		{"outsider denied", http.MethodGet, admins, outsiderToken, nil, http.StatusForbidden},
		{"outsider cannot create", http.MethodPost, amenities, outsiderToken, map[string]string{"name": "Pool"}, http.StatusForbidden},
		{"anonymous denied", http.MethodGet, admins, "", nil, http.StatusForbidden},
		{"unknown community denied", http.MethodGet, unknown, ownerToken, nil, http.StatusForbidden},
		{"malformed id not routed", http.MethodGet, "/api/v1/communities/not-a-uuid/admins", ownerToken, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCommunityAdminGuard_DeniedBody(t *testing.T) {
	env := newTestEnv(t, 0)
	_, ownerToken := env.signUp(t, "owner@example.com")
	communityID := env.createCommunity(t, ownerToken, "Birch House")

	rec := env.do(t, http.MethodGet, "/api/v1/communities/"+communityID+"/admins", "", nil)
	assertError(t, rec, http.StatusForbidden, ErrCodeForbidden)
}

func TestCommunityAdminGuard_ConfiguredStatus(t *testing.T) {
	env := newTestEnv(t, http.StatusUnauthorized)
	_, ownerToken := env.signUp(t, "owner@example.com")
	communityID := env.createCommunity(t, ownerToken, "Cedar Row")

	rec := env.do(t, http.MethodGet, "/api/v1/communities/"+communityID+"/amenities", "", nil)
	assertError(t, rec, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestAddAdminGrantsAccess(t *testing.T) {
	env := newTestEnv(t, 0)
	_, ownerToken := env.signUp(t, "owner@example.com")
	helperID, helperToken := env.signUp(t, "helper@example.com")
	communityID := env.createCommunity(t, ownerToken, "Elm Yard")
	admins := "/api/v1/communities/" + communityID + "/admins"

	if rec := env.do(t, http.MethodGet, admins, helperToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("before grant status = %d, want 403", rec.Code)
	}

	rec := env.do(t, http.MethodPost, admins, ownerToken, map[string]string{"user_id": helperID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add admin status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, admins, ownerToken, map[string]string{"user_id": helperID})
	assertError(t, rec, http.StatusConflict, ErrCodeConflict)

	rec = env.do(t, http.MethodGet, admins, helperToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("after grant status = %d, want 200", rec.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 2 {
		t.Errorf("admin count = %d, want 2", body.Count)
	}
}

func TestListCommunities(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.signUp(t, "lister@example.com")
	env.createCommunity(t, token, "Ash Lane")
	env.createCommunity(t, token, "Oak Park")

	rec := env.do(t, http.MethodGet, "/api/v1/communities", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/communities", "", nil)
	assertError(t, rec, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestCreateCommunity_InvalidName(t *testing.T) {
	env := newTestEnv(t, 0)
	_, token := env.signUp(t, "namer@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/communities", token, map[string]string{"name": "  "})
	assertError(t, rec, http.StatusBadRequest, ErrCodeValidation)
}

func TestGateOutcomesRecorded(t *testing.T) {
	env := newTestEnv(t, 0)

	env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	env.do(t, http.MethodGet, "/api/v1/health", "bogus", nil)

	got := env.gate.snapshot()
	want := []string{
		"authentication/anonymous", "authorization/allowed",
		"authentication/invalid_credential", "authorization/allowed",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("outcomes = %v, want %v", got, want)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assertError(t, rec, http.StatusNotFound, ErrCodeNotFound)
}

func TestCommunityAuditTrail(t *testing.T) {
	env := newTestEnv(t, 0)
	_, ownerToken := env.signUp(t, "owner@example.com")
	_, outsiderToken := env.signUp(t, "outsider@example.com")
	communityID := env.createCommunity(t, ownerToken, "Willow Gardens")
	env.do(t, http.MethodPost, "/api/v1/communities/"+communityID+"/amenities", ownerToken, map[string]string{"name": "Laundry"})

	path := "/api/v1/communities/" + communityID + "/audit"

	// Entries are written asynchronously.
	var result audit.ListResult
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := env.do(t, http.MethodGet, path, ownerToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		decodeBody(t, rec, &result)
		if result.Total == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if result.Total != 2 {
		t.Fatalf("audit total = %d, want 2", result.Total)
	}
	if result.Entries[0].Action != audit.ActionCreateAmenity && result.Entries[1].Action != audit.ActionCreateAmenity {
		t.Errorf("entries = %+v, want an amenity creation", result.Entries)
	}

	if rec := env.do(t, http.MethodGet, path, outsiderToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("outsider status = %d, want 403", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, path+"?limit=abc", ownerToken, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}
