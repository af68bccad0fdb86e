package auth

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/communities-core/internal/infrastructure/logging"
)

// Filter stage names, as reported to a GateRecorder.
const (
	StageAuthentication = "authentication"
	StageAuthorization  = "authorization"
)

// Filter outcomes, as reported to a GateRecorder.
const (
	OutcomeAnonymous     = "anonymous"
	OutcomeAuthenticated = "authenticated"
	OutcomeInvalid       = "invalid_credential"
	OutcomeAllowed       = "allowed"
	OutcomeDenied        = "denied"
)

// tenantGroup is the named capture group holding the tenant ID in a path rule.
const tenantGroup = "tenant"

// GateRecorder receives one outcome per filter stage per request.
type GateRecorder interface {
	RecordGateOutcome(stage, outcome string)
}

// TenantMembershipLookup answers whether identity administers tenantID.
// An error, including an unknown tenant, is treated as a negative answer.
type TenantMembershipLookup interface {
	IsAdminOfTenant(ctx context.Context, tenantID, identity string) (bool, error)
}

// AuthenticationOptions configures where the bearer credential is read from.
type AuthenticationOptions struct {
	Header string
	Prefix string
	Secret []byte
}

// AuthenticationFilter attaches the bearer identity to requests that carry
// a valid credential. It never rejects a request.
type AuthenticationFilter struct {
	codec    *TokenCodec
	opts     AuthenticationOptions
	logger   *logging.Logger
	recorder GateRecorder
}

// NewAuthenticationFilter creates the authentication stage. recorder may be nil.
func NewAuthenticationFilter(codec *TokenCodec, opts AuthenticationOptions, logger *logging.Logger, recorder GateRecorder) *AuthenticationFilter {
	return &AuthenticationFilter{codec: codec, opts: opts, logger: logger, recorder: recorder}
}

// Authenticate extracts and decodes the request's credential. ok is false
// when the header is absent, lacks the prefix, or fails to decode.
func (f *AuthenticationFilter) Authenticate(r *http.Request) (identity string, ok bool) {
	value := r.Header.Get(f.opts.Header)
	if value == "" {
		f.record(StageAuthentication, OutcomeAnonymous)
		return "", false
	}

	raw, found := strings.CutPrefix(value, f.opts.Prefix)
	if !found || raw == "" {
		f.record(StageAuthentication, OutcomeAnonymous)
		return "", false
	}

	claim, err := f.codec.Decode(raw, f.opts.Secret)
	if err != nil {
		// Detail stays in the log so clients cannot probe why a token failed.
		f.logger.Debug("bearer credential rejected", "error", err, "path", r.URL.Path)
		f.record(StageAuthentication, OutcomeInvalid)
		return "", false
	}

	f.record(StageAuthentication, OutcomeAuthenticated)
	return claim.Identity, true
}

// Middleware runs Authenticate and passes every request on.
func (f *AuthenticationFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := f.Authenticate(r); ok {
			r = r.WithContext(WithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

func (f *AuthenticationFilter) record(stage, outcome string) {
	if f.recorder != nil {
		f.recorder.RecordGateOutcome(stage, outcome)
	}
}

// PathRule marks requests whose path matches Pattern as tenant-admin only.
type PathRule struct {
	Pattern *regexp.Regexp

	// Methods limits the rule to these HTTP methods. Empty matches all.
	Methods []string
}

// CompilePathRule compiles pattern, which must define a named group "tenant".
func CompilePathRule(pattern string, methods []string) (PathRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return PathRule{}, fmt.Errorf("compiling path rule %q: %w", pattern, err)
	}
	if re.SubexpIndex(tenantGroup) < 0 {
		return PathRule{}, fmt.Errorf("path rule %q has no (?P<%s>...) group", pattern, tenantGroup)
	}

	upper := make([]string, len(methods))
	for i, m := range methods {
		upper[i] = strings.ToUpper(m)
	}
	return PathRule{Pattern: re, Methods: upper}, nil
}

// match returns the tenant segment if the rule applies to method and path.
func (p PathRule) match(method, path string) (tenantID string, ok bool) {
	if len(p.Methods) > 0 && !slices.Contains(p.Methods, method) {
		return "", false
	}
	m := p.Pattern.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[p.Pattern.SubexpIndex(tenantGroup)], true
}

// DenyFunc writes the rejection response for a denied request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int)

// AuthorizationFilter restricts matching paths to administrators of the
// tenant named in the path.
type AuthorizationFilter struct {
	rules    []PathRule
	lookup   TenantMembershipLookup
	status   int
	deny     DenyFunc
	logger   *logging.Logger
	recorder GateRecorder
}

// NewAuthorizationFilter creates the authorization stage. Denied requests
// receive status via deny, or http.Error when deny is nil. recorder may be nil.
func NewAuthorizationFilter(rules []PathRule, lookup TenantMembershipLookup, status int, deny DenyFunc, logger *logging.Logger, recorder GateRecorder) *AuthorizationFilter {
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, status int) {
			http.Error(w, http.StatusText(status), status)
		}
	}
	return &AuthorizationFilter{
		rules:    rules,
		lookup:   lookup,
		status:   status,
		deny:     deny,
		logger:   logger,
		recorder: recorder,
	}
}

// Authorize decides whether identity may proceed with method and path.
// Paths no rule matches are always allowed. On a match, the request is
// allowed only if the identity is present and the lookup confirms it
// administers the tenant.
func (f *AuthorizationFilter) Authorize(ctx context.Context, method, path, identity string, authenticated bool) bool {
	for _, rule := range f.rules {
		tenantID, ok := rule.match(method, path)
		if !ok {
			continue
		}
		return f.check(ctx, tenantID, identity, authenticated)
	}
	return true
}

func (f *AuthorizationFilter) check(ctx context.Context, tenantID, identity string, authenticated bool) bool {
	if !authenticated {
		f.logger.Debug("tenant admin path denied: anonymous", "tenant", tenantID)
		return false
	}
	if _, err := uuid.Parse(tenantID); err != nil {
		f.logger.Debug("tenant admin path denied: bad tenant id", "tenant", tenantID)
		return false
	}

	isAdmin, err := f.lookup.IsAdminOfTenant(ctx, tenantID, identity)
	if err != nil {
		f.logger.Debug("tenant admin path denied: lookup failed",
			"tenant", tenantID, "identity", identity, "error", err)
		return false
	}
	if !isAdmin {
		f.logger.Debug("tenant admin path denied: not an admin", "tenant", tenantID, "identity", identity)
	}
	return isAdmin
}

// Middleware threads the identity from AuthenticationFilter into Authorize
// and stops denied requests before next runs.
func (f *AuthorizationFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !f.Authorize(r.Context(), r.Method, r.URL.Path, identity, ok) {
			f.record(OutcomeDenied)
			f.deny(w, r, f.status)
			return
		}
		f.record(OutcomeAllowed)
		next.ServeHTTP(w, r)
	})
}

func (f *AuthorizationFilter) record(outcome string) {
	if f.recorder != nil {
		f.recorder.RecordGateOutcome(StageAuthorization, outcome)
	}
}

// Pipeline is the ordered pair of request filters.
type Pipeline struct {
	Authentication *AuthenticationFilter
	Authorization  *AuthorizationFilter
}

// Handler wraps next with authentication then authorization.
func (p Pipeline) Handler(next http.Handler) http.Handler {
	return p.Authentication.Middleware(p.Authorization.Middleware(next))
}
