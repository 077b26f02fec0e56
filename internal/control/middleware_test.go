package control

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arung-agamani/edifm/internal/auth"
	"github.com/gin-gonic/gin"
)

func newTestAuth() *auth.Auth {
	return auth.New(auth.Config{
		Username:  "control",
		Password:  "edifm",
		JWTSecret: "test-secret",
	})
}

func runMiddleware(mw gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	mw(c)
	return w
}

func TestSecurityHeadersMiddlewareSetsHeaders(t *testing.T) {
	w := runMiddleware(SecurityHeadersMiddleware(), httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{
		"X-Content-Type-Options",
		"X-Frame-Options",
		"X-XSS-Protection",
		"Referrer-Policy",
		"Permissions-Policy",
		"Content-Security-Policy",
	} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing security header %q", h)
		}
	}
}

func TestRequireScopeRejectsMissingHeader(t *testing.T) {
	a := newTestAuth()
	w := runMiddleware(RequireScope(a, auth.ScopeSkip), httptest.NewRequest(http.MethodPost, "/control/skip", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
}

func TestRequireScopeRejectsMalformedHeader(t *testing.T) {
	a := newTestAuth()
	req := httptest.NewRequest(http.MethodPost, "/control/skip", nil)
	req.Header.Set("Authorization", "not-a-bearer-token")

	w := runMiddleware(RequireScope(a, auth.ScopeSkip), req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
}

func TestRequireScopeAcceptsTokenWithMatchingScope(t *testing.T) {
	a := newTestAuth()
	token, err := a.CreateToken("control", auth.ScopeSkip)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/control/skip", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c.Request = req

	RequireScope(a, auth.ScopeSkip)(c)
	if c.IsAborted() {
		t.Fatalf("expected a token carrying the required scope to pass through, got status %d", w.Code)
	}

	claims, ok := c.Get(auth.ClaimsContextKey)
	if !ok {
		t.Fatal("expected claims to be attached to the request context")
	}
	if claims.(*auth.Claims).Sub != "control" {
		t.Fatalf("got subject %q, want %q", claims.(*auth.Claims).Sub, "control")
	}
}

func TestRequireScopeRejectsTokenMissingScope(t *testing.T) {
	a := newTestAuth()
	// Token only scoped to skip; restart must still be rejected.
	token, err := a.CreateToken("control", auth.ScopeSkip)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/control/restart", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := runMiddleware(RequireScope(a, auth.ScopeRestart), req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403 for a token lacking the restart scope", w.Code)
	}
}

func TestRequireScopeRejectsTamperedToken(t *testing.T) {
	a := newTestAuth()
	token, err := a.CreateToken("control", auth.ScopeSkip)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/control/skip", nil)
	req.Header.Set("Authorization", "Bearer "+token+"tampered")

	w := runMiddleware(RequireScope(a, auth.ScopeSkip), req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
}
