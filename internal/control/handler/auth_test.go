package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arung-agamani/edifm/internal/auth"
	"github.com/gin-gonic/gin"
)

func newTestAuthHandlers() *AuthHandlers {
	a := auth.New(auth.Config{
		Username:  "control",
		Password:  "edifm-pass",
		JWTSecret: "test-secret-at-least-32-bytes-long!!",
	})
	return NewAuthHandlers(a)
}

func postJSON(t *testing.T, path string, body any) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	return w, c
}

func TestLoginSucceedsWithCorrectCredentials(t *testing.T) {
	h := newTestAuthHandlers()
	w, c := postJSON(t, "/control/login", map[string]string{
		"username": "control",
		"password": "edifm-pass",
	})

	h.Login(c)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["token"] == "" || resp["token"] == nil {
		t.Fatal("expected a non-empty token in the response")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h := newTestAuthHandlers()
	w, c := postJSON(t, "/control/login", map[string]string{
		"username": "control",
		"password": "wrong",
	})

	h.Login(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", w.Code)
	}
}

func TestLoginRejectsOversizedCredentials(t *testing.T) {
	h := newTestAuthHandlers()
	huge := make([]byte, 300)
	for i := range huge {
		huge[i] = 'a'
	}
	w, c := postJSON(t, "/control/login", map[string]string{
		"username": string(huge),
		"password": "edifm-pass",
	})

	h.Login(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	h := newTestAuthHandlers()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/control/login", bytes.NewReader([]byte("not json")))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestVerifyTokenReturnsOK(t *testing.T) {
	h := newTestAuthHandlers()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/control/verify", nil)

	h.VerifyToken(c)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
}

func TestVerifyTokenReportsGrantedScopes(t *testing.T) {
	h := newTestAuthHandlers()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/control/verify", nil)
	c.Set(auth.ClaimsContextKey, &auth.Claims{Sub: "control", Scopes: []string{auth.ScopeSkip}})

	h.VerifyToken(c)

	var resp struct {
		Scopes []string `json:"scopes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Scopes) != 1 || resp.Scopes[0] != auth.ScopeSkip {
		t.Fatalf("got scopes %v, want [%q]", resp.Scopes, auth.ScopeSkip)
	}
}
