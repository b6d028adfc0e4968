package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"resume-bridge/internal/shared/auth"
)

func newAuthRouter(t *testing.T, allowGuest bool) (*gin.Engine, *auth.Signer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := auth.NewSigner("test-secret", false)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	router := gin.New()
	router.Use(Auth(signer, allowGuest))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":    UserIDFromContext(c),
			"role":  UserRoleFromContext(c),
			"guest": IsGuest(c),
		})
	})
	router.OPTIONS("/whoami", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router, signer
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	router, _ := newAuthRouter(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthBearerSetsRole(t *testing.T) {
	router, signer := newAuthRouter(t, false)
	token, err := signer.Sign(auth.Claims{Sub: "user-7", Role: "admin"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "user-7" || body["role"] != "admin" || body["guest"] != false {
		t.Fatalf("unexpected identity: %v", body)
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	router, _ := newAuthRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthGuestHeader(t *testing.T) {
	router, _ := newAuthRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Guest-Id", "g1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	strict, _ := newAuthRouter(t, false)
	resp = httptest.NewRecorder()
	strict.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when guests are disabled, got %d", resp.Code)
	}
}
