package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	s, err := NewSessions("admin", "password", "test-secret", false)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	return s
}

func TestLoginAndVerify(t *testing.T) {
	s := newTestSessions(t)

	if _, _, err := s.Login("admin", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := s.Login("root", "password"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	token, expires, err := s.Login("admin", "password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if d := time.Until(expires); d < 23*time.Hour || d > 25*time.Hour {
		t.Errorf("unexpected expiry %v", expires)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestVerifyRejects(t *testing.T) {
	s := newTestSessions(t)
	other, _ := NewSessions("admin", "password", "other-secret", false)
	foreign, _, _ := other.Login("admin", "password")

	expired := newTestSessions(t)
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, _, _ := expired.Login("admin", "password")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", old},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Verify(tt.token); err != ErrInvalidSession {
				t.Errorf("expected ErrInvalidSession, got %v", err)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	s := newTestSessions(t)
	token, _, _ := s.Login("admin", "password")

	r := gin.New()
	r.GET("/admin", s.RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	tests := []struct {
		name   string
		cookie string
		want   int
	}{
		{"no cookie", "", http.StatusUnauthorized},
		{"bad cookie", "x", http.StatusUnauthorized},
		{"valid session", token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestSetCookieAttributes(t *testing.T) {
	s := newTestSessions(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	s.SetCookie(c, "tok")

	resp := w.Result()
	var found *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == CookieName {
			found = ck
		}
	}
	if found == nil {
		t.Fatal("cookie not set")
	}
	if !found.HttpOnly || found.MaxAge != 86400 || found.Path != "/" {
		t.Errorf("unexpected cookie %+v", found)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/x", APIKeyMiddleware("k"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "nope", "", http.StatusForbidden},
		{"header", "k", "", http.StatusNoContent},
		{"query", "", "k", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/x"
			if tt.query != "" {
				url += "?api_key=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
