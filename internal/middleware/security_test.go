package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func securityResponse(cfg SecurityHeadersConfig) http.Header {
	r := gin.New()
	r.Use(SecurityHeadersMiddleware(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w.Header()
}

func TestSecurityHeaders_API(t *testing.T) {
	h := securityResponse(APISecurityHeadersConfig(false))

	want := map[string]string{
		"X-Frame-Options":              "SAMEORIGIN",
		"X-Content-Type-Options":       "nosniff",
		"Referrer-Policy":              "no-referrer",
		"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'self'",
		"Cross-Origin-Resource-Policy": "same-origin",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if got := h.Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS sent without TLS: %q", got)
	}
}

func TestSecurityHeaders_HSTSWithTLS(t *testing.T) {
	h := securityResponse(APISecurityHeadersConfig(true))
	if got := h.Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("Strict-Transport-Security = %q", got)
	}
}

func TestSecurityHeaders_EmptyConfigOmitsOptionalHeaders(t *testing.T) {
	h := securityResponse(SecurityHeadersConfig{})
	for _, k := range []string{"X-Frame-Options", "Content-Security-Policy", "Referrer-Policy", "Strict-Transport-Security"} {
		if got := h.Get(k); got != "" {
			t.Errorf("%s = %q, want empty", k, got)
		}
	}
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff must always be set")
	}
}
