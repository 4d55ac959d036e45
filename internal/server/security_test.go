package server

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityMiddlewareHeaders(t *testing.T) {
	h := SecurityMiddleware(DefaultSecurityConfig())(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	hdr := rec.Header()
	assert.Equal(t, "DENY", hdr.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", hdr.Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", hdr.Get("Referrer-Policy"))
	assert.Equal(t, "camera=(), geolocation=(), microphone=(), payment=(), usb=()", hdr.Get("Permissions-Policy"))
	assert.Equal(t, "none", hdr.Get("X-Permitted-Cross-Domain-Policies"))
	assert.Empty(t, hdr.Get("Strict-Transport-Security"))
	assert.Contains(t, hdr.Get("Content-Security-Policy"), "default-src 'self'")
	assert.Contains(t, hdr.Get("Content-Security-Policy"), "object-src 'none'")
}

func TestSecurityMiddlewareHSTSOverTLS(t *testing.T) {
	h := SecurityMiddleware(ProductionSecurityConfig())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "max-age=31536000; includeSubDomains; preload", rec.Header().Get("Strict-Transport-Security"))
}

func TestSecurityConfigFromAppConfig(t *testing.T) {
	cfg := testConfig()

	cfg.Server.Environment = "development"
	dev := SecurityConfigFromAppConfig(cfg)
	assert.Nil(t, dev.HSTS)
	assert.Equal(t, "SAMEORIGIN", dev.XFrameOptions)

	cfg.Server.Environment = "production"
	assert.True(t, SecurityConfigFromAppConfig(cfg).CSP.UpgradeInsecureRequests)

	cfg.Server.Environment = "staging"
	assert.Equal(t, "DENY", SecurityConfigFromAppConfig(cfg).XFrameOptions)
}

func TestBuildCSPHeader(t *testing.T) {
	csp := &CSPConfig{
		DefaultSrc:              []string{"'self'"},
		ScriptSrc:               []string{"'self'", "cdn.example.com"},
		UpgradeInsecureRequests: true,
	}

	assert.Equal(t, "default-src 'self'; script-src 'self' cdn.example.com; upgrade-insecure-requests", buildCSPHeader(csp))
}

func TestClientIPResolver(t *testing.T) {
	resolver, err := newClientIPResolver([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"no port", nil, "192.0.2.7", "192.0.2.7"},
		{"untrusted peer forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5"}, "192.0.2.1:1", "192.0.2.1"},
		{"untrusted peer real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "192.0.2.1:1", "192.0.2.1"},
		{"trusted peer forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.5"},
		{"trusted peer spoofed first hop", map[string]string{"X-Forwarded-For": "198.51.100.1, 203.0.113.5"}, "10.0.0.1:1", "203.0.113.5"},
		{"trusted peer all hops trusted", map[string]string{"X-Forwarded-For": "10.0.0.3, 10.0.0.2"}, "10.0.0.1:1", "10.0.0.3"},
		{"trusted peer garbage hop", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.1:1", "10.0.0.1"},
		{"trusted peer real ip", map[string]string{"X-Real-IP": " 203.0.113.9 "}, "10.0.0.1:1", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, resolver.clientIP(req))
		})
	}
}

func TestClientIPResolverInvalidProxy(t *testing.T) {
	_, err := newClientIPResolver([]string{"proxy.local"})
	assert.Error(t, err)
}
