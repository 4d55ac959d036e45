package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/conneroisu/sentra/internal/config"
)

// SecurityConfig holds the response headers applied to every request.
type SecurityConfig struct {
	CSP                 *CSPConfig
	HSTS                *HSTSConfig
	XFrameOptions       string
	XContentTypeNoSniff bool
	ReferrerPolicy      string
	PermissionsPolicy   map[string][]string
}

// CSPConfig holds Content Security Policy configuration
type CSPConfig struct {
	DefaultSrc              []string
	ScriptSrc               []string
	StyleSrc                []string
	ImgSrc                  []string
	ConnectSrc              []string
	ObjectSrc               []string
	FrameAncestors          []string
	BaseURI                 []string
	FormAction              []string
	UpgradeInsecureRequests bool
}

// HSTSConfig holds HTTP Strict Transport Security configuration
type HSTSConfig struct {
	MaxAge            int
	IncludeSubDomains bool
	Preload           bool
}

// DefaultSecurityConfig returns a secure default configuration. The
// rendered documentation page carries inline styles, so style-src allows
// them.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSP: &CSPConfig{
			DefaultSrc:     []string{"'self'"},
			ScriptSrc:      []string{"'self'"},
			StyleSrc:       []string{"'self'", "'unsafe-inline'"},
			ImgSrc:         []string{"'self'", "data:"},
			ConnectSrc:     []string{"'self'", "ws:", "wss:"},
			ObjectSrc:      []string{"'none'"},
			FrameAncestors: []string{"'none'"},
			BaseURI:        []string{"'self'"},
			FormAction:     []string{"'self'"},
		},
		HSTS: &HSTSConfig{
			MaxAge:            31536000,
			IncludeSubDomains: true,
		},
		XFrameOptions:       "DENY",
		XContentTypeNoSniff: true,
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy: map[string][]string{
			"camera":      {},
			"geolocation": {},
			"microphone":  {},
			"payment":     {},
			"usb":         {},
		},
	}
}

// DevelopmentSecurityConfig returns a more permissive config for development
func DevelopmentSecurityConfig() *SecurityConfig {
	config := DefaultSecurityConfig()
	config.CSP.ConnectSrc = append(config.CSP.ConnectSrc, "*")
	config.XFrameOptions = "SAMEORIGIN"
	config.CSP.FrameAncestors = []string{"'self'"}
	config.HSTS = nil
	return config
}

// ProductionSecurityConfig returns a strict config for production
func ProductionSecurityConfig() *SecurityConfig {
	config := DefaultSecurityConfig()
	config.CSP.UpgradeInsecureRequests = true
	config.HSTS.Preload = true
	return config
}

// SecurityConfigFromAppConfig picks the header set for the environment.
func SecurityConfigFromAppConfig(cfg *config.Config) *SecurityConfig {
	switch cfg.Server.Environment {
	case "production":
		return ProductionSecurityConfig()
	case "development":
		return DevelopmentSecurityConfig()
	default:
		return DefaultSecurityConfig()
	}
}

// SecurityMiddleware applies the configured security headers.
func SecurityMiddleware(secConfig *SecurityConfig) func(http.Handler) http.Handler {
	if secConfig == nil {
		secConfig = DefaultSecurityConfig()
	}
	csp := ""
	if secConfig.CSP != nil {
		csp = buildCSPHeader(secConfig.CSP)
	}
	permissions := buildPermissionsPolicyHeader(secConfig.PermissionsPolicy)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if csp != "" {
				h.Set("Content-Security-Policy", csp)
			}
			if secConfig.HSTS != nil && r.TLS != nil {
				h.Set("Strict-Transport-Security", buildHSTSHeader(secConfig.HSTS))
			}
			if secConfig.XFrameOptions != "" {
				h.Set("X-Frame-Options", secConfig.XFrameOptions)
			}
			if secConfig.XContentTypeNoSniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if secConfig.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", secConfig.ReferrerPolicy)
			}
			if permissions != "" {
				h.Set("Permissions-Policy", permissions)
			}
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// buildCSPHeader constructs the Content-Security-Policy header value
func buildCSPHeader(csp *CSPConfig) string {
	var directives []string

	addDirective := func(name string, values []string) {
		if len(values) > 0 {
			directives = append(directives, fmt.Sprintf("%s %s", name, strings.Join(values, " ")))
		}
	}

	addDirective("default-src", csp.DefaultSrc)
	addDirective("script-src", csp.ScriptSrc)
	addDirective("style-src", csp.StyleSrc)
	addDirective("img-src", csp.ImgSrc)
	addDirective("connect-src", csp.ConnectSrc)
	addDirective("object-src", csp.ObjectSrc)
	addDirective("frame-ancestors", csp.FrameAncestors)
	addDirective("base-uri", csp.BaseURI)
	addDirective("form-action", csp.FormAction)

	if csp.UpgradeInsecureRequests {
		directives = append(directives, "upgrade-insecure-requests")
	}

	return strings.Join(directives, "; ")
}

// buildHSTSHeader constructs the Strict-Transport-Security header value
func buildHSTSHeader(hsts *HSTSConfig) string {
	header := fmt.Sprintf("max-age=%d", hsts.MaxAge)

	if hsts.IncludeSubDomains {
		header += "; includeSubDomains"
	}

	if hsts.Preload {
		header += "; preload"
	}

	return header
}

// buildPermissionsPolicyHeader renders features in a stable order.
func buildPermissionsPolicyHeader(pp map[string][]string) string {
	var policies []string
	for _, name := range []string{"camera", "fullscreen", "geolocation", "microphone", "payment", "usb"} {
		values, ok := pp[name]
		if !ok {
			continue
		}
		policies = append(policies, fmt.Sprintf("%s=(%s)", name, strings.Join(values, " ")))
	}
	return strings.Join(policies, ", ")
}

// clientIPResolver finds the address a request came from. Forwarding
// headers are read only when the direct peer is a trusted proxy.
type clientIPResolver struct {
	trusted []*net.IPNet
}

func newClientIPResolver(proxies []string) (*clientIPResolver, error) {
	nets, err := config.ParseTrustedProxies(proxies)
	if err != nil {
		return nil, err
	}
	return &clientIPResolver{trusted: nets}, nil
}

func (c *clientIPResolver) isTrusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range c.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP returns the peer address. Behind a trusted proxy it returns the
// nearest X-Forwarded-For hop that is not itself trusted, then X-Real-IP.
func (c *clientIPResolver) clientIP(r *http.Request) string {
	peer := remoteHost(r)
	if c == nil || !c.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				return peer
			}
			if !c.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
