package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/conneroisu/sentra/internal/analysis"
)

func TestAnalysisObserver(t *testing.T) {
	findings := []analysis.Finding{
		{RuleID: "S001", Severity: analysis.SeverityCritical},
		{RuleID: "S006", Severity: analysis.SeverityCritical},
		{RuleID: "S015", Severity: analysis.SeverityLow},
	}

	critical := FindingsTotal.WithLabelValues("security", "critical")
	low := FindingsTotal.WithLabelValues("security", "low")
	beforeCritical := testutil.ToFloat64(critical)
	beforeLow := testutil.ToFloat64(low)

	AnalysisObserver{}.ObserveAnalysis(analysis.KindSecurity, analysis.LanguageJavaScript, 45, findings, time.Millisecond)

	assert.Equal(t, beforeCritical+2, testutil.ToFloat64(critical))
	assert.Equal(t, beforeLow+1, testutil.ToFloat64(low))
}

func TestSetAvailable(t *testing.T) {
	SetAvailable("mock", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(AgentAvailable.WithLabelValues("mock")))

	SetAvailable("mock", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(AgentAvailable.WithLabelValues("mock")))
}

func TestRouteLabel(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil)
	assert.Equal(t, "unmatched", RouteLabel(req))

	mux := http.NewServeMux()
	var seen string
	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		seen = RouteLabel(r)
	})
	mux.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "GET /api/sessions/{id}", seen)
}

func TestHandlerExposesCollectors(t *testing.T) {
	ActiveSessions.Set(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "sentra_active_sessions 3"))
}
