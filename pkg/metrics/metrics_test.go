package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/credkit/pkg/metrics"
)

var _ metrics.Recorder = (*metrics.Collector)(nil)
var _ metrics.Recorder = metrics.Noop{}

func family(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	require.Failf(t, "metric not found", "%s", name)
	return nil
}

func labels(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		out[l.GetName()] = l.GetValue()
	}
	return out
}

func TestCollector_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordAuth("login", metrics.OutcomeSuccess)
	c.RecordAuth("login", metrics.OutcomeSuccess)
	c.RecordAuth("login", "invalid_credential")
	c.RecordOTP("registration", "expired")
	c.RecordOTPIssued("registration")
	c.RecordTOTP("login", metrics.OutcomeFailure)
	c.RecordDocument("upload", metrics.OutcomeSuccess)

	mf := family(t, reg, "credkit_auth_operations_total")
	require.Len(t, mf.GetMetric(), 2)
	for _, m := range mf.GetMetric() {
		l := labels(m)
		assert.Equal(t, "login", l["operation"])
		switch l["outcome"] {
		case metrics.OutcomeSuccess:
			assert.Equal(t, 2.0, m.GetCounter().GetValue())
		case "invalid_credential":
			assert.Equal(t, 1.0, m.GetCounter().GetValue())
		default:
			t.Errorf("unexpected outcome %q", l["outcome"])
		}
	}

	otp := family(t, reg, "credkit_otp_verifications_total")
	require.Len(t, otp.GetMetric(), 1)
	assert.Equal(t, map[string]string{"purpose": "registration", "outcome": "expired"}, labels(otp.GetMetric()[0]))

	assert.Equal(t, 1.0, family(t, reg, "credkit_otp_issued_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, family(t, reg, "credkit_totp_operations_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, family(t, reg, "credkit_document_operations_total").GetMetric()[0].GetCounter().GetValue())
}

func TestCollector_RecordSweep(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordSweep(3)
	c.RecordSweep(0)
	c.RecordSweep(-1)

	mf := family(t, reg, "credkit_otp_swept_total")
	assert.Equal(t, 3.0, mf.GetMetric()[0].GetCounter().GetValue())
}

func TestCollector_ObserveHTTP(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.ObserveHTTP(http.MethodPost, "/auth/login", http.StatusUnauthorized, 20*time.Millisecond)

	total := family(t, reg, "credkit_http_requests_total")
	assert.Equal(t, map[string]string{"method": "POST", "route": "/auth/login", "status_code": "401"}, labels(total.GetMetric()[0]))

	hist := family(t, reg, "credkit_http_request_duration_seconds")
	assert.Equal(t, uint64(1), hist.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestHandler_ServesMetrics(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	c := metrics.NewCollector(reg)
	c.RecordAuth("register", metrics.OutcomeSuccess)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `credkit_auth_operations_total{operation="register",outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCollector_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg)
	assert.Panics(t, func() { metrics.NewCollector(reg) })
}
