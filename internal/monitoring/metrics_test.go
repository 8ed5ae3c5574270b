package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghostinbox/backend/internal/domain"
)

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/v1/alias/resolve", "200", time.Millisecond, 10, 20)
		m.RecordAliasLookup("resolve", "ok")
		m.RecordMessagesServed(3)
		m.RecordSweep(&domain.SweepReport{}, time.Second, nil)
		m.RecordSessionFailure("search")
		m.RecordError("transport", "alias")
		m.RecordPanic()
		m.RecordRateLimitBlock("ip")
		m.UpdateSystemUptime(time.Minute)
	})
}

func TestMetrics_RecordSweep(t *testing.T) {
	t.Run("成功时记录各类决策", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		finished := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

		m.RecordSweep(&domain.SweepReport{
			FinishedAt:     finished,
			Kept:           4,
			DeletedForeign: 2,
			DeletedExpired: 1,
			SpamReclaimed:  3,
		}, 2*time.Second, nil)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("success")))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("failure")))
		assert.Equal(t, 4.0, testutil.ToFloat64(m.SweepDecisions.WithLabelValues(string(domain.DecisionKept))))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepDecisions.WithLabelValues(string(domain.DecisionDeletedForeign))))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepDecisions.WithLabelValues(string(domain.DecisionDeletedExpired))))
		assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepSpamReclaimed))
		assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.LastSweepTimestamp))
	})

	t.Run("失败时只记录失败次数", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())

		m.RecordSweep(nil, time.Second, errors.New("boom"))

		assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("failure")))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.SweepSpamReclaimed))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.LastSweepTimestamp))
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "/v1/alias/messages", "200", 5*time.Millisecond, 0, 512)
	m.RecordHTTPRequest("GET", "/v1/alias/messages", "200", 5*time.Millisecond, 0, 512)
	m.RecordAliasLookup("list", "ok")
	m.RecordMessagesServed(7)
	m.RecordRateLimitBlock("ip")
	m.RecordPanic()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/alias/messages", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AliasLookups.WithLabelValues("list", "ok")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.MessagesServed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitBlocks.WithLabelValues("ip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PanicsTotal))
}

func TestMetrics_HTTPHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordMessagesServed(1)

	w := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ghostinbox_messages_served_total 1")
}
