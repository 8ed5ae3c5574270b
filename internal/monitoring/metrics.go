package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ghostinbox/backend/internal/domain"
)

// Metrics 监控指标。
//
// 所有 Record 方法在接收者为 nil 时不做任何事，便于测试中省略指标。
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 别名指标
	AliasLookups   *prometheus.CounterVec
	MessagesServed prometheus.Counter

	// 清理指标
	SweepRuns          *prometheus.CounterVec
	SweepDecisions     *prometheus.CounterVec
	SweepSpamReclaimed prometheus.Counter
	SweepDuration      prometheus.Histogram
	LastSweepTimestamp prometheus.Gauge

	// 邮箱会话
	SessionFailures *prometheus.CounterVec

	// 系统指标
	SystemUptime prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 在指定注册表上创建监控指标，reg 为 nil 时使用默认注册表
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: gatherer,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostinbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ghostinbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ghostinbox_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ghostinbox_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		AliasLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostinbox_alias_lookups_total",
				Help: "Alias lookups by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		MessagesServed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ghostinbox_messages_served_total",
				Help: "Total number of messages returned to alias holders",
			},
		),

		SweepRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostinbox_sweep_runs_total",
				Help: "Retention sweeps by result",
			},
			[]string{"result"},
		),

		SweepDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostinbox_sweep_decisions_total",
				Help: "Retention decisions by kind",
			},
			[]string{"decision"},
		),

		SweepSpamReclaimed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ghostinbox_sweep_spam_reclaimed_total",
				Help: "Messages moved from the spam folder back to the inbox",
			},
		),

		SweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ghostinbox_sweep_duration_seconds",
				Help:    "Retention sweep duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),

		LastSweepTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ghostinbox_sweep_last_success_timestamp_seconds",
				Help: "Unix time of the last successful retention sweep",
			},
		),

		SessionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostinbox_mailbox_session_failures_total",
				Help: "Mailbox session failures by operation",
			},
			[]string{"operation"},
		),

		SystemUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ghostinbox_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostinbox_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ghostinbox_panics_total",
				Help: "Total number of panics",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ghostinbox_rate_limit_blocks_total",
				Help: "Total number of rate limit blocks",
			},
			[]string{"type"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordAliasLookup 记录别名查询结果
func (m *Metrics) RecordAliasLookup(operation, outcome string) {
	if m == nil {
		return
	}
	m.AliasLookups.WithLabelValues(operation, outcome).Inc()
}

// RecordMessagesServed 记录返回给调用方的邮件数
func (m *Metrics) RecordMessagesServed(n int) {
	if m == nil {
		return
	}
	m.MessagesServed.Add(float64(n))
}

// RecordSweep 记录一次清理，err 非 nil 时只计失败次数
func (m *Metrics) RecordSweep(report *domain.SweepReport, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(duration.Seconds())
	if err != nil || report == nil {
		m.SweepRuns.WithLabelValues("failure").Inc()
		return
	}

	m.SweepRuns.WithLabelValues("success").Inc()
	m.SweepDecisions.WithLabelValues(string(domain.DecisionKept)).Add(float64(report.Kept))
	m.SweepDecisions.WithLabelValues(string(domain.DecisionDeletedForeign)).Add(float64(report.DeletedForeign))
	m.SweepDecisions.WithLabelValues(string(domain.DecisionDeletedExpired)).Add(float64(report.DeletedExpired))
	m.SweepSpamReclaimed.Add(float64(report.SpamReclaimed))
	m.LastSweepTimestamp.Set(float64(report.FinishedAt.Unix()))
}

// RecordSessionFailure 记录邮箱会话失败
func (m *Metrics) RecordSessionFailure(operation string) {
	if m == nil {
		return
	}
	m.SessionFailures.WithLabelValues(operation).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	if m == nil {
		return
	}
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	if m == nil {
		return
	}
	m.SystemUptime.Set(uptime.Seconds())
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
