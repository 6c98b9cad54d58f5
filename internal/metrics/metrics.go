// Package metrics 持有进程内唯一的 Prometheus 注册表和交易相关指标。
package metrics

import (
	"context"
	"net/http"

	"cryptomind/internal/journal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cryptomind"

// Metrics 封装独立的注册表及预定义指标。
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec   // method, path, status
	HTTPRequestDuration *prometheus.HistogramVec // method, path
	TradesTotal         *prometheus.CounterVec   // side, origin
	TradeVolumeUSD      *prometheus.CounterVec   // side, origin
	TradeRejections     *prometheus.CounterVec   // kind, origin
}

// New 创建注册表并注册运行时与进程指标。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}
	m.HTTPRequestsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	m.HTTPRequestDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
	m.TradesTotal = m.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trader",
		Name:      "trades_total",
		Help:      "Executed trades",
	}, []string{"side", "origin"})
	m.TradeVolumeUSD = m.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trader",
		Name:      "volume_usd_total",
		Help:      "Executed notional in USD",
	}, []string{"side", "origin"})
	m.TradeRejections = m.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trader",
		Name:      "rejections_total",
		Help:      "Rejected trade requests by error kind",
	}, []string{"kind", "origin"})
	return m
}

func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labels)
	m.registry.MustRegister(cv)
	return cv
}

func (m *Metrics) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	m.registry.MustRegister(c)
	return c
}

func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labels)
	m.registry.MustRegister(hv)
	return hv
}

// NewGaugeFunc 注册一个在抓取时求值的 gauge。
func (m *Metrics) NewGaugeFunc(opts prometheus.GaugeOpts, fn func() float64) prometheus.GaugeFunc {
	g := prometheus.NewGaugeFunc(opts, fn)
	m.registry.MustRegister(g)
	return g
}

// Registry 暴露底层注册表，测试中用于读取指标。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnTransaction 作为执行器观察者统计成交。
func (m *Metrics) OnTransaction(_ context.Context, tx journal.Transaction) {
	side, origin := string(tx.Side), string(tx.Origin)
	m.TradesTotal.WithLabelValues(side, origin).Inc()
	m.TradeVolumeUSD.WithLabelValues(side, origin).Add(tx.AmountUSD)
}

// ObserveRejection 记录一次被拒绝的交易请求。
func (m *Metrics) ObserveRejection(kind string, origin journal.Origin) {
	if kind == "" {
		kind = "unknown"
	}
	m.TradeRejections.WithLabelValues(kind, string(origin)).Inc()
}
