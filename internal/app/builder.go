package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cryptomind/internal/alert"
	"cryptomind/internal/autotrade"
	"cryptomind/internal/config"
	"cryptomind/internal/logger"
	"cryptomind/internal/market"
	"cryptomind/internal/metrics"
	"cryptomind/internal/notify"
	"cryptomind/internal/oracle"
	"cryptomind/internal/store/decisionlog"
	"cryptomind/internal/store/sqlite"
	apihttp "cryptomind/internal/transport/http/api"
	"cryptomind/internal/trader"
	"cryptomind/internal/wallet"

	"github.com/prometheus/client_golang/prometheus"
)

const recentNotifications = 200

// AppBuilder 按配置组装依赖。各 *Fn 字段可在测试中替换。
type AppBuilder struct {
	cfg *config.Config

	feedFn      func(config.MarketConfig) (market.Feed, error)
	oracleFn    func(config.OracleConfig, *metrics.Metrics) (oracle.Oracle, error)
	journalFn   func(config.StoreConfig) (*sqlite.SqliteStore, error)
	decisionsFn func(config.StoreConfig) (*decisionlog.Store, error)
	sinksFn     func(config.NotifyConfig) []notify.Sink

	skipHTTP    bool
	skipWatcher bool
}

type AppBuilderOption func(*AppBuilder)

// WithFeed 替换行情来源。
func WithFeed(feed market.Feed) AppBuilderOption {
	return func(b *AppBuilder) {
		b.feedFn = func(config.MarketConfig) (market.Feed, error) { return feed, nil }
	}
}

// WithOracle 替换决策来源。
func WithOracle(o oracle.Oracle) AppBuilderOption {
	return func(b *AppBuilder) {
		b.oracleFn = func(config.OracleConfig, *metrics.Metrics) (oracle.Oracle, error) { return o, nil }
	}
}

// WithoutHTTP 不构建 HTTP 服务。
func WithoutHTTP() AppBuilderOption {
	return func(b *AppBuilder) { b.skipHTTP = true }
}

// WithoutWatcher 关闭配置热更新。
func WithoutWatcher() AppBuilderOption {
	return func(b *AppBuilder) { b.skipWatcher = true }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		feedFn:      buildFeed,
		oracleFn:    buildOracle,
		journalFn:   openJournal,
		decisionsFn: openDecisionLog,
		sinksFn:     buildSinks,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (a *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	a = &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	if err := b.setupLogging(cfg.App, a); err != nil {
		return a, err
	}
	m := metrics.New()

	// 行情
	feed, err := b.feedFn(cfg.Market)
	if err != nil {
		return a, err
	}
	a.book = market.NewQuoteBook()
	a.refresher = market.NewRefresher(feed, a.book, time.Duration(cfg.Market.RefreshSeconds)*time.Second)
	if err := a.refresher.RunOnce(ctx); err != nil {
		logger.Warnf("app: initial market snapshot failed: %v", err)
	}

	// 通知
	a.hub = notify.NewHub(recentNotifications, b.sinksFn(cfg.Notify)...)
	announcer := notify.NewTradeAnnouncer(a.hub, a.book)
	a.alerts = alert.NewBook(a.hub)
	a.book.OnUpdate(func(quotes []market.Quote) { a.alerts.Evaluate(quotes) })

	// 执行器与持久化
	a.exec = trader.NewExecutor(a.book, cfg.Wallet.SeedBalance)
	a.exec.Start()
	journalStore, err := b.journalFn(cfg.Store)
	if err != nil {
		return a, fmt.Errorf("open journal store: %w", err)
	}
	restored := 0
	if journalStore != nil {
		a.closers = append(a.closers, journalStore)
		if err := a.exec.Recover(ctx, journalStore); err != nil {
			return a, err
		}
		restored = len(a.exec.Transactions(0))
		a.exec.AddObserver(journalStore)
	}
	a.exec.AddObserver(announcer)
	a.exec.AddObserver(m)
	registerPortfolioGauges(m, a.exec, a.book)

	// 自动交易
	o, err := b.oracleFn(cfg.Oracle, m)
	if err != nil {
		return a, err
	}
	opts := []autotrade.Option{autotrade.WithMetrics(m)}
	decisions, err := b.decisionsFn(cfg.Store)
	if err != nil {
		return a, fmt.Errorf("open decision log: %w", err)
	}
	var decisionSource apihttp.Decisions
	if decisions != nil {
		a.closers = append(a.closers, decisions)
		opts = append(opts, autotrade.WithRecorder(decisions))
		decisionSource = decisions
	}
	a.scheduler, err = autotrade.New(a.exec, a.book, o, cfg.AutoTrade, opts...)
	if err != nil {
		return a, err
	}

	if !b.skipWatcher && cfg.Source() != "" {
		w, err := config.NewWatcher(cfg.Source(), cfg.AutoTrade)
		if err != nil {
			logger.Warnf("app: config hot reload disabled: %v", err)
		} else {
			w.Subscribe(a.scheduler.Reconfigure)
			a.watcher = w
		}
	}

	if !b.skipHTTP {
		a.http, err = apihttp.NewServer(apihttp.ServerConfig{
			Addr:               cfg.HTTP.Addr,
			Trader:             a.exec,
			Quotes:             a.book,
			AutoTrader:         a.scheduler,
			Alerts:             a.alerts,
			Notifications:      a.hub,
			Failures:           announcer,
			Decisions:          decisionSource,
			Metrics:            m,
			TradeRatePerSecond: cfg.HTTP.TradeRatePerSecond,
			TradeBurst:         cfg.HTTP.TradeBurst,
		})
		if err != nil {
			return a, err
		}
	}

	a.Summary = buildSummary(cfg, a, restored, journalStore != nil, decisions != nil)
	return a, nil
}

func (b *AppBuilder) setupLogging(cfg config.AppConfig, a *App) error {
	logger.SetLevel(cfg.LogLevel)
	w, err := logger.OpenRotating(logger.FileOptions{Path: cfg.LogPath, MaxSizeMB: cfg.LogMaxSizeMB, MaxBackups: cfg.LogMaxBackups})
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if w != nil {
		logger.SetOutput(io.MultiWriter(os.Stdout, w))
		a.closers = append(a.closers, w)
	}
	ow, err := logger.OpenRotating(logger.FileOptions{Path: cfg.OracleLog, MaxSizeMB: cfg.LogMaxSizeMB, MaxBackups: cfg.LogMaxBackups})
	if err != nil {
		return fmt.Errorf("open oracle log: %w", err)
	}
	if ow != nil {
		logger.SetOracleWriter(ow)
		a.closers = append(a.closers, ow)
	}
	logger.EnableOracleDump(cfg.OracleDump)
	return nil
}

// registerPortfolioGauges 暴露现金与净值，抓取时从最新快照计算。
func registerPortfolioGauges(m *metrics.Metrics, exec *trader.Executor, book *market.QuoteBook) {
	m.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "cryptomind",
		Subsystem: "wallet",
		Name:      "cash_usd",
		Help:      "Cash balance in USD",
	}, func() float64 { return exec.Wallet().Cash })
	m.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "cryptomind",
		Subsystem: "wallet",
		Name:      "net_worth_usd",
		Help:      "Cash plus holdings at the latest price",
	}, func() float64 { return wallet.NetWorth(exec.Wallet(), book.ByID()) })
	m.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "cryptomind",
		Subsystem: "wallet",
		Name:      "holdings",
		Help:      "Number of open holdings",
	}, func() float64 { return float64(len(exec.Wallet().Holdings)) })
}
