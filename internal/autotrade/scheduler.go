package autotrade

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cryptomind/internal/config"
	"cryptomind/internal/journal"
	"cryptomind/internal/logger"
	"cryptomind/internal/market"
	"cryptomind/internal/metrics"
	"cryptomind/internal/oracle"
	"cryptomind/internal/pkg/text"
	"cryptomind/internal/store/decisionlog"
	"cryptomind/internal/trader"
	"cryptomind/internal/wallet"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

// ErrCycleInProgress 表示上一个周期尚未结束，本次 tick 被跳过。
var ErrCycleInProgress = errors.New("autotrade: previous cycle still running")

const reasonMaxLen = 25

// Executor 是调度器依赖的交易执行入口。
type Executor interface {
	Execute(ctx context.Context, req trader.TradeRequest) (journal.Transaction, error)
	Wallet() wallet.Snapshot
}

// Candidates 提供按市值排序的候选行情。
type Candidates interface {
	Top(n int) []market.Quote
}

// Recorder 持久化每个周期的决策。
type Recorder interface {
	Insert(ctx context.Context, rec decisionlog.Record) (int64, error)
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.rng = r
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler 周期性地挑选一个候选资产询问 oracle，并把可执行的决策提交给执行器。
// 同一时刻最多只有一个周期在运行。
type Scheduler struct {
	exec   Executor
	quotes Candidates
	oracle oracle.Oracle

	now      func() time.Time
	rngMu    sync.Mutex
	rng      *rand.Rand
	recorder Recorder
	metrics  *metrics.Metrics
	obs      *schedulerMetrics

	busy atomic.Bool

	mu      sync.Mutex
	state   State
	cfg     config.AutoTradeConfig
	status  Status
	cron    *cron.Cron
	entryID cron.EntryID
	runCtx  context.Context
	hooks   []func(CycleResult)
}

// New 创建调度器；cfg.EnabledOnStart 决定初始状态。
func New(exec Executor, quotes Candidates, o oracle.Oracle, cfg config.AutoTradeConfig, opts ...Option) (*Scheduler, error) {
	if exec == nil || quotes == nil || o == nil {
		return nil, fmt.Errorf("autotrade: executor, quotes and oracle are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		exec:   exec,
		quotes: quotes,
		oracle: o,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		state:  StateIdle,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.EnabledOnStart {
		s.state = StateRunning
	}
	if s.metrics != nil {
		s.obs = newSchedulerMetrics(s.metrics)
	}
	return s, nil
}

// OnCycle 注册周期完成回调，在记录状态之后同步调用。
func (s *Scheduler) OnCycle(fn func(CycleResult)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Enable IDLE -> RUNNING。
func (s *Scheduler) Enable() Status {
	s.mu.Lock()
	if s.state != StateRunning {
		s.state = StateRunning
		logger.Infof("autotrade: enabled period=%ds sample=%d", s.cfg.PeriodSeconds, s.cfg.SampleSize)
	}
	s.mu.Unlock()
	return s.Status()
}

// Disable RUNNING -> IDLE。正在进行的周期会正常结束。
func (s *Scheduler) Disable() Status {
	s.mu.Lock()
	if s.state != StateIdle {
		s.state = StateIdle
		logger.Infof("autotrade: disabled")
	}
	s.mu.Unlock()
	return s.Status()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

// Status 返回状态快照。
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.State = s.state
	st.PeriodSeconds = s.cfg.PeriodSeconds
	st.SampleSize = s.cfg.SampleSize
	st.MinConfidence = s.cfg.MinConfidence
	return st
}

// Reconfigure 应用热更新的配置，period 变化时重新排期。enabled_on_start 只在启动时生效。
func (s *Scheduler) Reconfigure(next config.AutoTradeConfig) {
	if err := next.Validate(); err != nil {
		logger.Warnf("autotrade: ignore invalid config: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reschedule := next.PeriodSeconds != s.cfg.PeriodSeconds
	next.EnabledOnStart = s.cfg.EnabledOnStart
	s.cfg = next
	if reschedule && s.cron != nil {
		if err := s.scheduleLocked(); err != nil {
			logger.Errorf("autotrade: reschedule failed: %v", err)
		}
	}
}

// Run 启动定时器直到 ctx 结束；退出时状态回到 IDLE 并等待进行中的周期完成。
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{})))
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return fmt.Errorf("autotrade: scheduler already running")
	}
	s.cron = c
	s.runCtx = ctx
	if err := s.scheduleLocked(); err != nil {
		s.cron = nil
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	c.Start()
	<-ctx.Done()

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	<-c.Stop().Done()

	s.mu.Lock()
	s.cron = nil
	s.mu.Unlock()
	logger.Infof("autotrade: scheduler stopped")
	return nil
}

func (s *Scheduler) scheduleLocked() error {
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}
	spec := fmt.Sprintf("@every %ds", s.cfg.PeriodSeconds)
	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return fmt.Errorf("autotrade: schedule %q: %w", spec, err)
	}
	s.entryID = id
	return nil
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	running := s.state == StateRunning
	ctx := s.runCtx
	s.mu.Unlock()
	if !running || ctx == nil {
		return
	}
	if _, err := s.RunCycle(ctx); err != nil {
		logger.Debugf("autotrade: tick skipped: %v", err)
	}
}

// RunCycle 执行一个完整周期。仅在上一个周期未结束时返回 ErrCycleInProgress；
// oracle 与执行器的错误都记录在结果中。
func (s *Scheduler) RunCycle(ctx context.Context) (CycleResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.status.Counters.SkippedTicks++
		s.mu.Unlock()
		if s.obs != nil {
			s.obs.skipped.Inc()
		}
		return CycleResult{}, ErrCycleInProgress
	}
	defer s.busy.Store(false)

	res := s.cycle(ctx)
	s.record(ctx, res)
	return res, nil
}

func (s *Scheduler) cycle(ctx context.Context) (res CycleResult) {
	res = CycleResult{CycleID: uuid.NewString(), StartedAt: s.now()}
	defer func() { res.Duration = s.now().Sub(res.StartedAt) }()

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	candidates := s.quotes.Top(cfg.SampleSize)
	if len(candidates) == 0 {
		res.Outcome = OutcomeNoCandidate
		res.Decision = oracle.Hold("No market data")
		res.Summary = "HOLD - No market data"
		return res
	}
	q := candidates[s.pick(len(candidates))]
	res.AssetID, res.Symbol, res.Price = q.AssetID, q.Symbol, q.Price

	s.setAnalyzing(q.AssetID)
	defer s.setAnalyzing("")

	w := s.exec.Wallet()
	var holding *wallet.Holding
	if h, ok := w.Holding(q.AssetID); ok {
		holding = &h
	}

	d, err := s.decide(ctx, q, w.Cash, holding)
	if err != nil {
		res.Err = err
		res.Outcome = OutcomeOracleError
		res.Decision = oracle.Hold(oracleReason(err))
		res.Summary = fmt.Sprintf("HOLD %s - %s", q.Symbol, res.Decision.Reason)
		logger.Warnf("autotrade: oracle failed on %s: %v", q.AssetID, err)
		return res
	}
	if cfg.MinConfidence > 0 && d.Actionable() && d.Confidence < cfg.MinConfidence {
		d = oracle.Decision{
			Action:     oracle.ActionHold,
			Reason:     fmt.Sprintf("Low confidence %d < %d: %s", d.Confidence, cfg.MinConfidence, d.Reason),
			Confidence: d.Confidence,
		}
	}
	res.Decision = d

	if !d.Actionable() {
		res.Outcome = OutcomeHold
		if d.Action == oracle.ActionHold {
			res.Summary = fmt.Sprintf("HOLD %s - %s", q.Symbol, d.Reason)
		} else {
			res.Summary = fmt.Sprintf("SKIP %s %s - non-positive amount", d.Action, q.Symbol)
		}
		return res
	}

	side := journal.SideBuy
	if d.Action == oracle.ActionSell {
		side = journal.SideSell
	}
	conf := d.Confidence
	tx, err := s.exec.Execute(ctx, trader.TradeRequest{
		AssetID:    q.AssetID,
		Side:       side,
		AmountUSD:  d.AmountUSD,
		Origin:     journal.OriginAuto,
		Rationale:  d.Reason,
		Confidence: &conf,
	})
	if err != nil {
		res.Err = err
		res.Outcome = OutcomeRejected
		res.Summary = fmt.Sprintf("%s %s rejected - %s", side, q.Symbol, err)
		logger.Infof("autotrade: %s %s $%.2f rejected: %v", side, q.AssetID, d.AmountUSD, err)
		return res
	}
	res.Tx = &tx
	res.Outcome = OutcomeExecuted
	res.Summary = fmt.Sprintf("%s %s $%.2f - %s", side, tx.Symbol, tx.AmountUSD, d.Reason)
	logger.Infof("autotrade: executed %s %s qty=%.8f price=%.4f", side, tx.AssetID, tx.Quantity, tx.Price)
	return res
}

func (s *Scheduler) decide(ctx context.Context, q market.Quote, cash float64, holding *wallet.Holding) (d oracle.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", oracle.ErrOracleFailure, r)
		}
	}()
	return s.oracle.Decide(ctx, q, cash, holding)
}

func (s *Scheduler) record(ctx context.Context, res CycleResult) {
	s.mu.Lock()
	c := &s.status.Counters
	c.Cycles++
	switch res.Outcome {
	case OutcomeExecuted:
		c.Trades++
	case OutcomeHold, OutcomeNoCandidate:
		c.Holds++
	case OutcomeRejected:
		c.Rejections++
	case OutcomeOracleError:
		c.OracleErrors++
	}
	s.status.LastAction = res.Summary
	s.status.LastActionAt = res.StartedAt.Add(res.Duration)
	hooks := append(([]func(CycleResult))(nil), s.hooks...)
	s.mu.Unlock()

	if s.obs != nil {
		s.obs.cycles.WithLabelValues(string(res.Outcome)).Inc()
		s.obs.duration.Observe(res.Duration.Seconds())
	}
	if s.metrics != nil && res.Outcome == OutcomeRejected {
		s.metrics.ObserveRejection(string(trader.KindOf(res.Err)), journal.OriginAuto)
	}
	if s.recorder != nil && res.Outcome != OutcomeNoCandidate {
		if _, err := s.recorder.Insert(ctx, toRecord(res)); err != nil {
			logger.Warnf("autotrade: record decision failed: %v", err)
		}
	}
	for _, fn := range hooks {
		fn(res)
	}
}

func (s *Scheduler) setAnalyzing(assetID string) {
	s.mu.Lock()
	s.status.Analyzing = assetID
	s.mu.Unlock()
}

func (s *Scheduler) pick(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

func oracleReason(err error) string {
	msg := err.Error()
	msg = strings.TrimPrefix(msg, oracle.ErrOracleFailure.Error()+": ")
	return text.Truncate(msg, reasonMaxLen)
}

func toRecord(res CycleResult) decisionlog.Record {
	rec := decisionlog.Record{
		CycleID:    res.CycleID,
		AssetID:    res.AssetID,
		Symbol:     res.Symbol,
		Price:      res.Price,
		Action:     string(res.Decision.Action),
		AmountUSD:  res.Decision.AmountUSD,
		Confidence: res.Decision.Confidence,
		Reason:     res.Decision.Reason,
		Outcome:    string(res.Outcome),
		DecidedAt:  res.StartedAt,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Tx != nil {
		rec.TxID = res.Tx.ID
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

type schedulerMetrics struct {
	cycles   *prometheus.CounterVec
	duration prometheus.Observer
	skipped  prometheus.Counter
}

func newSchedulerMetrics(m *metrics.Metrics) *schedulerMetrics {
	return &schedulerMetrics{
		cycles: m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cryptomind",
			Subsystem: "autotrade",
			Name:      "cycles_total",
			Help:      "Auto-trade cycles by outcome",
		}, []string{"outcome"}),
		duration: m.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cryptomind",
			Subsystem: "autotrade",
			Name:      "cycle_duration_seconds",
			Help:      "Auto-trade cycle latency",
			Buckets:   prometheus.DefBuckets,
		}, nil).WithLabelValues(),
		skipped: m.NewCounter(prometheus.CounterOpts{
			Namespace: "cryptomind",
			Subsystem: "autotrade",
			Name:      "ticks_skipped_total",
			Help:      "Ticks skipped because the previous cycle was still running",
		}),
	}
}

// cronLogger 把 cron 的日志接到应用 logger。
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
