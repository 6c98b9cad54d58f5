package autotrade

import (
	"time"

	"cryptomind/internal/journal"
	"cryptomind/internal/oracle"
)

// State 是调度器状态。
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
)

// Outcome 描述一次周期的结局。
type Outcome string

const (
	OutcomeExecuted    Outcome = "EXECUTED"
	OutcomeHold        Outcome = "HOLD"
	OutcomeRejected    Outcome = "REJECTED"
	OutcomeOracleError Outcome = "ORACLE_ERROR"
	OutcomeNoCandidate Outcome = "NO_CANDIDATE"
)

// CycleResult 是一次周期的完整记录。
type CycleResult struct {
	CycleID   string
	AssetID   string
	Symbol    string
	Price     float64
	Decision  oracle.Decision
	Outcome   Outcome
	Tx        *journal.Transaction
	Err       error
	StartedAt time.Time
	Duration  time.Duration
	Summary   string
}

// Counters 累计统计。
type Counters struct {
	Cycles       uint64 `json:"cycles"`
	Trades       uint64 `json:"trades"`
	Holds        uint64 `json:"holds"`
	Rejections   uint64 `json:"rejections"`
	OracleErrors uint64 `json:"oracle_errors"`
	SkippedTicks uint64 `json:"skipped_ticks"`
}

// Status 是对外展示的调度器状态。
type Status struct {
	State         State     `json:"state"`
	Analyzing     string    `json:"analyzing,omitempty"`
	LastAction    string    `json:"last_action,omitempty"`
	LastActionAt  time.Time `json:"last_action_at,omitempty"`
	PeriodSeconds int       `json:"period_seconds"`
	SampleSize    int       `json:"sample_size"`
	MinConfidence int       `json:"min_confidence"`
	Counters      Counters  `json:"counters"`
}
