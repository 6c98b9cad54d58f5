package decisionlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record 是自动交易一次周期的决策记录。
type Record struct {
	ID         int64     `json:"id"`
	CycleID    string    `json:"cycle_id"`
	AssetID    string    `json:"asset_id"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Action     string    `json:"action"`
	AmountUSD  float64   `json:"amount_usd"`
	Confidence int       `json:"confidence"`
	Reason     string    `json:"reason"`
	Outcome    string    `json:"outcome"` // EXECUTED / HOLD / REJECTED / ORACLE_ERROR
	TxID       string    `json:"tx_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Store 把决策记录写入 SQLite。
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open 初始化 SQLite 存储。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("decision log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS auto_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id TEXT NOT NULL,
			asset_id TEXT NOT NULL,
			symbol TEXT,
			price REAL,
			action TEXT NOT NULL,
			amount_usd REAL,
			confidence INTEGER,
			reason TEXT,
			outcome TEXT NOT NULL,
			tx_id TEXT,
			error TEXT,
			decided_at INTEGER NOT NULL,
			duration_ms INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_auto_decisions_asset ON auto_decisions(asset_id, decided_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("decision log schema: %w", err)
		}
	}
	return nil
}

// Close 关闭底层 DB。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Insert 写入一条记录并返回自增 id。
func (s *Store) Insert(ctx context.Context, rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, fmt.Errorf("decision log closed")
	}
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO auto_decisions
		(cycle_id, asset_id, symbol, price, action, amount_usd, confidence, reason, outcome, tx_id, error, decided_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CycleID, rec.AssetID, rec.Symbol, rec.Price, rec.Action, rec.AmountUSD, rec.Confidence,
		rec.Reason, rec.Outcome, rec.TxID, rec.Error, rec.DecidedAt.UnixMilli(), rec.DurationMS)
	if err != nil {
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	return res.LastInsertId()
}

// Query 筛选条件。
type Query struct {
	AssetID string
	Outcome string
	Limit   int
}

// List 返回最新在前的记录。
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("decision log closed")
	}
	var (
		where []string
		args  []any
	)
	if v := strings.TrimSpace(q.AssetID); v != "" {
		where = append(where, "asset_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Outcome); v != "" {
		where = append(where, "outcome = ?")
		args = append(args, strings.ToUpper(v))
	}
	stmt := `SELECT id, cycle_id, asset_id, symbol, price, action, amount_usd, confidence, reason, outcome,
		tx_id, error, decided_at, duration_ms FROM auto_decisions`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY id DESC"
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	stmt += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			rec       Record
			symbol    sql.NullString
			reason    sql.NullString
			txID      sql.NullString
			errText   sql.NullString
			decidedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.CycleID, &rec.AssetID, &symbol, &rec.Price, &rec.Action, &rec.AmountUSD,
			&rec.Confidence, &reason, &rec.Outcome, &txID, &errText, &decidedAt, &rec.DurationMS); err != nil {
			return nil, err
		}
		rec.Symbol = symbol.String
		rec.Reason = reason.String
		rec.TxID = txID.String
		rec.Error = errText.String
		rec.DecidedAt = time.UnixMilli(decidedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
