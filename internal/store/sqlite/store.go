package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cryptomind/internal/journal"
	applog "cryptomind/internal/logger"
	"cryptomind/internal/store"
	"cryptomind/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type SqliteStore struct {
	db *gorm.DB
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return newSqliteStore(db)
}

func newSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	if err := db.AutoMigrate(&model.TransactionModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormUnitOfWork{tx: tx}, nil
}

func (s *SqliteStore) Transactions() store.TransactionRepository {
	return NewTransactionRepo(s.db)
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveTransaction 持久化一笔成交。
func (s *SqliteStore) SaveTransaction(ctx context.Context, tx journal.Transaction) error {
	rec, err := model.FromTransaction(tx)
	if err != nil {
		return fmt.Errorf("encode transaction %s: %w", tx.ID, err)
	}
	return s.Transactions().Save(ctx, rec)
}

// SaveTransactions writes a batch inside one database transaction.
func (s *SqliteStore) SaveTransactions(ctx context.Context, txs []journal.Transaction) (err error) {
	uow, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()
	repo := uow.Transactions()
	for _, tx := range txs {
		rec, encErr := model.FromTransaction(tx)
		if encErr != nil {
			return fmt.Errorf("encode transaction %s: %w", tx.ID, encErr)
		}
		if err = repo.Save(ctx, rec); err != nil {
			return err
		}
	}
	return uow.Commit()
}

// ListTransactions 返回最新在前的成交。
func (s *SqliteStore) ListTransactions(ctx context.Context, limit int) ([]journal.Transaction, error) {
	recs, err := s.Transactions().List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toTransactions(recs)
}

// LoadAll 按写入顺序返回全部成交，供执行器重放。
func (s *SqliteStore) LoadAll(ctx context.Context) ([]journal.Transaction, error) {
	recs, err := s.Transactions().All(ctx)
	if err != nil {
		return nil, err
	}
	return toTransactions(recs)
}

// OnTransaction mirrors executed trades into the database.
func (s *SqliteStore) OnTransaction(ctx context.Context, tx journal.Transaction) {
	if err := s.SaveTransaction(ctx, tx); err != nil {
		applog.Errorf("store: persist transaction %s failed: %v", tx.ID, err)
	}
}

func toTransactions(recs []model.TransactionModel) ([]journal.Transaction, error) {
	out := make([]journal.Transaction, 0, len(recs))
	for _, rec := range recs {
		tx, err := rec.ToTransaction()
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", rec.TxID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

type gormUnitOfWork struct {
	tx *gorm.DB
}

func (u *gormUnitOfWork) Transactions() store.TransactionRepository {
	return NewTransactionRepo(u.tx)
}

func (u *gormUnitOfWork) Commit() error {
	return u.tx.Commit().Error
}

func (u *gormUnitOfWork) Rollback() error {
	return u.tx.Rollback().Error
}
