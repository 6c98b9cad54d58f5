package store

import (
	"context"

	"cryptomind/internal/store/model"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	// Transactions returns the trade repository within this transaction.
	Transactions() TransactionRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Transactions returns a repository bound to the root connection.
	Transactions() TransactionRepository
	Close() error
}

// TransactionRepository 持久化成交记录。
type TransactionRepository interface {
	// Save 写入一笔成交；相同 tx_id 重复写入被忽略。
	Save(ctx context.Context, rec *model.TransactionModel) error
	// List 返回最新的 limit 条，最新在前。limit <= 0 返回全部。
	List(ctx context.Context, limit int) ([]model.TransactionModel, error)
	// All 按写入顺序返回全部记录。
	All(ctx context.Context) ([]model.TransactionModel, error)
	Count(ctx context.Context) (int64, error)
}
