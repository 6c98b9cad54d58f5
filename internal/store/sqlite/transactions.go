package sqlite

import (
	"context"

	"cryptomind/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) Save(ctx context.Context, rec *model.TransactionModel) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tx_id"}}, DoNothing: true}).
		Create(rec).Error
}

func (r *TransactionRepo) List(ctx context.Context, limit int) ([]model.TransactionModel, error) {
	var recs []model.TransactionModel
	q := r.db.WithContext(ctx).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *TransactionRepo) All(ctx context.Context) ([]model.TransactionModel, error) {
	var recs []model.TransactionModel
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *TransactionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.TransactionModel{}).Count(&n).Error
	return n, err
}
