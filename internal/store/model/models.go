package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"cryptomind/internal/journal"
)

// TransactionModel 对应 transactions 表，一行一笔成交。
type TransactionModel struct {
	Seq        int64          `gorm:"column:seq;primaryKey;autoIncrement"`
	TxID       string         `gorm:"column:tx_id;uniqueIndex"`
	Side       string         `gorm:"column:side"`
	AssetID    string         `gorm:"column:asset_id;index"`
	Symbol     string         `gorm:"column:symbol"`
	Quantity   float64        `gorm:"column:quantity"`
	Price      float64        `gorm:"column:price"`
	AmountUSD  float64        `gorm:"column:amount_usd"`
	Origin     string         `gorm:"column:origin"`
	ExecutedAt int64          `gorm:"column:executed_at;index"` // unix nano
	Meta       datatypes.JSON `gorm:"column:meta;type:TEXT"`
	CreatedAt  int64          `gorm:"column:created_at;autoCreateTime"`
}

func (TransactionModel) TableName() string { return "transactions" }

type transactionMeta struct {
	Rationale  string `json:"rationale,omitempty"`
	Confidence *int   `json:"confidence,omitempty"`
}

// FromTransaction converts a journal entry to its row form.
func FromTransaction(tx journal.Transaction) (*TransactionModel, error) {
	meta, err := json.Marshal(transactionMeta{Rationale: tx.Rationale, Confidence: tx.Confidence})
	if err != nil {
		return nil, err
	}
	return &TransactionModel{
		TxID:       tx.ID,
		Side:       string(tx.Side),
		AssetID:    tx.AssetID,
		Symbol:     tx.Symbol,
		Quantity:   tx.Quantity,
		Price:      tx.Price,
		AmountUSD:  tx.AmountUSD,
		Origin:     string(tx.Origin),
		ExecutedAt: tx.Timestamp.UnixNano(),
		Meta:       datatypes.JSON(meta),
	}, nil
}

// ToTransaction converts a row back to a journal entry.
func (m TransactionModel) ToTransaction() (journal.Transaction, error) {
	var meta transactionMeta
	if len(m.Meta) > 0 {
		if err := json.Unmarshal(m.Meta, &meta); err != nil {
			return journal.Transaction{}, err
		}
	}
	return journal.Transaction{
		ID:         m.TxID,
		Side:       journal.Side(m.Side),
		AssetID:    m.AssetID,
		Symbol:     m.Symbol,
		Quantity:   m.Quantity,
		Price:      m.Price,
		AmountUSD:  m.AmountUSD,
		Timestamp:  time.Unix(0, m.ExecutedAt),
		Origin:     journal.Origin(m.Origin),
		Rationale:  meta.Rationale,
		Confidence: meta.Confidence,
	}, nil
}
