package trader

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"cryptomind/internal/journal"
	"cryptomind/internal/logger"
	"cryptomind/internal/wallet"
)

// sellTolerance 允许的相对误差，使"按同价卖出全部持仓"不会因浮点误差失败。
const sellTolerance = 1e-9

// TradeHandler 执行一笔 TradeRequest。
type TradeHandler struct{}

func (h *TradeHandler) Type() EventType { return EvtTradeRequested }

func (h *TradeHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	var req TradeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return invalidAmount("", fmt.Sprintf("invalid trade payload: %v", err))
	}
	if err := validateRequest(&req); err != nil {
		return err
	}

	e := ctx.exec
	quote, ok := e.quotes.Quote(req.AssetID)
	if !ok || !quote.Valid() {
		return quoteUnavailable(req.AssetID)
	}
	price := quote.Price
	coinAmount := req.AmountUSD / price

	proceeds := req.AmountUSD
	work := ctx.Ledger().Clone()
	switch req.Side {
	case journal.SideBuy:
		if work.Cash() < req.AmountUSD {
			return insufficientFunds(req.AssetID)
		}
		work.ApplyBuy(req.AssetID, quote.Symbol, coinAmount, price, req.AmountUSD)
	case journal.SideSell:
		held, ok := work.Holding(req.AssetID)
		if !ok {
			return insufficientHoldings(req.AssetID, quote.Symbol)
		}
		if coinAmount > held.Quantity {
			if coinAmount-held.Quantity > held.Quantity*sellTolerance {
				return insufficientHoldings(req.AssetID, quote.Symbol)
			}
			// 卖出全部持仓，按实际数量计价
			coinAmount = held.Quantity
			proceeds = coinAmount * price
		}
		if err := work.ApplySell(req.AssetID, coinAmount, proceeds); err != nil {
			return insufficientHoldings(req.AssetID, quote.Symbol)
		}
	}

	tx := journal.Transaction{
		ID:         e.newID(),
		Side:       req.Side,
		AssetID:    req.AssetID,
		Symbol:     strings.ToUpper(quote.Symbol),
		Quantity:   coinAmount,
		Price:      price,
		AmountUSD:  proceeds,
		Timestamp:  e.now(),
		Origin:     req.Origin,
		Rationale:  req.Rationale,
		Confidence: req.Confidence,
	}
	if err := ctx.Commit(work, tx); err != nil {
		return err
	}
	logger.Infof("Executor: %s %s %s qty=%.8f price=%.8f usd=%.2f (trace=%s)",
		tx.Origin, tx.Side, tx.Symbol, tx.Quantity, tx.Price, tx.AmountUSD, traceID)
	return nil
}

func validateRequest(req *TradeRequest) error {
	req.AssetID = strings.TrimSpace(req.AssetID)
	if req.AssetID == "" {
		return invalidAmount("", "asset id is required")
	}
	side, ok := journal.ParseSide(string(req.Side))
	if !ok {
		return invalidAmount(req.AssetID, fmt.Sprintf("unknown trade side %q", req.Side))
	}
	req.Side = side
	if math.IsNaN(req.AmountUSD) || math.IsInf(req.AmountUSD, 0) || req.AmountUSD <= 0 {
		return invalidAmount(req.AssetID, "amount must be a positive number")
	}
	if req.Origin == "" {
		req.Origin = journal.OriginManual
	}
	return nil
}

// RestoreHandler 重放持久化的成交，重建账本与流水。
type RestoreHandler struct{}

func (h *RestoreHandler) Type() EventType { return EvtRestore }

func (h *RestoreHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	var p RestorePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal restore payload: %w", err)
	}
	ledger := wallet.NewLedger(ctx.exec.seed)
	log := journal.NewLog()
	for i, tx := range p.Transactions {
		switch tx.Side {
		case journal.SideBuy:
			ledger.ApplyBuy(tx.AssetID, tx.Symbol, tx.Quantity, tx.Price, tx.AmountUSD)
		case journal.SideSell:
			if err := ledger.ApplySell(tx.AssetID, tx.Quantity, tx.AmountUSD); err != nil {
				return fmt.Errorf("replay transaction #%d (%s): %w", i, tx.ID, err)
			}
		default:
			return fmt.Errorf("replay transaction #%d (%s): unknown side %q", i, tx.ID, tx.Side)
		}
		log.Append(tx)
	}
	if ledger.Cash() < 0 {
		return fmt.Errorf("replay produced negative cash %.2f", ledger.Cash())
	}
	if err := ctx.Reset(ledger, log); err != nil {
		return err
	}
	logger.Infof("Executor: restored %d transactions, cash=%.2f (trace=%s)", log.Len(), ledger.Cash(), traceID)
	return nil
}
