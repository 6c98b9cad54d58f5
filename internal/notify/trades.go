package notify

import (
	"context"
	"fmt"
	"strings"

	"cryptomind/internal/journal"
	"cryptomind/internal/market"
)

// QuoteLookup resolves display names for assets.
type QuoteLookup interface {
	Quote(assetID string) (market.Quote, bool)
}

// TradeAnnouncer 把成交转换为用户通知，作为执行器的观察者注册。
type TradeAnnouncer struct {
	hub    *Hub
	quotes QuoteLookup
}

func NewTradeAnnouncer(hub *Hub, quotes QuoteLookup) *TradeAnnouncer {
	return &TradeAnnouncer{hub: hub, quotes: quotes}
}

func (a *TradeAnnouncer) OnTransaction(_ context.Context, tx journal.Transaction) {
	n := Notification{
		AssetID:   tx.AssetID,
		Origin:    string(tx.Origin),
		Timestamp: tx.Timestamp,
	}
	if tx.IsAuto() {
		n.Level = LevelInfo
		n.Message = fmt.Sprintf("AI Executed: %s %s", tx.Side, tx.Symbol)
		n.Detail = autoTradeMessage(tx)
	} else {
		verb := "bought"
		if tx.Side == journal.SideSell {
			verb = "sold"
		}
		n.Level = LevelSuccess
		n.Message = fmt.Sprintf("Successfully %s %s", verb, a.displayName(tx))
	}
	a.hub.Publish(n)
}

// TradeFailed 发布一次手动交易失败的提示。
func (a *TradeAnnouncer) TradeFailed(assetID string, err error) {
	if err == nil {
		return
	}
	a.hub.Publish(Notification{
		Level:   LevelError,
		Message: err.Error(),
		AssetID: assetID,
		Origin:  string(journal.OriginManual),
	})
}

func (a *TradeAnnouncer) displayName(tx journal.Transaction) string {
	if a.quotes != nil {
		if q, ok := a.quotes.Quote(tx.AssetID); ok && strings.TrimSpace(q.Name) != "" {
			return q.Name
		}
	}
	if tx.Symbol != "" {
		return tx.Symbol
	}
	return tx.AssetID
}

func autoTradeMessage(tx journal.Transaction) *StructuredMessage {
	lines := []string{
		fmt.Sprintf("Side: %s", tx.Side),
		fmt.Sprintf("Amount: $%.2f", tx.AmountUSD),
		fmt.Sprintf("Quantity: %.8f @ $%g", tx.Quantity, tx.Price),
	}
	if tx.Confidence != nil {
		lines = append(lines, fmt.Sprintf("Confidence: %d", *tx.Confidence))
	}
	msg := &StructuredMessage{
		Icon:      "🤖",
		Title:     fmt.Sprintf("Auto trade %s %s", tx.Side, tx.Symbol),
		Sections:  []MessageSection{{Title: "Execution", Lines: lines}},
		Timestamp: tx.Timestamp,
	}
	if r := strings.TrimSpace(tx.Rationale); r != "" {
		msg.Sections = append(msg.Sections, MessageSection{Title: "Reason", Lines: []string{r}})
	}
	return msg
}
