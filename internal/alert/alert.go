package alert

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cryptomind/internal/market"
	"cryptomind/internal/notify"
)

// Condition 触发条件。
type Condition string

const (
	Above Condition = "above"
	Below Condition = "below"
)

func ParseCondition(raw string) (Condition, bool) {
	switch Condition(strings.ToLower(strings.TrimSpace(raw))) {
	case Above:
		return Above, true
	case Below:
		return Below, true
	}
	return "", false
}

// PriceAlert 是一次性价格提醒，触发后移除。
type PriceAlert struct {
	ID          string    `json:"id"`
	AssetID     string    `json:"asset_id"`
	Symbol      string    `json:"symbol"`
	TargetPrice float64   `json:"target_price"`
	Condition   Condition `json:"condition"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a PriceAlert) hit(price float64) bool {
	switch a.Condition {
	case Above:
		return price >= a.TargetPrice
	case Below:
		return price <= a.TargetPrice
	}
	return false
}

// Publisher receives fired alerts.
type Publisher interface {
	Publish(n notify.Notification) notify.Notification
}

// Book 保存未触发的提醒。并发安全。
type Book struct {
	mu     sync.Mutex
	alerts map[string]PriceAlert
	pub    Publisher
	now    func() time.Time
}

func NewBook(pub Publisher) *Book {
	return &Book{alerts: make(map[string]PriceAlert), pub: pub, now: time.Now}
}

// Add 新建提醒。
func (b *Book) Add(assetID, symbol string, target float64, cond Condition) (PriceAlert, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return PriceAlert{}, fmt.Errorf("asset id is required")
	}
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return PriceAlert{}, fmt.Errorf("target price must be > 0")
	}
	if _, ok := ParseCondition(string(cond)); !ok {
		return PriceAlert{}, fmt.Errorf("condition must be %q or %q", Above, Below)
	}
	a := PriceAlert{
		ID:          uuid.NewString(),
		AssetID:     assetID,
		Symbol:      strings.ToUpper(symbol),
		TargetPrice: target,
		Condition:   cond,
		CreatedAt:   b.now(),
	}
	b.mu.Lock()
	b.alerts[a.ID] = a
	b.mu.Unlock()
	return a, nil
}

// Remove reports whether id existed.
func (b *Book) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.alerts[id]; !ok {
		return false
	}
	delete(b.alerts, id)
	return true
}

// List 按创建时间返回所有未触发提醒。
func (b *Book) List() []PriceAlert {
	b.mu.Lock()
	out := make([]PriceAlert, 0, len(b.alerts))
	for _, a := range b.alerts {
		out = append(out, a)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Evaluate 检查报价，触发并移除满足条件的提醒。
func (b *Book) Evaluate(quotes []market.Quote) []PriceAlert {
	prices := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		if q.Valid() {
			prices[q.AssetID] = q.Price
		}
	}
	var fired []PriceAlert
	b.mu.Lock()
	for id, a := range b.alerts {
		if p, ok := prices[a.AssetID]; ok && a.hit(p) {
			fired = append(fired, a)
			delete(b.alerts, id)
		}
	}
	b.mu.Unlock()

	sort.Slice(fired, func(i, j int) bool { return fired[i].CreatedAt.Before(fired[j].CreatedAt) })
	if b.pub != nil {
		for _, a := range fired {
			b.pub.Publish(notify.Notification{
				Level:   notify.LevelInfo,
				AssetID: a.AssetID,
				Message: fmt.Sprintf("Price Alert: %s is %s $%g (now $%g)", a.Symbol, a.Condition, a.TargetPrice, prices[a.AssetID]),
			})
		}
	}
	return fired
}
