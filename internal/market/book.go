package market

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// UpdateListener 在每次行情快照更新后被调用。
type UpdateListener func([]Quote)

type bookSnapshot struct {
	list []Quote
	byID map[string]Quote
	at   time.Time
}

// QuoteBook 持有最新的一份行情快照。读取无锁，写入整体替换。
type QuoteBook struct {
	snap atomic.Value // *bookSnapshot

	mu        sync.Mutex
	listeners []UpdateListener
}

func NewQuoteBook() *QuoteBook {
	b := &QuoteBook{}
	b.snap.Store(&bookSnapshot{byID: map[string]Quote{}})
	return b
}

// Update 用 quotes 替换当前快照，无效报价被丢弃。按市值降序保存。
func (b *QuoteBook) Update(quotes []Quote) {
	list := make([]Quote, 0, len(quotes))
	byID := make(map[string]Quote, len(quotes))
	for _, q := range quotes {
		if !q.Valid() {
			continue
		}
		q = q.clone()
		q.AssetID = strings.TrimSpace(q.AssetID)
		if _, dup := byID[q.AssetID]; dup {
			continue
		}
		byID[q.AssetID] = q
		list = append(list, q)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].MarketCap > list[j].MarketCap
	})
	b.snap.Store(&bookSnapshot{list: list, byID: byID, at: time.Now()})

	b.mu.Lock()
	listeners := append([]UpdateListener(nil), b.listeners...)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(b.All())
	}
}

// OnUpdate registers fn to run after every Update.
func (b *QuoteBook) OnUpdate(fn UpdateListener) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

func (b *QuoteBook) load() *bookSnapshot {
	return b.snap.Load().(*bookSnapshot)
}

// Quote 按资产 id 查找报价。
func (b *QuoteBook) Quote(assetID string) (Quote, bool) {
	q, ok := b.load().byID[strings.TrimSpace(assetID)]
	if !ok {
		return Quote{}, false
	}
	return q.clone(), true
}

// All 返回按市值降序排列的报价副本。
func (b *QuoteBook) All() []Quote {
	snap := b.load()
	out := make([]Quote, len(snap.list))
	for i, q := range snap.list {
		out[i] = q.clone()
	}
	return out
}

// Top returns at most n quotes with the largest market cap.
func (b *QuoteBook) Top(n int) []Quote {
	all := b.All()
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// ByID 返回资产 id 到报价的映射副本。
func (b *QuoteBook) ByID() map[string]Quote {
	snap := b.load()
	out := make(map[string]Quote, len(snap.byID))
	for id, q := range snap.byID {
		out[id] = q.clone()
	}
	return out
}

func (b *QuoteBook) Len() int {
	return len(b.load().list)
}

// UpdatedAt 返回最近一次 Update 的时间；从未更新时为零值。
func (b *QuoteBook) UpdatedAt() time.Time {
	return b.load().at
}
