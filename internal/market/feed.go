package market

import (
	"context"
	"fmt"
	"time"

	"cryptomind/internal/logger"
)

// Feed 提供当前行情列表。
type Feed interface {
	Quotes(ctx context.Context) ([]Quote, error)
}

// FeedFunc adapts a function to Feed.
type FeedFunc func(ctx context.Context) ([]Quote, error)

func (f FeedFunc) Quotes(ctx context.Context) ([]Quote, error) { return f(ctx) }

// Refresher 按固定间隔从 Feed 拉取行情写入 QuoteBook。
// 拉取失败时保留上一份快照。
type Refresher struct {
	feed     Feed
	book     *QuoteBook
	interval time.Duration
}

func NewRefresher(feed Feed, book *QuoteBook, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{feed: feed, book: book, interval: interval}
}

// RunOnce 执行一次拉取。
func (r *Refresher) RunOnce(ctx context.Context) error {
	if r == nil || r.feed == nil || r.book == nil {
		return fmt.Errorf("refresher not configured")
	}
	quotes, err := r.feed.Quotes(ctx)
	if err != nil {
		return fmt.Errorf("fetch quotes: %w", err)
	}
	if len(quotes) == 0 {
		return fmt.Errorf("fetch quotes: empty result")
	}
	r.book.Update(quotes)
	return nil
}

// Start 立即拉取一次，然后按间隔循环直到 ctx 结束。
func (r *Refresher) Start(ctx context.Context) error {
	if err := r.RunOnce(ctx); err != nil {
		logger.Warnf("market: initial refresh failed: %v", err)
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				logger.Warnf("market: refresh failed, keeping previous snapshot: %v", err)
			}
		}
	}
}
