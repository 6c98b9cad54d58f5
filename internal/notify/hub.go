package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"cryptomind/internal/logger"
)

// Sink 接收所有通知的外部投递目标，例如 Telegram。
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// Hub 向订阅者和 Sink 扇出通知，并保留最近的记录。
// 订阅者处理不过来时直接丢弃，不阻塞发布方。
type Hub struct {
	mu     sync.Mutex
	recent []Notification
	head   int
	size   int
	subs   map[uint64]chan Notification
	nextID uint64

	sinks  []Sink
	sinkCh chan Notification

	dropped atomic.Uint64
	now     func() time.Time
}

func NewHub(recentCap int, sinks ...Sink) *Hub {
	if recentCap <= 0 {
		recentCap = 100
	}
	return &Hub{
		recent: make([]Notification, recentCap),
		subs:   make(map[uint64]chan Notification),
		sinks:  sinks,
		sinkCh: make(chan Notification, 64),
		now:    time.Now,
	}
}

// Publish 记录并广播通知，补全缺失的 id 与时间戳。
func (h *Hub) Publish(n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = h.now()
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}

	h.mu.Lock()
	h.recent[h.head] = n
	h.head = (h.head + 1) % len(h.recent)
	if h.size < len(h.recent) {
		h.size++
	}
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.dropped.Add(1)
		}
	}
	h.mu.Unlock()

	if len(h.sinks) > 0 {
		select {
		case h.sinkCh <- n:
		default:
			h.dropped.Add(1)
			logger.Warnf("notify: sink queue full, dropping %s", n.ID)
		}
	}
	return n
}

// Publishf is a shortcut for a plain message.
func (h *Hub) Publishf(level Level, format string, args ...any) Notification {
	return h.Publish(Notification{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Subscribe 返回接收通知的 channel 与取消函数。
func (h *Hub) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Notification, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Recent 返回最近 n 条通知，最新在前。n <= 0 表示全部。
func (h *Hub) Recent(n int) []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || n > h.size {
		n = h.size
	}
	out := make([]Notification, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.head - i + len(h.recent)) % len(h.recent)
		out = append(out, h.recent[idx])
	}
	return out
}

// Dropped counts notifications a subscriber or the sink queue could not take.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Run 把通知投递给所有 Sink，直到 ctx 结束。
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-h.sinkCh:
			h.deliver(ctx, n)
		}
	}
}

func (h *Hub) deliver(ctx context.Context, n Notification) {
	var wg conc.WaitGroup
	for _, s := range h.sinks {
		sink := s
		wg.Go(func() {
			dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := sink.Deliver(dctx, n); err != nil {
				logger.Warnf("notify: sink %s failed for %s: %v", sink.Name(), n.ID, err)
			}
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		logger.Errorf("notify: sink panic: %v", r.Value)
	}
}
