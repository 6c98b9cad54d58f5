package config

import (
	"fmt"
	"strings"
	"sync"

	"cryptomind/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AutoTradeListener 在 autotrade 配置热更新后被调用。
type AutoTradeListener func(AutoTradeConfig)

// Watcher 监听根配置文件，变更时重新加载并广播 autotrade 段。
// 其他段需要重启生效。
type Watcher struct {
	path string
	v    *viper.Viper

	mu        sync.Mutex
	current   AutoTradeConfig
	listeners []AutoTradeListener
}

// NewWatcher 开始监听 path 对应的文件。
func NewWatcher(path string, initial AutoTradeConfig) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}
	w := &Watcher{path: path, v: v, current: initial}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.reload(); err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
		}
	})
	v.WatchConfig()
	return w, nil
}

// Subscribe 注册监听器。
func (w *Watcher) Subscribe(fn AutoTradeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Current 返回最近一次生效的 autotrade 配置。
func (w *Watcher) Current() AutoTradeConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Watcher) reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	return w.apply(cfg.AutoTrade)
}

func (w *Watcher) apply(next AutoTradeConfig) error {
	if err := next.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	if next == w.current {
		w.mu.Unlock()
		return nil
	}
	w.current = next
	listeners := append([]AutoTradeListener(nil), w.listeners...)
	w.mu.Unlock()

	logger.Infof("config: autotrade reloaded period=%ds sample=%d min_confidence=%d",
		next.PeriodSeconds, next.SampleSize, next.MinConfidence)
	for _, fn := range listeners {
		fn(next)
	}
	return nil
}
