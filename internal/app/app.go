package app

import (
	"context"
	"fmt"
	"io"

	"cryptomind/internal/alert"
	"cryptomind/internal/autotrade"
	"cryptomind/internal/config"
	"cryptomind/internal/logger"
	"cryptomind/internal/market"
	"cryptomind/internal/notify"
	apihttp "cryptomind/internal/transport/http/api"
	"cryptomind/internal/trader"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：行情刷新、交易执行、自动交易与 HTTP 服务。
type App struct {
	cfg       *config.Config
	exec      *trader.Executor
	book      *market.QuoteBook
	refresher *market.Refresher
	hub       *notify.Hub
	alerts    *alert.Book
	scheduler *autotrade.Scheduler
	http      *apihttp.Server
	watcher   *config.Watcher

	closers []io.Closer
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动所有后台任务，直到 ctx 结束或某个任务出错。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.exec == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	defer a.Close()

	a.exec.Start()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return a.refresher.Start(ctx) })
	group.Go(func() error { return a.hub.Run(ctx) })
	group.Go(func() error { return a.scheduler.Run(ctx) })
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	return group.Wait()
}

// Close 停止执行器并关闭存储；可重复调用。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.exec != nil {
		a.exec.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warnf("app: close failed: %v", err)
		}
	}
	a.closers = nil
}

// Executor exposes the trade executor for tests and harnesses.
func (a *App) Executor() *trader.Executor {
	if a == nil {
		return nil
	}
	return a.exec
}

func (a *App) Scheduler() *autotrade.Scheduler {
	if a == nil {
		return nil
	}
	return a.scheduler
}

func (a *App) HTTP() *apihttp.Server {
	if a == nil {
		return nil
	}
	return a.http
}

func (a *App) Quotes() *market.QuoteBook {
	if a == nil {
		return nil
	}
	return a.book
}
