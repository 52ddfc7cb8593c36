package app

import (
	"context"
	"fmt"
	"io"

	brcfg "brood/internal/config"
	"brood/internal/evolution"
	"brood/internal/logger"
	dashboardhttp "brood/internal/transport/http/dashboard"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→运行演化循环与 dashboard。
type App struct {
	cfg       *brcfg.Config
	loop      *evolution.Loop
	dashboard *dashboardhttp.Server
	closers   []io.Closer
	Summary   *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 运行演化循环直到轮数耗尽、种群灭绝或 ctx 取消，dashboard 随之关闭。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.loop == nil {
		return fmt.Errorf("evolution loop not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(runCtx)

	if a.dashboard != nil {
		group.Go(func() error {
			if err := a.dashboard.Start(gctx); err != nil {
				return fmt.Errorf("dashboard http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer cancel()
		if err := a.loop.Run(gctx); err != nil {
			return fmt.Errorf("evolution loop error: %w", err)
		}
		return nil
	})

	return group.Wait()
}

// Loop exposes the evolution loop (for tests and replay harnesses).
func (a *App) Loop() *evolution.Loop {
	if a == nil {
		return nil
	}
	return a.loop
}

// Close releases stores opened by the builder, newest first.
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warnf("close resource failed: %v", err)
		}
	}
	a.closers = nil
}
