package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"payment-core/pkg/logger"
)

type Config struct {
	HttpPort string
}

// App 进程生命周期管理
// HTTP 停止接客后再依次执行 shutdown 钩子 (reconciler 排水、cron、worker...)
type App struct {
	httpServer *http.Server
	hooks      []shutdownHook
}

type shutdownHook struct {
	name string
	fn   func(ctx context.Context) error
}

func New(cfg Config, httpHandler *gin.Engine) *App {
	return &App{
		httpServer: &http.Server{
			Addr:    ":" + cfg.HttpPort,
			Handler: httpHandler,
		},
	}
}

// OnShutdown 注册优雅停机钩子，按注册顺序执行
func (a *App) OnShutdown(name string, fn func(ctx context.Context) error) {
	a.hooks = append(a.hooks, shutdownHook{name: name, fn: fn})
}

// Run 启动服务并阻塞，直到收到关闭信号
func (a *App) Run() {
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP Server failure", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 先停 HTTP，不再产生新的充值单
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	for _, h := range a.hooks {
		if err := h.fn(ctx); err != nil {
			logger.Error("shutdown hook failed", zap.String("hook", h.name), zap.Error(err))
		}
	}

	logger.Info("Server exited properly")
}
