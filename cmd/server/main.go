// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/PersonaEvolveMCP/internal/api"
	"github.com/Corphon/PersonaEvolveMCP/internal/app"
	"github.com/Corphon/PersonaEvolveMCP/internal/config"
	"github.com/Corphon/PersonaEvolveMCP/internal/di"
	"github.com/Corphon/PersonaEvolveMCP/internal/utils"
)

func main() {
	log.Println("启动 PersonaEvolveMCP 服务器...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("配置加载完成，端口: %s, 存储后端: %s", cfg.Port, cfg.StorageBackend)

	// 2. 初始化日志
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "server.log")); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	// 3. 初始化所有服务（按依赖顺序）
	if err := app.InitServices(cfg); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	defer app.Cleanup()
	log.Println("所有服务初始化完成")

	// 4. 服务健康检查
	if err := performHealthCheck(); err != nil {
		log.Fatalf("服务健康检查失败: %v", err)
	}

	// 5. 设置路由
	router, err := api.SetupRouter(cfg)
	if err != nil {
		log.Fatalf("设置路由失败: %v", err)
	}
	log.Println("路由设置完成")

	// 6. 启动服务器
	log.Printf("服务器启动在端口 %s", cfg.Port)
	setupGracefulShutdown(router, cfg.Port)
}

// performHealthCheck 检查关键服务是否已注册
func performHealthCheck() error {
	container := di.GetContainer()

	criticalServices := []string{"record_store", "profile", "personality", "responder"}
	for _, serviceName := range criticalServices {
		if !container.Has(serviceName) {
			return fmt.Errorf("关键服务未注册: %s", serviceName)
		}
	}

	log.Println("服务健康检查通过")
	return nil
}

// setupGracefulShutdown 启动服务器并等待中断信号优雅关闭
func setupGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务器强制关闭: %v", err)
	}

	log.Println("服务器已退出")
}
