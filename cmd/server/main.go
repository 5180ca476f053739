package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/joho/godotenv"
	"github.com/user/cinecircle/internal/backend"
	"github.com/user/cinecircle/internal/config"
	"github.com/user/cinecircle/internal/handler"
	"github.com/user/cinecircle/internal/repository"
	"github.com/user/cinecircle/internal/router"
	"github.com/user/cinecircle/internal/service"
	"go.uber.org/zap"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	// 初始化仓库和文件存储
	repos := repository.NewRepositories(db)
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal("初始化上传目录失败", zap.Error(err))
	}
	files := backend.NewDiskFileStore(cfg.UploadDir, cfg.SiteUrl+"/uploads")
	stores := repos.Stores(files)

	// 初始化 Handler
	h := handler.NewHandler(stores, cfg, logger)
	r := router.NewEngine(h, logger)

	// 启动定时清理任务
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	service.NewCleanupService(stores, logger).Start(ctx)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		logger.Info("服务器启动", zap.String("addr", "http://localhost:"+cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("正在关闭服务器...")
	stop()

	// 5 秒超时上下文用于关闭过程
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("服务器强制关闭", zap.Error(err))
	}

	logger.Info("服务器已退出")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
