package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aihub/wpredisearch/app/bootstrap"
	"github.com/aihub/wpredisearch/app/router"
	"github.com/aihub/wpredisearch/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init(bootstrap.Options{Background: true, ContentSync: true})
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}

	port, err := strconv.Atoi(app.Config.Server.Port)
	if err != nil {
		log.Fatalf("invalid server port %q: %v", app.Config.Server.Port, err)
	}
	web.BConfig.Listen.HTTPPort = port
	web.BConfig.AppName = "WP RediSearch"
	web.BConfig.CopyRequestBody = true
	web.BConfig.WebConfig.AutoRender = false
	if app.Config.Server.Env == "production" {
		web.BConfig.RunMode = web.PROD
	}

	if err := app.Container.Invoke(router.Init); err != nil {
		app.Shutdown()
		log.Fatalf("failed to initialize routes: %v", err)
	}

	// beego 的 Run 不返回，收到信号时在这里释放资源
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info("Shutting down", zap.String("signal", sig.String()))
		app.Shutdown()
		os.Exit(0)
	}()

	logger.Info("Starting WP RediSearch service",
		zap.Int("port", port),
		zap.String("index", app.Config.Index.Name))
	web.Run()
}
