package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tahirm09/BulkNotify/internal/dispatch"
	"github.com/tahirm09/BulkNotify/internal/gateway"
	"github.com/tahirm09/BulkNotify/internal/recipient"
	"github.com/tahirm09/BulkNotify/internal/store"
	"github.com/tahirm09/BulkNotify/internal/template"
	"github.com/tahirm09/BulkNotify/pkg/config"
	"github.com/tahirm09/BulkNotify/pkg/db"
	"github.com/tahirm09/BulkNotify/pkg/logx"
	"github.com/tahirm09/BulkNotify/pkg/rmq"
	"github.com/tahirm09/BulkNotify/services/dispatch-api/server"
)

func main() {
	logx.Init()
	defer logx.Sync()

	config.MustLoadAPI()
	cfg := config.API

	sqlDB, err := db.Open(cfg.DBDSN)
	if err != nil {
		logx.L().Fatalw("db_open_error", "error", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logx.L().Warnw("db_close_error", "error", err)
		} else {
			logx.L().Infow("db_closed")
		}
	}()

	st := store.New(sqlDB)

	pub, err := rmq.NewPublisher(cfg.RMQURL, cfg.ReportQueue)
	if err != nil {
		logx.L().Fatalw("rmq_init_error", "error", err)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logx.L().Warnw("rmq_publisher_close_error", "error", err)
		} else {
			logx.L().Infow("rmq_publisher_closed")
		}
	}()

	repo := template.NewHTTPRepository(cfg.TemplateRepoURL, cfg.GatewayTimeout)
	cache := template.NewCache(repo)

	orch := &dispatch.Orchestrator{
		Gateway:    gateway.NewClient(cfg.GatewayURL, cfg.GatewayTimeout),
		Resolver:   recipient.Resolver{},
		Source:     cfg.GatewaySource,
		MaxRetries: cfg.MaxRetries,
	}

	h := server.NewHandlers(st, pub, orch, cache, repo)
	srv := server.NewHTTPServer(":"+cfg.Port, h)

	go func() {
		logx.L().Infow("api_listen_start", "addr", ":"+cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.L().Fatalw("http_server_error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logx.L().Infow("signal_received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logx.L().Errorw("server_shutdown_error", "error", err)
	} else {
		logx.L().Infow("server_shutdown_success")
	}

	logx.L().Infow("dispatch-api stopped gracefully")
}
