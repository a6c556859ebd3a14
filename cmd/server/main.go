package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eternisai/session-titler/internal/app"
	"github.com/eternisai/session-titler/internal/config"
	"github.com/eternisai/session-titler/internal/events"
	"github.com/eternisai/session-titler/internal/handlers"
	"github.com/eternisai/session-titler/internal/logger"
	"github.com/eternisai/session-titler/internal/notifications"
	"github.com/eternisai/session-titler/internal/title_generation"
)

func main() {
	config.LoadConfig()

	log := logger.New(logger.FromConfig(config.AppConfig.LogLevel, config.AppConfig.LogFormat))
	ctx := context.Background()

	log.Info("setting gin mode", slog.String("mode", config.AppConfig.GinMode))
	gin.SetMode(config.AppConfig.GinMode)

	store, storeCloser, err := app.NewStore(ctx, config.AppConfig, log)
	if err != nil {
		log.Error("failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer storeCloser.Close()

	generator, err := app.NewGenerator(config.AppConfig, log)
	if err != nil {
		log.Error("failed to initialize title generator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	nc, err := app.ConnectNATS(config.AppConfig, log)
	if err != nil {
		log.Error("failed to connect to nats", slog.String("error", err.Error()))
		os.Exit(1)
	}

	senders := []notifications.Sender{notifications.NewLogSender(log)}
	if sender := notifications.NewNATSSender(nc, config.AppConfig.NoticeSubject); sender != nil {
		senders = append(senders, sender)
	}
	notificationService := notifications.NewService(log, config.AppConfig.NoticesEnabled, senders...)

	titleService := title_generation.NewService(
		log,
		store,
		notificationService,
		generator,
		title_generation.OptionsFromConfig(config.AppConfig),
	)

	idleSubscriber := events.NewIdleSubscriber(nc, config.AppConfig.IdleSubject, config.AppConfig.IdleQueue, titleService, log)
	if idleSubscriber != nil {
		if err := idleSubscriber.Start(); err != nil {
			log.Error("failed to start idle subscriber", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	handlers.RegisterRoutes(router, handlers.NewHandler(titleService, log))

	srv := &http.Server{
		Addr:    ":" + config.AppConfig.Port,
		Handler: router,
	}

	go func() {
		log.Info("session titler listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(config.AppConfig.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	// Stop intake first, then drain the queued idle events.
	if idleSubscriber != nil {
		if err := idleSubscriber.Stop(); err != nil {
			log.Warn("failed to stop idle subscriber", slog.String("error", err.Error()))
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	titleService.Shutdown()

	if nc != nil {
		if err := nc.Drain(); err != nil {
			log.Warn("failed to drain nats connection", slog.String("error", err.Error()))
		}
	}

	log.Info("server exited")
}
