package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/corvid-im/pushgw/internal/config"
	"github.com/corvid-im/pushgw/internal/dispatch"
	"github.com/corvid-im/pushgw/internal/handler"
	"github.com/corvid-im/pushgw/internal/jitter"
	"github.com/corvid-im/pushgw/internal/observability"
	"github.com/corvid-im/pushgw/internal/provider"
	"github.com/corvid-im/pushgw/internal/push"
	"github.com/corvid-im/pushgw/internal/transport"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	fcm, err := provider.NewFCMClient(cfg.FCMAPIURL, cfg.FCMAdminKey)
	if err != nil {
		logger.Fatal("fcm client initialization failed", zap.Error(err))
	}

	var apns provider.APNSSender
	if cfg.APNSAuthToken != "" {
		apnsClient, err := provider.NewAPNSClient(cfg.APNSAPIURL, cfg.APNSAuthToken, cfg.APNSTopic)
		if err != nil {
			logger.Fatal("apns client initialization failed", zap.Error(err))
		}
		apns = apnsClient
	} else {
		logger.Warn("APNS_AUTH_TOKEN not set, apns delivery disabled")
	}

	builder, err := push.NewBuilder(cfg)
	if err != nil {
		logger.Fatal("payload builder initialization failed", zap.Error(err))
	}

	estimator := jitter.NewEstimator(cfg.MaxJitter())

	engine, err := dispatch.NewEngine(cfg, builder, fcm, apns, estimator, metrics, logger)
	if err != nil {
		logger.Fatal("dispatch engine initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:               "pushgw",
		BodyLimit:             cfg.BodyLimitBytes,
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})

	app.Use(metrics.HTTPMiddleware())

	if err := handler.RegisterNotifyRoutes(app, engine); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}
	handler.RegisterHealthRoutes(app, version)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		logger.Info("shutting down", zap.String("signal", sig.String()))
		if err := app.Shutdown(); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("pushgw started",
		zap.Int("port", cfg.APIPort),
		zap.String("app_id", cfg.AppID),
		zap.String("version", version),
	)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
