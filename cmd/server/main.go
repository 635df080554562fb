package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ogurasousui/codex-employee-directory/internal/adapters/grpc/handler"
	"github.com/ogurasousui/codex-employee-directory/internal/adapters/repository/rest"
	"github.com/ogurasousui/codex-employee-directory/internal/core/employee"
	"github.com/ogurasousui/codex-employee-directory/internal/platform/cache"
	"github.com/ogurasousui/codex-employee-directory/internal/platform/config"
	"github.com/ogurasousui/codex-employee-directory/internal/platform/gateway"
	"github.com/ogurasousui/codex-employee-directory/internal/platform/logging"
	"github.com/ogurasousui/codex-employee-directory/internal/platform/server"
	"github.com/ogurasousui/codex-employee-directory/internal/platform/telemetry"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Fatal("failed to set up telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	gw, err := gateway.New(cfg.API.BaseURL,
		gateway.WithTimeout(cfg.API.Timeout),
		gateway.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("failed to initialize gateway", zap.Error(err))
	}

	responseCache := cache.New[json.RawMessage](cfg.Cache.TTL, nil)
	employeeRepo := rest.NewEmployeeRepository(gw, responseCache)
	store := employee.NewStore(employeeRepo, nil, logger,
		employee.WithFetchLimit(cfg.Store.FetchLimit),
		employee.WithPageSize(cfg.Store.PageSize),
		employee.WithFreshness(cfg.Store.Freshness),
		employee.WithBulkConcurrency(cfg.Store.BulkConcurrency),
	)

	grpcServer := server.New(cfg.Server.ListenAddr, handler.NewDirectoryGrpcHandler(store), logger)

	logger.Info("starting employee directory",
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.String("api_base_url", cfg.API.BaseURL),
	)

	if err := grpcServer.Run(ctx); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}
