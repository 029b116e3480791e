package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-interview/backend/internal/catalog"
	"github.com/zhouzirui/visa-interview/backend/internal/config"
	"github.com/zhouzirui/visa-interview/backend/internal/handler"
	"github.com/zhouzirui/visa-interview/backend/internal/infra"
	"github.com/zhouzirui/visa-interview/backend/internal/logging"
	"github.com/zhouzirui/visa-interview/backend/internal/service/advisor"
	"github.com/zhouzirui/visa-interview/backend/internal/service/interview"
	"github.com/zhouzirui/visa-interview/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		logger.Fatal("failed to load question catalog", zap.Error(err))
	}
	report := cat.Report()
	logger.Info("question catalog loaded",
		zap.Int("questions", len(cat.Questions())),
		zap.Int("categories", cat.Universe().Len()),
		zap.Int("paths", report.Paths),
	)
	for _, leaf := range report.Ambiguous {
		logger.Warn("catalog path ends ambiguous",
			zap.String("path", leaf.Path),
			zap.Any("candidates", leaf.Candidates),
		)
	}

	sessions, cleanup, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("failed to open session store", zap.Error(err))
	}
	defer cleanup()

	// Initialize advisor (LLM rationale with template fallback)
	var chatModel model.BaseChatModel
	if cfg.AI.Enabled() && cfg.AI.AdvisorEnabled {
		cm, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn("failed to initialize chat model, using template rationale", zap.Error(err))
		} else {
			chatModel = cm
		}
	} else {
		logger.Info("Ark 凭证未配置或已关闭，推荐理由使用模板生成")
	}

	advisorSvc, err := advisor.NewService(ctx, cat, chatModel, advisor.Config{
		Enabled:   cfg.AI.AdvisorEnabled,
		Streaming: cfg.AI.StreamResponse,
	}, logger.Named("advisor"))
	if err != nil {
		logger.Fatal("failed to initialize advisor", zap.Error(err))
	}

	interviewSvc := interview.NewService(cat, sessions,
		interview.WithLogger(logger.Named("interview")),
		interview.WithSessionTTL(cfg.Store.SessionTTL),
	)

	go runJanitor(ctx, interviewSvc, cfg.Store.SweepInterval, logger)

	router := handler.NewRouter(interviewSvc, advisorSvc, cfg.Auth, logger)

	startServer(ctx, cfg.Server, router, logger)
}

func loadCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(cfg.Path)
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.Driver {
	case config.StoreDriverPostgres:
		db, err := infra.OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		gs := store.NewGormStore(db)
		if err := gs.Migrate(ctx); err != nil {
			infra.ClosePostgres(db, logger)
			return nil, nil, err
		}
		logger.Info("session store ready", zap.String("driver", cfg.Driver))
		return gs, func() { infra.ClosePostgres(db, logger) }, nil
	default:
		logger.Info("session store ready", zap.String("driver", config.StoreDriverMemory))
		return store.NewMemoryStore(), func() {}, nil
	}
}

// runJanitor purges idle sessions until ctx is cancelled.
func runJanitor(ctx context.Context, svc *interview.Service, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.PurgeExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("session purge failed", zap.Error(err))
			}
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("visa interview backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
