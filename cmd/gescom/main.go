package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gescom-erp/gescom/internal/app"
	"github.com/gescom-erp/gescom/internal/authz"
	"github.com/gescom-erp/gescom/internal/billing/conversion"
	"github.com/gescom-erp/gescom/internal/billing/invoices"
	"github.com/gescom-erp/gescom/internal/billing/quotes"
	"github.com/gescom-erp/gescom/internal/documents"
	"github.com/gescom-erp/gescom/internal/platform/cache"
	"github.com/gescom-erp/gescom/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// Permission resolution is an external collaborator; until it is wired
	// the API trusts the gateway in front of it.
	authzMiddleware := authz.Middleware{Source: authz.AllowAll{}, Logger: logger}

	quoteRepo := quotes.NewRepository(pool)
	quoteService := quotes.NewService(quoteRepo)
	quoteHandler := quotes.NewHandler(logger, quoteService, authzMiddleware)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo, cfg.TVAPercent)
	invoiceHandler := invoices.NewHandler(logger, invoiceService, authzMiddleware)

	conversionRepo := conversion.NewRepository(pool)
	conversionService := conversion.NewService(conversionRepo, cfg.TVAPercent)
	conversionHandler := conversion.NewHandler(logger, conversionService, authzMiddleware)

	gotenberg := documents.NewGotenbergClient(cfg.GotenbergURL)
	renderCache := documents.NewRenderCache(redisClient)
	documentHandler := documents.NewHandler(logger, quoteService, invoiceService, gotenberg, renderCache, authzMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		QuoteHandler:      quoteHandler,
		InvoiceHandler:    invoiceHandler,
		ConversionHandler: conversionHandler,
		DocumentHandler:   documentHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
