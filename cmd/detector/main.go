package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pair-detector/internal/analysis"
	"github.com/aman-zulfiqar/pair-detector/internal/cache"
	"github.com/aman-zulfiqar/pair-detector/internal/chain"
	"github.com/aman-zulfiqar/pair-detector/internal/config"
	"github.com/aman-zulfiqar/pair-detector/internal/detector"
	"github.com/aman-zulfiqar/pair-detector/internal/metrics"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
	"github.com/aman-zulfiqar/pair-detector/internal/pairs"
	"github.com/aman-zulfiqar/pair-detector/internal/policy"
	"github.com/aman-zulfiqar/pair-detector/internal/server"
	"github.com/aman-zulfiqar/pair-detector/internal/storage"
	"github.com/aman-zulfiqar/pair-detector/internal/wallet"
)

func loadEnv(logger *logrus.Logger) {
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file found, using system environment variables")
		return
	}
	logger.Info("loaded .env")
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry, err := pairs.NewRegistry(pairs.DefaultAssets(cfg.NativeAddress, cfg.StableAAddress, cfg.StableBAddress)...)
	if err != nil {
		logger.WithError(err).Fatal("invalid quote assets")
	}
	for _, a := range registry.Assets() {
		logger.WithFields(logrus.Fields{
			"symbol":  a.Symbol,
			"address": a.Address.Hex(),
			"native":  a.Kind == models.QuoteNative,
		}).Info("quote asset registered")
	}

	signer, err := wallet.New(cfg.SignerPrivateKey)
	if err != nil {
		logger.WithError(err).Fatal("invalid signer key")
	}
	if signer.ReadOnly() {
		logger.Warn("SIGNER_PRIVATE_KEY not set, running with the zero account")
	} else {
		logger.WithField("account", signer.Address().Hex()).Info("signer loaded")
	}

	client, err := analysis.NewClient(analysis.ClientConfig{
		BaseURL:      cfg.AnalysisBaseURL,
		APIKey:       cfg.AnalysisAPIKey,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		RPS:          cfg.AnalysisRPS,
		Metrics:      m,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create analysis client")
	}

	// Redis is optional: without it policy lives in memory and there is no live feed.
	var (
		sinks  []storage.CandidateSink
		feed   storage.CandidateFeed
		store  policy.Store
		checks = map[string]server.Pinger{}
	)
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		defer rc.Close()

		rs, err := policy.NewRedisStore(rc.Client())
		if err != nil {
			logger.WithError(err).Fatal("failed to create policy store")
		}
		store = rs
		feed = rc
		sinks = append(sinks, rc)
		checks["redis"] = feed
		logger.WithField("addr", cfg.RedisAddr).Info("redis feed enabled")
	}

	pol := policy.NewState(store, logger)
	if err := pol.Load(ctx); err != nil {
		logger.WithError(err).Warn("using default policy")
	}

	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		var audit storage.CandidateStore = ch
		defer audit.Close()
		sinks = append(sinks, audit)
		checks["clickhouse"] = audit
		logger.WithField("addr", cfg.ClickHouseAddr).Info("clickhouse audit enabled")
	}

	gwCfg := chain.GatewayConfig{
		Factory:     common.HexToAddress(cfg.FactoryAddress),
		Wallet:      signer,
		CallTimeout: cfg.ChainCallTimeout,
		Logger:      logger,
	}

	d, err := detector.New(detector.Config{
		Registry: registry,
		Analysis: client,
		Policy:   pol,
		Dial: func(ctx context.Context) (chain.Gateway, error) {
			return chain.Dial(ctx, cfg.ChainWSURL, gwCfg)
		},
		ReconnectDelay:    cfg.ReconnectDelay,
		MaxReconnectDelay: cfg.MaxReconnectDelay,
		StepTimeout:       max(client.CallBudget(), cfg.ChainCallTimeout),
		MaxTokens:         cfg.MaxTokens,
		IgnoreTestTokens:  cfg.IgnoreTestTokens,
		Bootstrap:         true,
		Sinks:             sinks,
		Metrics:           m,
		Logger:            logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create detector")
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: &server.Handlers{
			Detector: d,
			Policy:   pol,
			Feed:     feed,
			Checks:   checks,
			DevMode:  cfg.DevMode,
			Logger:   logger,
		},
		Config: server.ServerConfig{
			Addr:     cfg.APIAddr,
			DevMode:  cfg.DevMode,
			APIKey:   cfg.APIKey,
			Gatherer: reg,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		logger.WithField("addr", cfg.APIAddr).Info("api server starting")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("api server failed")
			cancel()
		}
	}()

	go func() {
		select {
		case <-sigCh:
			logger.Info("shutting down")
		case <-ctx.Done():
		}
		cancel()
	}()

	if err := d.Run(ctx); err != nil {
		logger.WithError(err).Error("detector stopped with error")
	}

	_ = srv.Shutdown(context.Background())
	d.Wait()
	logger.WithField("stats", d.Stats()).Info("detector exited")
}
