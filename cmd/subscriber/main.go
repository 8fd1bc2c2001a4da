// Command subscriber logs every token the detector records, as published on
// the Redis live feed.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pair-detector/internal/cache"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
	"github.com/aman-zulfiqar/pair-detector/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	_ = godotenv.Load()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	feed, err := cache.NewRedisCache(ctx, addr)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer feed.Close()

	latest, err := feed.LatestCandidate(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		logger.Info("no tokens recorded yet")
	case err != nil:
		logger.WithError(err).Warn("failed to read latest token")
	default:
		logCandidate(logger.WithField("source", "recent"), latest)
	}

	logger.WithField("addr", addr).Info("subscriber running, press Ctrl+C to stop")
	err = feed.Subscribe(ctx, func(c *models.TokenCandidate) {
		logCandidate(logger.WithField("source", "live"), c)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("subscription failed")
	}
	logger.Info("subscriber stopped")
}

func logCandidate(log *logrus.Entry, c *models.TokenCandidate) {
	fields := logrus.Fields{
		"pair":     c.PairSymbol(),
		"token":    c.TokenAddress.Hex(),
		"decision": c.Decision,
	}
	if c.Liquidity != nil {
		fields["liquidity"] = c.Liquidity.Amount.String()
	}
	if len(c.FailedGates) > 0 {
		fields["failed"] = c.FailedGates
	}
	log.WithFields(fields).Info("token detected")
}
