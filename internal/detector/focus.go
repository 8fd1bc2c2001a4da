package detector

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pair-detector/internal/chain"
	"github.com/aman-zulfiqar/pair-detector/internal/metrics"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
	"github.com/aman-zulfiqar/pair-detector/internal/pairs"
)

// Target identifies a token to analyse in depth.
type Target struct {
	TokenAddress common.Address
	PairAddress  common.Address
	QuoteSymbol  string
	Name         string
	Symbol       string
}

func targetOf(c *models.TokenCandidate) Target {
	return Target{
		TokenAddress: c.TokenAddress,
		PairAddress:  c.PairAddress,
		QuoteSymbol:  c.QuoteAsset,
		Name:         c.Name,
		Symbol:       c.Symbol,
	}
}

// focusAnalyzer owns the single "current focus" record. Each selection bumps
// the generation; writes carrying an older generation are dropped.
type focusAnalyzer struct {
	registry *pairs.Registry
	analysis AnalysisClient
	gateway  func() chain.Gateway
	alive    func() bool
	timeout  time.Duration
	wg       *sync.WaitGroup
	metrics  *metrics.Metrics
	logger   *logrus.Logger

	mu     sync.RWMutex
	gen    uint64
	record *models.FocusRecord
}

func (f *focusAnalyzer) current() *models.FocusRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.record == nil {
		return nil
	}
	r := *f.record
	return &r
}

// selectTarget replaces the focus record and starts filling it in.
func (f *focusAnalyzer) selectTarget(t Target) uint64 {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	rec := models.NewFocusRecord(gen, t.TokenAddress, t.PairAddress)
	if t.Name != "" {
		rec.Name = t.Name
	}
	if t.Symbol != "" {
		rec.Symbol = t.Symbol
	}
	if t.Symbol != "" && t.QuoteSymbol != "" {
		rec.PairSymbol = t.Symbol + "/" + t.QuoteSymbol
	}
	f.record = rec
	f.mu.Unlock()

	f.logger.WithFields(logrus.Fields{
		"token":      t.TokenAddress.Hex(),
		"symbol":     t.Symbol,
		"generation": gen,
	}).Info("focus selected")

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.analyse(gen, t)
	}()
	return gen
}

// analyse fetches liquidity, code analysis, trade simulation and holders in
// order, publishing each as it resolves.
func (f *focusAnalyzer) analyse(gen uint64, t Target) {
	liq, err := f.liquidity(t)
	f.write(gen, "liquidity", err, func(r *models.FocusRecord, st models.FieldStatus) {
		r.LiquidityStatus, r.Liquidity = st, liq
	})
	if !f.isCurrent(gen) {
		return
	}

	ctx, cancel := f.stepContext()
	ca, err := f.analysis.CodeAnalysis(ctx, t.TokenAddress)
	cancel()
	f.write(gen, "code_analysis", err, func(r *models.FocusRecord, st models.FieldStatus) {
		r.CodeAnalysisStatus, r.CodeAnalysis = st, ca
	})
	if !f.isCurrent(gen) {
		return
	}

	ctx, cancel = f.stepContext()
	sim, err := f.analysis.TradeSimulation(ctx, t.TokenAddress)
	cancel()
	f.write(gen, "trade_simulation", err, func(r *models.FocusRecord, st models.FieldStatus) {
		r.TradeSimulationStatus, r.TradeSimulation = st, sim
	})
	if !f.isCurrent(gen) {
		return
	}

	ctx, cancel = f.stepContext()
	holders, err := f.analysis.HolderCount(ctx, t.TokenAddress)
	cancel()
	f.write(gen, "holders", err, func(r *models.FocusRecord, st models.FieldStatus) {
		r.HoldersStatus = st
		if st == models.StatusReady {
			r.HoldersCount = &holders
		}
	})
}

func (f *focusAnalyzer) liquidity(t Target) (*models.Liquidity, error) {
	quote, ok := f.registry.BySymbol(t.QuoteSymbol)
	if !ok {
		return nil, errUnknownQuote
	}
	gw := f.gateway()
	if gw == nil {
		return nil, errNoGateway
	}
	ctx, cancel := f.stepContext()
	defer cancel()
	return readLiquidity(ctx, gw, quote, t.PairAddress)
}

func (f *focusAnalyzer) write(gen uint64, field string, err error, apply func(*models.FocusRecord, models.FieldStatus)) {
	st := models.StatusReady
	if err != nil {
		st = models.StatusUnknown
		f.logger.WithError(err).WithFields(logrus.Fields{
			"field":      field,
			"generation": gen,
		}).Warn("focus field unavailable")
	}

	if !f.alive() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen || f.record == nil {
		return
	}
	apply(f.record, st)
	f.metrics.FocusUpdated(field, string(st))
}

func (f *focusAnalyzer) isCurrent(gen uint64) bool {
	if !f.alive() {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.gen == gen
}

func (f *focusAnalyzer) stepContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), f.timeout)
}
