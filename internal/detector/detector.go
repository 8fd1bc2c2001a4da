package detector

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pair-detector/internal/chain"
	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/filter"
	"github.com/aman-zulfiqar/pair-detector/internal/metrics"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
	"github.com/aman-zulfiqar/pair-detector/internal/pairs"
	"github.com/aman-zulfiqar/pair-detector/internal/storage"
	"github.com/aman-zulfiqar/pair-detector/internal/stream"
)

var (
	ErrNotFound = errors.New("token not in detected list")

	errNoGateway    = errors.New("no active chain gateway")
	errUnknownQuote = errors.New("unknown quote asset")
)

// AnalysisClient is the remote risk-analysis capability.
type AnalysisClient interface {
	CodeAnalysis(ctx context.Context, token common.Address) (*models.CodeAnalysis, error)
	TradeSimulation(ctx context.Context, token common.Address) (*models.TradeSimulation, error)
	HolderCount(ctx context.Context, token common.Address) (int, error)
	LastLaunch(ctx context.Context) (*models.LaunchRecord, error)
}

// PolicyReader yields the current filter policy and lock. Both are read
// fresh at every step.
type PolicyReader interface {
	Snapshot() models.FilterPolicy
	Locked() bool
}

// Stats are cumulative pipeline counters.
type Stats struct {
	Seen       int64 `json:"seen"`
	Ignored    int64 `json:"ignored"`
	Duplicates int64 `json:"duplicates"`
	Recorded   int64 `json:"recorded"`
	Selected   int64 `json:"selected"`
	Discarded  int64 `json:"discarded"`
	Tokens     int   `json:"tokens"`
}

type Config struct {
	Registry *pairs.Registry
	Analysis AnalysisClient
	Policy   PolicyReader
	Dial     stream.DialFunc

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	// StepTimeout bounds each remote step of a pipeline.
	StepTimeout      time.Duration
	MaxTokens        int
	IgnoreTestTokens bool
	// Bootstrap seeds the focus with the backend's last launch on first subscribe.
	Bootstrap bool

	Sinks   []storage.CandidateSink
	Metrics *metrics.Metrics
	Logger  *logrus.Logger
}

// Detector watches for new pairs, vets each new token and keeps the
// newest-first detected list plus the current focus record.
type Detector struct {
	registry    *pairs.Registry
	analysis    AnalysisClient
	policy      PolicyReader
	listener    *stream.PairListener
	sinks       []storage.CandidateSink
	stepTimeout time.Duration
	maxTokens   int
	ignoreTest  bool
	bootstrap   bool
	metrics     *metrics.Metrics
	logger      *logrus.Logger

	alive atomic.Bool
	wg    sync.WaitGroup

	gwMu    sync.RWMutex
	gateway chain.Gateway

	seenMu     sync.Mutex
	seenPairs  map[common.Address]struct{}
	seenTokens map[common.Address]struct{}

	mu     sync.RWMutex
	tokens []*models.TokenCandidate
	byID   map[uuid.UUID]*models.TokenCandidate

	focus    *focusAnalyzer
	bootOnce sync.Once

	seen, ignored, duplicates, recorded, selected, discarded atomic.Int64
}

func New(cfg Config) (*Detector, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("quote registry is required")
	}
	if cfg.Analysis == nil {
		return nil, fmt.Errorf("analysis client is required")
	}
	if cfg.Policy == nil {
		return nil, fmt.Errorf("policy reader is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = constants.DefaultMaxTokens
	}

	d := &Detector{
		registry:    cfg.Registry,
		analysis:    cfg.Analysis,
		policy:      cfg.Policy,
		sinks:       cfg.Sinks,
		stepTimeout: cfg.StepTimeout,
		maxTokens:   cfg.MaxTokens,
		ignoreTest:  cfg.IgnoreTestTokens,
		bootstrap:   cfg.Bootstrap,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		seenPairs:   make(map[common.Address]struct{}),
		seenTokens:  make(map[common.Address]struct{}),
		byID:        make(map[uuid.UUID]*models.TokenCandidate),
	}

	d.focus = &focusAnalyzer{
		registry: cfg.Registry,
		analysis: cfg.Analysis,
		gateway:  d.currentGateway,
		alive:    d.alive.Load,
		timeout:  cfg.StepTimeout,
		wg:       &d.wg,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}

	if cfg.Dial != nil {
		l, err := stream.NewPairListener(stream.PairListenerConfig{
			Dial:              cfg.Dial,
			ReconnectDelay:    cfg.ReconnectDelay,
			MaxReconnectDelay: cfg.MaxReconnectDelay,
			OnStateChange:     d.onState,
			Metrics:           cfg.Metrics,
			Logger:            cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		d.listener = l
	}
	return d, nil
}

// Run keeps the subscription alive until ctx is done. Results of pipelines
// still in flight afterwards are discarded; call Wait to drain them.
func (d *Detector) Run(ctx context.Context) error {
	if d.listener == nil {
		return fmt.Errorf("detector has no dial func")
	}
	d.alive.Store(true)
	defer d.alive.Store(false)

	d.logger.Info("detector started")
	err := d.listener.Start(ctx, d.HandleEvent)
	d.logger.Info("detector stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Wait blocks until every spawned pipeline and focus task has returned.
func (d *Detector) Wait() {
	d.wg.Wait()
}

// State reports the subscription lifecycle state.
func (d *Detector) State() stream.State {
	if d.listener == nil {
		return stream.StateIdle
	}
	return d.listener.State()
}

func (d *Detector) Stats() Stats {
	d.mu.RLock()
	n := len(d.tokens)
	d.mu.RUnlock()
	return Stats{
		Seen:       d.seen.Load(),
		Ignored:    d.ignored.Load(),
		Duplicates: d.duplicates.Load(),
		Recorded:   d.recorded.Load(),
		Selected:   d.selected.Load(),
		Discarded:  d.discarded.Load(),
		Tokens:     n,
	}
}

// Tokens returns the detected list, newest first.
func (d *Detector) Tokens() []*models.TokenCandidate {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*models.TokenCandidate, len(d.tokens))
	for i, c := range d.tokens {
		out[i] = c.Clone()
	}
	return out
}

func (d *Detector) Token(id uuid.UUID) (*models.TokenCandidate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// Focus returns a copy of the current focus record, or nil before any selection.
func (d *Detector) Focus() *models.FocusRecord {
	return d.focus.current()
}

// Select starts deep analysis of a listed token.
func (d *Detector) Select(id uuid.UUID) (*models.FocusRecord, error) {
	c, err := d.Token(id)
	if err != nil {
		return nil, err
	}
	return d.SelectCandidate(c), nil
}

// SelectCandidate starts deep analysis of any candidate, listed or not.
func (d *Detector) SelectCandidate(c *models.TokenCandidate) *models.FocusRecord {
	d.focus.selectTarget(targetOf(c))
	d.selected.Add(1)
	return d.Focus()
}

// HandleEvent spawns the pipeline for one event and returns immediately.
func (d *Detector) HandleEvent(_ context.Context, ev models.PairCreatedEvent) {
	d.seen.Add(1)
	d.metrics.PairSeen()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.process(ev)
	}()
}

func (d *Detector) process(ev models.PairCreatedEvent) {
	log := d.logger.WithFields(logrus.Fields{
		"pair":  ev.Pair.Hex(),
		"block": ev.BlockNumber,
	})

	cls, err := d.registry.Classify(ev)
	if err != nil {
		d.ignore(log.WithError(err), ignoreReason(err))
		return
	}
	log = log.WithFields(logrus.Fields{
		"token": cls.TokenAddress.Hex(),
		"quote": cls.Quote.Symbol,
	})

	if !d.reserve(cls) {
		d.duplicates.Add(1)
		d.metrics.PairIgnored("duplicate")
		log.Debug("duplicate pair ignored")
		return
	}

	gw := d.currentGateway()
	if gw == nil {
		d.release(cls)
		d.ignore(log, "no_gateway")
		return
	}

	ctx, cancel := d.stepContext()
	name, symbol, err := gw.TokenInfo(ctx, cls.TokenAddress)
	cancel()
	if err != nil {
		d.release(cls)
		d.ignore(log.WithError(err), "metadata")
		return
	}
	if d.ignoreTest && isTestToken(name, symbol) {
		d.ignore(log.WithField("name", name), "test_token")
		return
	}

	c := &models.TokenCandidate{
		ID:                uuid.New(),
		TokenAddress:      cls.TokenAddress,
		PairAddress:       cls.PairAddress,
		Name:              name,
		Symbol:            symbol,
		QuoteAsset:        cls.Quote.Symbol,
		IsNativeQuotePair: cls.IsNativeQuotePair,
	}

	ctx, cancel = d.stepContext()
	c.Liquidity, err = readLiquidity(ctx, gw, cls.Quote, cls.PairAddress)
	cancel()
	if err != nil {
		log.WithError(err).Warn("liquidity unknown")
	}
	if !filter.PassesLiquidity(d.policy.Snapshot(), c.Liquidity) {
		d.finalize(log, c)
		return
	}

	ctx, cancel = d.stepContext()
	c.CodeAnalysis, err = d.analysis.CodeAnalysis(ctx, c.TokenAddress)
	cancel()
	if err != nil {
		c.CodeAnalysis = nil
		log.WithError(err).Warn("code analysis unknown")
	}
	if len(filter.CodeGates(d.policy.Snapshot(), c.CodeAnalysis)) > 0 {
		d.finalize(log, c)
		return
	}

	ctx, cancel = d.stepContext()
	c.TradeSimulation, err = d.analysis.TradeSimulation(ctx, c.TokenAddress)
	cancel()
	if err != nil {
		c.TradeSimulation = nil
		log.WithError(err).Warn("trade simulation unknown")
	}

	d.finalize(log, c)
}

// finalize decides, records and optionally selects c.
func (d *Detector) finalize(log *logrus.Entry, c *models.TokenCandidate) {
	res := filter.Decide(d.policy.Snapshot(), d.policy.Locked(), c)
	c.Decision = res.Decision.String()
	c.FailedGates = res.FailedStrings()
	c.DetectedAt = time.Now().UTC()

	if !d.alive.Load() {
		d.discarded.Add(1)
		log.Debug("detector stopped, discarding candidate")
		return
	}

	d.mu.Lock()
	d.tokens = append([]*models.TokenCandidate{c}, d.tokens...)
	d.byID[c.ID] = c
	if len(d.tokens) > d.maxTokens {
		for _, old := range d.tokens[d.maxTokens:] {
			delete(d.byID, old.ID)
		}
		d.tokens = d.tokens[:d.maxTokens]
	}
	d.mu.Unlock()

	d.recorded.Add(1)
	d.metrics.CandidateRecorded(c.Decision)
	log.WithFields(logrus.Fields{
		"symbol":   c.Symbol,
		"decision": c.Decision,
		"failed":   c.FailedGates,
	}).Info("token detected")

	d.notify(log, c.Clone())

	if res.Decision == filter.ListAndSelect {
		d.SelectCandidate(c.Clone())
	}
}

func (d *Detector) notify(log *logrus.Entry, c *models.TokenCandidate) {
	for _, s := range d.sinks {
		ctx, cancel := d.stepContext()
		if err := s.Record(ctx, c); err != nil {
			log.WithError(err).Warn("candidate sink failed")
		}
		cancel()
	}
}

func (d *Detector) ignore(log *logrus.Entry, reason string) {
	d.ignored.Add(1)
	d.metrics.PairIgnored(reason)
	log.WithField("reason", reason).Debug("pair ignored")
}

// reserve claims the pair and token addresses. It fails if either is taken.
func (d *Detector) reserve(cls pairs.Classification) bool {
	d.seenMu.Lock()
	defer d.seenMu.Unlock()
	if _, ok := d.seenPairs[cls.PairAddress]; ok {
		return false
	}
	if _, ok := d.seenTokens[cls.TokenAddress]; ok {
		return false
	}
	d.seenPairs[cls.PairAddress] = struct{}{}
	d.seenTokens[cls.TokenAddress] = struct{}{}
	return true
}

func (d *Detector) release(cls pairs.Classification) {
	d.seenMu.Lock()
	defer d.seenMu.Unlock()
	delete(d.seenPairs, cls.PairAddress)
	delete(d.seenTokens, cls.TokenAddress)
}

func (d *Detector) onState(s stream.State, gw chain.Gateway) {
	d.gwMu.Lock()
	if s == stream.StateSubscribed {
		d.gateway = gw
	} else {
		d.gateway = nil
	}
	d.gwMu.Unlock()

	d.logger.WithField("state", s.String()).Info("subscription state changed")

	if s == stream.StateSubscribed && d.bootstrap {
		d.bootOnce.Do(func() {
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.seedFocus()
			}()
		})
	}
}

// seedFocus points the focus at the backend's most recent launch.
func (d *Detector) seedFocus() {
	ctx, cancel := d.stepContext()
	launch, err := d.analysis.LastLaunch(ctx)
	cancel()
	if err != nil {
		d.logger.WithError(err).Warn("last launch unavailable")
		return
	}
	if !d.alive.Load() {
		return
	}

	d.focus.selectTarget(Target{
		TokenAddress: launch.TokenAddress,
		PairAddress:  launch.PairAddress,
		QuoteSymbol:  launch.PairSymbol,
		Name:         launch.Name,
		Symbol:       launch.Symbol,
	})
}

func (d *Detector) currentGateway() chain.Gateway {
	d.gwMu.RLock()
	defer d.gwMu.RUnlock()
	return d.gateway
}

func (d *Detector) stepContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.stepTimeout)
}

// readLiquidity reads the quote-asset balance held by the pair in whole units.
func readLiquidity(ctx context.Context, gw chain.Gateway, quote models.QuoteAsset, pair common.Address) (*models.Liquidity, error) {
	bal, err := gw.BalanceOf(ctx, quote.Address, pair)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		bal = new(big.Int)
	}
	return &models.Liquidity{
		QuoteAsset:        quote.Symbol,
		Amount:            decimal.NewFromBigInt(bal, -int32(quote.Decimals)),
		IsNativeQuotePair: quote.Kind == models.QuoteNative,
	}, nil
}

func isTestToken(name, symbol string) bool {
	return strings.Contains(strings.ToLower(name), "test") || strings.Contains(strings.ToLower(symbol), "test")
}

func ignoreReason(err error) string {
	switch {
	case errors.Is(err, pairs.ErrAmbiguousPair):
		return "ambiguous"
	case errors.Is(err, pairs.ErrSelfPair):
		return "self_pair"
	default:
		return "no_quote"
	}
}
