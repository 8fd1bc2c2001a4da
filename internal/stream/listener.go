package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pair-detector/internal/chain"
	"github.com/aman-zulfiqar/pair-detector/internal/metrics"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

// State is the subscription lifecycle state.
type State int

const (
	StateIdle State = iota
	StateSubscribed
	StateTeardown
)

func (s State) String() string {
	switch s {
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateTeardown:
		return "TEARDOWN"
	default:
		return "IDLE"
	}
}

var errSubscriptionClosed = errors.New("subscription closed by provider")

// Handler receives each decoded event. It must not block.
type Handler func(ctx context.Context, ev models.PairCreatedEvent)

// DialFunc opens a fresh gateway session.
type DialFunc func(ctx context.Context) (chain.Gateway, error)

// PairListener owns the PairCreated subscription and re-establishes it
// with exponential backoff when the provider drops it.
type PairListener struct {
	dial              DialFunc
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	onState           func(State, chain.Gateway)
	metrics           *metrics.Metrics
	logger            *logrus.Logger

	mu       sync.RWMutex
	running  bool
	state    State
	cancel   context.CancelFunc
	sessions int
}

type PairListenerConfig struct {
	Dial              DialFunc
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	// OnStateChange is called on every transition with the session's gateway,
	// or nil once the session is gone.
	OnStateChange func(State, chain.Gateway)
	Metrics       *metrics.Metrics
	Logger        *logrus.Logger
}

func NewPairListener(cfg PairListenerConfig) (*PairListener, error) {
	if cfg.Dial == nil {
		return nil, fmt.Errorf("dial func is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}

	return &PairListener{
		dial:              cfg.Dial,
		reconnectDelay:    cfg.ReconnectDelay,
		maxReconnectDelay: cfg.MaxReconnectDelay,
		onState:           cfg.OnStateChange,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
	}, nil
}

// Start blocks until ctx is done or Stop is called.
func (l *PairListener) Start(ctx context.Context, handler Handler) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("listener already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	l.running = true
	l.cancel = cancel
	l.mu.Unlock()

	defer func() {
		cancel()
		l.mu.Lock()
		l.running = false
		l.cancel = nil
		l.mu.Unlock()
	}()

	delay := l.reconnectDelay
	for {
		established, err := l.session(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if established {
			delay = l.reconnectDelay
		}

		l.logger.WithError(err).WithField("retry_in", delay).Warn("pair subscription lost")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > l.maxReconnectDelay {
			delay = l.maxReconnectDelay
		}
	}
}

// Stop tears down the active session and makes Start return.
func (l *PairListener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
}

func (l *PairListener) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// session runs one subscription lifetime. established reports whether
// the subscription reached SUBSCRIBED.
func (l *PairListener) session(ctx context.Context, handler Handler) (established bool, err error) {
	gw, err := l.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("dial gateway: %w", err)
	}

	events := make(chan models.PairCreatedEvent, 64)
	sub, err := gw.SubscribePairCreated(ctx, events)
	if err != nil {
		gw.Close()
		return false, err
	}

	l.mu.Lock()
	l.sessions++
	reconnect := l.sessions > 1
	l.mu.Unlock()
	if reconnect {
		l.metrics.Reconnected()
	}

	l.setState(StateSubscribed, gw)
	l.logger.WithField("account", gw.Account().Hex()).Info("subscribed to PairCreated")

	defer func() {
		l.setState(StateTeardown, gw)
		sub.Unsubscribe()
		gw.Close()
		l.setState(StateIdle, nil)
		l.logger.Info("pair subscription torn down")
	}()

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case err, ok := <-sub.Err():
			if !ok || err == nil {
				return true, errSubscriptionClosed
			}
			return true, fmt.Errorf("subscription error: %w", err)
		case ev := <-events:
			handler(ctx, ev)
		}
	}
}

func (l *PairListener) setState(s State, gw chain.Gateway) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()

	l.metrics.SetSubscriptionState(int(s))
	if l.onState != nil {
		l.onState(s, gw)
	}
}
