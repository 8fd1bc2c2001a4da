// Package chaintest provides an in-memory chain.Gateway for tests.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/aman-zulfiqar/pair-detector/internal/chain"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

var _ chain.Gateway = (*Gateway)(nil)

type TokenMeta struct {
	Name   string
	Symbol string
}

type balanceKey struct {
	asset, owner common.Address
}

// Gateway is a scriptable fake. The zero value is usable.
type Gateway struct {
	mu        sync.Mutex
	tokens    map[common.Address]TokenMeta
	balances  map[balanceKey]*big.Int
	sink      chan<- models.PairCreatedEvent
	fail      chan error
	subscribe error
	closed    bool
	account   common.Address

	// InfoDelay stalls every TokenInfo call.
	InfoDelay time.Duration

	infoCalls    int
	balanceCalls int
	subscribes   int
}

func New() *Gateway {
	return &Gateway{}
}

func (g *Gateway) SetToken(addr common.Address, name, symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tokens == nil {
		g.tokens = make(map[common.Address]TokenMeta)
	}
	g.tokens[addr] = TokenMeta{Name: name, Symbol: symbol}
}

func (g *Gateway) SetBalance(asset, owner common.Address, v *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balances == nil {
		g.balances = make(map[balanceKey]*big.Int)
	}
	g.balances[balanceKey{asset, owner}] = v
}

func (g *Gateway) SetAccount(a common.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.account = a
}

// FailSubscribe makes the next SubscribePairCreated calls return err.
func (g *Gateway) FailSubscribe(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribe = err
}

func (g *Gateway) SubscribePairCreated(_ context.Context, ch chan<- models.PairCreatedEvent) (event.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.subscribe != nil {
		return nil, g.subscribe
	}
	g.subscribes++
	g.sink = ch
	fail := make(chan error, 1)
	g.fail = fail

	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
			return nil
		case err := <-fail:
			return err
		}
	}), nil
}

// Emit delivers ev to the active subscription. It returns false if there is none.
func (g *Gateway) Emit(ev models.PairCreatedEvent) bool {
	g.mu.Lock()
	sink := g.sink
	g.mu.Unlock()
	if sink == nil {
		return false
	}
	sink <- ev
	return true
}

// Drop kills the active subscription with err, as a provider disconnect would.
func (g *Gateway) Drop(err error) {
	g.mu.Lock()
	fail := g.fail
	g.sink = nil
	g.fail = nil
	g.mu.Unlock()
	if fail != nil {
		fail <- err
	}
}

func (g *Gateway) Subscribed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sink != nil
}

func (g *Gateway) TokenInfo(ctx context.Context, token common.Address) (string, string, error) {
	g.mu.Lock()
	g.infoCalls++
	meta, ok := g.tokens[token]
	delay := g.InfoDelay
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if !ok {
		return "", "", errors.New("execution reverted")
	}
	return meta.Name, meta.Symbol, nil
}

func (g *Gateway) BalanceOf(_ context.Context, asset, owner common.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balanceCalls++
	v, ok := g.balances[balanceKey{asset, owner}]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return new(big.Int).Set(v), nil
}

func (g *Gateway) Account() common.Address {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.account
}

func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.sink = nil
}

func (g *Gateway) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Calls reports how many contract reads were made.
func (g *Gateway) Calls() (info, balance int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.infoCalls, g.balanceCalls
}

func (g *Gateway) Subscribes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subscribes
}
