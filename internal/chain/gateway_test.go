package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

var (
	factory = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	tokenA  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	pair    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type fakeSub struct {
	errCh chan error
	once  sync.Once
	done  chan struct{}
}

func newFakeSub() *fakeSub {
	return &fakeSub{errCh: make(chan error, 1), done: make(chan struct{})}
}

func (s *fakeSub) Err() <-chan error { return s.errCh }
func (s *fakeSub) Unsubscribe()      { s.once.Do(func() { close(s.done) }) }

type fakeEthClient struct {
	mu      sync.Mutex
	logs    chan<- types.Log
	sub     *fakeSub
	query   ethereum.FilterQuery
	calls   []ethereum.CallMsg
	results map[string][]byte
	callErr error
	closed  bool
}

func (f *fakeEthClient) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if f.callErr != nil {
		return nil, f.callErr
	}
	for name, out := range f.results {
		if bytes.Equal(msg.Data[:4], erc20ABI.Methods[name].ID) {
			return out, nil
		}
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeEthClient) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = q
	f.logs = ch
	f.sub = newFakeSub()
	return f.sub, nil
}

func (f *fakeEthClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func pairCreatedLog(t *testing.T, a, b, p common.Address, index int64) types.Log {
	t.Helper()
	data, err := factoryABI.Events["PairCreated"].Inputs.NonIndexed().Pack(p, big.NewInt(index))
	require.NoError(t, err)
	return types.Log{
		Address:     factory,
		Topics:      []common.Hash{PairCreatedTopic, common.BytesToHash(a.Bytes()), common.BytesToHash(b.Bytes())},
		Data:        data,
		BlockNumber: 100,
		Index:       3,
		TxHash:      common.HexToHash("0x01"),
	}
}

func TestPairCreatedTopic(t *testing.T) {
	assert.Equal(t, crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)")), PairCreatedTopic)
}

func TestDecodePairCreated(t *testing.T) {
	ev, err := DecodePairCreated(pairCreatedLog(t, tokenA, tokenB, pair, 42))
	require.NoError(t, err)
	assert.Equal(t, tokenA, ev.TokenA)
	assert.Equal(t, tokenB, ev.TokenB)
	assert.Equal(t, pair, ev.Pair)
	assert.Equal(t, int64(42), ev.Index.Int64())
	assert.Equal(t, uint64(100), ev.BlockNumber)
	assert.Equal(t, uint(3), ev.LogIndex)
}

func TestDecodePairCreated_Rejects(t *testing.T) {
	l := pairCreatedLog(t, tokenA, tokenB, pair, 1)
	l.Topics = l.Topics[:2]
	_, err := DecodePairCreated(l)
	assert.ErrorIs(t, err, ErrBadLog)

	l = pairCreatedLog(t, tokenA, tokenB, pair, 1)
	l.Data = l.Data[:10]
	_, err = DecodePairCreated(l)
	assert.ErrorIs(t, err, ErrBadLog)

	l = pairCreatedLog(t, tokenA, tokenB, pair, 1)
	l.Topics[0] = common.HexToHash("0xdead")
	_, err = DecodePairCreated(l)
	assert.ErrorIs(t, err, ErrBadLog)
}

func TestSubscribePairCreated(t *testing.T) {
	client := &fakeEthClient{}
	g, err := NewGateway(client, GatewayConfig{Factory: factory})
	require.NoError(t, err)

	events := make(chan models.PairCreatedEvent, 4)
	sub, err := g.SubscribePairCreated(context.Background(), events)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, []common.Address{factory}, client.query.Addresses)
	assert.Equal(t, PairCreatedTopic, client.query.Topics[0][0])

	removed := pairCreatedLog(t, tokenA, tokenB, common.HexToAddress("0xdd"), 1)
	removed.Removed = true
	client.logs <- removed
	client.logs <- types.Log{Topics: []common.Hash{PairCreatedTopic}}
	client.logs <- pairCreatedLog(t, tokenA, tokenB, pair, 2)

	select {
	case ev := <-events:
		assert.Equal(t, pair, ev.Pair)
	case <-time.After(2 * time.Second):
		t.Fatal("no event forwarded")
	}
	assert.Empty(t, events)
}

func TestSubscribePairCreated_PropagatesError(t *testing.T) {
	client := &fakeEthClient{}
	g, err := NewGateway(client, GatewayConfig{Factory: factory})
	require.NoError(t, err)

	sub, err := g.SubscribePairCreated(context.Background(), make(chan models.PairCreatedEvent))
	require.NoError(t, err)

	client.sub.errCh <- errors.New("connection reset")
	select {
	case err := <-sub.Err():
		assert.ErrorContains(t, err, "connection reset")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription error not propagated")
	}

	select {
	case <-client.sub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("underlying subscription not released")
	}
}

func TestTokenInfoAndBalance(t *testing.T) {
	nameOut, err := erc20ABI.Methods["name"].Outputs.Pack("Ape Token")
	require.NoError(t, err)
	symOut, err := erc20ABI.Methods["symbol"].Outputs.Pack("APE")
	require.NoError(t, err)
	balOut, err := erc20ABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(1_500_000))
	require.NoError(t, err)

	client := &fakeEthClient{results: map[string][]byte{"name": nameOut, "symbol": symOut, "balanceOf": balOut}}
	g, err := NewGateway(client, GatewayConfig{Factory: factory, CallTimeout: time.Second})
	require.NoError(t, err)

	name, symbol, err := g.TokenInfo(context.Background(), tokenB)
	require.NoError(t, err)
	assert.Equal(t, "Ape Token", name)
	assert.Equal(t, "APE", symbol)

	bal, err := g.BalanceOf(context.Background(), tokenA, pair)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), bal.Int64())

	require.Len(t, client.calls, 3)
	assert.Equal(t, tokenA, *client.calls[2].To)
	args, err := erc20ABI.Methods["balanceOf"].Inputs.Unpack(client.calls[2].Data[4:])
	require.NoError(t, err)
	assert.Equal(t, pair, args[0].(common.Address))
}

func TestTokenInfo_CallError(t *testing.T) {
	client := &fakeEthClient{callErr: errors.New("timeout")}
	g, err := NewGateway(client, GatewayConfig{Factory: factory})
	require.NoError(t, err)

	_, _, err = g.TokenInfo(context.Background(), tokenB)
	assert.ErrorContains(t, err, "call name")
}

func TestNewGateway_Validation(t *testing.T) {
	_, err := NewGateway(nil, GatewayConfig{Factory: factory})
	assert.Error(t, err)
	_, err = NewGateway(&fakeEthClient{}, GatewayConfig{})
	assert.Error(t, err)

	client := &fakeEthClient{}
	g, err := NewGateway(client, GatewayConfig{Factory: factory})
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, g.Account())
	g.Close()
	assert.True(t, client.closed)
}
