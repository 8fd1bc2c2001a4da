package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
	"github.com/aman-zulfiqar/pair-detector/internal/wallet"
)

var (
	factoryABI = mustParseABI(constants.FactoryABI)
	erc20ABI   = mustParseABI(constants.ERC20ABI)

	// PairCreatedTopic is keccak256("PairCreated(address,address,address,uint256)").
	PairCreatedTopic = factoryABI.Events["PairCreated"].ID
)

var ErrBadLog = errors.New("log is not a PairCreated event")

func mustParseABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return a
}

// EthClient is the subset of ethclient.Client the gateway uses.
type EthClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	Close()
}

// Gateway is the chain capability consumed by the detector.
type Gateway interface {
	SubscribePairCreated(ctx context.Context, ch chan<- models.PairCreatedEvent) (event.Subscription, error)
	TokenInfo(ctx context.Context, token common.Address) (name, symbol string, err error)
	BalanceOf(ctx context.Context, asset, owner common.Address) (*big.Int, error)
	Account() common.Address
	Close()
}

type GatewayConfig struct {
	Factory     common.Address
	Wallet      *wallet.Wallet
	CallTimeout time.Duration
	Logger      *logrus.Logger
}

// EthGateway implements Gateway over a go-ethereum client.
type EthGateway struct {
	client      EthClient
	factory     common.Address
	account     common.Address
	callTimeout time.Duration
	logger      *logrus.Logger
}

func NewGateway(client EthClient, cfg GatewayConfig) (*EthGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("eth client is nil")
	}
	if cfg.Factory == (common.Address{}) {
		return nil, fmt.Errorf("factory address is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = constants.DefaultChainCallTimeout
	}

	g := &EthGateway{
		client:      client,
		factory:     cfg.Factory,
		callTimeout: cfg.CallTimeout,
		logger:      cfg.Logger,
	}
	if cfg.Wallet != nil {
		g.account = cfg.Wallet.Address()
	}
	return g, nil
}

// Dial opens a websocket session to the node and binds the session account.
func Dial(ctx context.Context, url string, cfg GatewayConfig) (*EthGateway, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	g, err := NewGateway(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return g, nil
}

func (g *EthGateway) Account() common.Address {
	return g.account
}

func (g *EthGateway) Close() {
	g.client.Close()
}

// SubscribePairCreated streams decoded PairCreated events from the factory into ch.
// Removed (reorged) and undecodable logs are skipped.
func (g *EthGateway) SubscribePairCreated(ctx context.Context, ch chan<- models.PairCreatedEvent) (event.Subscription, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{g.factory},
		Topics:    [][]common.Hash{{PairCreatedTopic}},
	}

	logs := make(chan types.Log, 64)
	sub, err := g.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, fmt.Errorf("subscribe PairCreated: %w", err)
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case <-quit:
				return nil
			case err := <-sub.Err():
				return err
			case vLog := <-logs:
				if vLog.Removed {
					g.logger.WithField("tx", vLog.TxHash.Hex()).Debug("skipping removed PairCreated log")
					continue
				}
				ev, err := DecodePairCreated(vLog)
				if err != nil {
					g.logger.WithError(err).WithField("tx", vLog.TxHash.Hex()).Warn("undecodable PairCreated log")
					continue
				}
				select {
				case ch <- ev:
				case <-quit:
					return nil
				}
			}
		}
	}), nil
}

// DecodePairCreated reads token0/token1 from the indexed topics and the pair
// address and pair index from the data section.
func DecodePairCreated(vLog types.Log) (models.PairCreatedEvent, error) {
	if len(vLog.Topics) != 3 || vLog.Topics[0] != PairCreatedTopic {
		return models.PairCreatedEvent{}, ErrBadLog
	}

	out, err := factoryABI.Unpack("PairCreated", vLog.Data)
	if err != nil {
		return models.PairCreatedEvent{}, fmt.Errorf("%w: %v", ErrBadLog, err)
	}
	if len(out) != 2 {
		return models.PairCreatedEvent{}, ErrBadLog
	}
	pair, ok := out[0].(common.Address)
	if !ok {
		return models.PairCreatedEvent{}, ErrBadLog
	}
	index, _ := out[1].(*big.Int)

	return models.PairCreatedEvent{
		TokenA:      common.BytesToAddress(vLog.Topics[1].Bytes()),
		TokenB:      common.BytesToAddress(vLog.Topics[2].Bytes()),
		Pair:        pair,
		Index:       index,
		BlockNumber: vLog.BlockNumber,
		LogIndex:    vLog.Index,
		TxHash:      vLog.TxHash,
	}, nil
}

// TokenInfo reads name() and symbol() from an ERC-20 contract.
func (g *EthGateway) TokenInfo(ctx context.Context, token common.Address) (string, string, error) {
	name, err := g.callString(ctx, token, "name")
	if err != nil {
		return "", "", err
	}
	symbol, err := g.callString(ctx, token, "symbol")
	if err != nil {
		return "", "", err
	}
	return name, symbol, nil
}

// BalanceOf reads asset.balanceOf(owner) in the asset's raw units.
func (g *EthGateway) BalanceOf(ctx context.Context, asset, owner common.Address) (*big.Int, error) {
	out, err := g.call(ctx, asset, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf %s: unexpected result type %T", asset.Hex(), out[0])
	}
	return bal, nil
}

func (g *EthGateway) callString(ctx context.Context, addr common.Address, method string) (string, error) {
	out, err := g.call(ctx, addr, method)
	if err != nil {
		return "", err
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%s %s: unexpected result type %T", method, addr.Hex(), out[0])
	}
	return s, nil
}

func (g *EthGateway) call(ctx context.Context, addr common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	msg := ethereum.CallMsg{To: &addr, Data: data}
	if g.account != (common.Address{}) {
		msg.From = g.account
	}
	res, err := g.client.CallContract(callCtx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, addr.Hex(), err)
	}

	out, err := erc20ABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s from %s: %w", method, addr.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s on %s returned nothing", method, addr.Hex())
	}
	return out, nil
}
