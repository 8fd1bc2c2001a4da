package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type QuoteKind string

const (
	QuoteNative QuoteKind = "native"
	QuoteStable QuoteKind = "stable"
)

// QuoteAsset is a well-known asset that new tokens are paired against.
type QuoteAsset struct {
	Symbol   string         `json:"symbol"`
	Kind     QuoteKind      `json:"kind"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
}

// PairCreatedEvent is a decoded factory PairCreated log.
type PairCreatedEvent struct {
	TokenA      common.Address `json:"token_a"`
	TokenB      common.Address `json:"token_b"`
	Pair        common.Address `json:"pair"`
	Index       *big.Int       `json:"index"`
	BlockNumber uint64         `json:"block_number"`
	LogIndex    uint           `json:"log_index"`
	TxHash      common.Hash    `json:"tx_hash"`
}

type Liquidity struct {
	QuoteAsset        string          `json:"quote_asset"`
	Amount            decimal.Decimal `json:"amount"`
	IsNativeQuotePair bool            `json:"is_native_quote_pair"`
}

type RiskFlag string

const (
	FlagMint           RiskFlag = "mint"
	FlagDisableTrading RiskFlag = "disableTrading"
	FlagBlacklist      RiskFlag = "blacklist"
	FlagMaxSell        RiskFlag = "maxSell"
	FlagMaxTX          RiskFlag = "maxTX"
	FlagFee            RiskFlag = "fee"
	FlagRebase         RiskFlag = "rebase"
	FlagReflect        RiskFlag = "reflect"
	FlagReward         RiskFlag = "reward"
)

// CodeAnalysis is the remote code-analysis verdict for a token contract.
// Flags and SocialLinks are only meaningful when Verified is true.
type CodeAnalysis struct {
	Verified    bool              `json:"verified"`
	Flags       []RiskFlag        `json:"flags"`
	SocialLinks map[string]string `json:"social_links"`
}

func (c *CodeAnalysis) HasFlag(f RiskFlag) bool {
	for _, flag := range c.Flags {
		if flag == f {
			return true
		}
	}
	return false
}

// TradeSimulation is the outcome of a simulated buy/sell round trip.
// Nil taxes mean the backend did not report them.
type TradeSimulation struct {
	IsHoneypot bool     `json:"is_honeypot"`
	BuyTax     *float64 `json:"buy_tax,omitempty"`
	SellTax    *float64 `json:"sell_tax,omitempty"`
}

// TokenCandidate is a newly listed token and everything learned about it.
// Nil signal fields mean the signal is unknown.
type TokenCandidate struct {
	ID                uuid.UUID        `json:"id"`
	TokenAddress      common.Address   `json:"token_address"`
	PairAddress       common.Address   `json:"pair_address"`
	Name              string           `json:"name"`
	Symbol            string           `json:"symbol"`
	QuoteAsset        string           `json:"quote_asset"`
	IsNativeQuotePair bool             `json:"is_native_quote_pair"`
	Liquidity         *Liquidity       `json:"liquidity,omitempty"`
	CodeAnalysis      *CodeAnalysis    `json:"code_analysis,omitempty"`
	TradeSimulation   *TradeSimulation `json:"trade_simulation,omitempty"`
	HoldersCount      *int             `json:"holders_count,omitempty"`
	Decision          string           `json:"decision"`
	FailedGates       []string         `json:"failed_gates,omitempty"`
	DetectedAt        time.Time        `json:"detected_at"`
}

// PairSymbol renders the "TOKEN/QUOTE" label shown to operators.
func (c *TokenCandidate) PairSymbol() string {
	return c.Symbol + "/" + c.QuoteAsset
}

// Clone returns a deep copy safe to hand to other goroutines.
func (c *TokenCandidate) Clone() *TokenCandidate {
	if c == nil {
		return nil
	}
	out := *c
	if c.Liquidity != nil {
		l := *c.Liquidity
		out.Liquidity = &l
	}
	if c.CodeAnalysis != nil {
		ca := *c.CodeAnalysis
		ca.Flags = append([]RiskFlag(nil), c.CodeAnalysis.Flags...)
		if c.CodeAnalysis.SocialLinks != nil {
			ca.SocialLinks = make(map[string]string, len(c.CodeAnalysis.SocialLinks))
			for k, v := range c.CodeAnalysis.SocialLinks {
				ca.SocialLinks[k] = v
			}
		}
		out.CodeAnalysis = &ca
	}
	if c.TradeSimulation != nil {
		ts := *c.TradeSimulation
		out.TradeSimulation = &ts
	}
	if c.HoldersCount != nil {
		h := *c.HoldersCount
		out.HoldersCount = &h
	}
	out.FailedGates = append([]string(nil), c.FailedGates...)
	return &out
}

// LaunchRecord is the most recent launch reported by the analysis backend.
type LaunchRecord struct {
	PairAddress  common.Address `json:"pair_address"`
	TokenAddress common.Address `json:"token_address"`
	PairSymbol   string         `json:"pair_symbol"`
	Name         string         `json:"name"`
	Symbol       string         `json:"symbol"`
}
