package constants

import "time"

// Redis keys
const (
	RedisKeyRecentTokens  = "tokens:recent"
	RedisKeyPolicyFilters = "policy:filters"
	RedisKeyPolicyLocked  = "policy:locked"
)

// Redis Pub/Sub channels
const (
	PubSubChannelTokens = "tokens:detected"
)

// Limits
const (
	MaxRecentTokens  = 100
	DefaultMaxTokens = 500
)

// MinLiquidityUnits is the liquidity gate threshold, in whole quote-asset units.
// Only amounts strictly below it are rejected.
const MinLiquidityUnits = 1

// Timeouts
const (
	DefaultChainCallTimeout = 10 * time.Second
	DefaultAnalysisTimeout  = 10 * time.Second
)

// Quote asset symbols
const (
	SymbolNative  = "BNB"
	SymbolStableA = "BUSD"
	SymbolStableB = "USDT"
)

// Default BSC mainnet addresses (public contracts, not secrets)
const (
	DefaultFactoryAddress = "0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73" // PancakeSwap v2 factory
	DefaultNativeAddress  = "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c" // WBNB
	DefaultStableAAddress = "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56" // BUSD
	DefaultStableBAddress = "0x55d398326f99059fF775485246999027B3197955" // USDT
)

// QuoteDecimals is the decimal count of every default quote asset.
const QuoteDecimals = 18

// Minimal ABI fragments
const (
	FactoryABI = `[
		{"anonymous":false,"inputs":[
			{"indexed":true,"name":"token0","type":"address"},
			{"indexed":true,"name":"token1","type":"address"},
			{"indexed":false,"name":"pair","type":"address"},
			{"indexed":false,"name":"index","type":"uint256"}],
		 "name":"PairCreated","type":"event"}
	]`

	ERC20ABI = `[
		{"inputs":[],"name":"name","outputs":[{"type":"string"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"symbol","outputs":[{"type":"string"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"}
	]`
)

// Analysis backend paths
const (
	PathAnalyseCode   = "analysecode"
	PathSimulateBuy   = "simulatebuy"
	PathHoldersNumber = "holdersnumber"
	PathLastLaunch    = "lastlaunch"
)

// SocialTelegram is the social-link channel the social gate looks for.
const SocialTelegram = "telegram"
