package models

import "github.com/ethereum/go-ethereum/common"

type FieldStatus string

const (
	StatusPending FieldStatus = "pending"
	StatusReady   FieldStatus = "ready"
	StatusUnknown FieldStatus = "unknown"
)

const (
	FocusPlaceholderName   = "Loading"
	FocusPlaceholderSymbol = "??"
)

// FocusRecord is the deep-analysis view of the currently selected token.
// Each signal carries its own status so it can be rendered as it lands.
type FocusRecord struct {
	Generation   uint64         `json:"generation"`
	TokenAddress common.Address `json:"token_address"`
	PairAddress  common.Address `json:"pair_address"`
	Name         string         `json:"name"`
	Symbol       string         `json:"symbol"`
	PairSymbol   string         `json:"pair_symbol"`

	LiquidityStatus FieldStatus `json:"liquidity_status"`
	Liquidity       *Liquidity  `json:"liquidity,omitempty"`

	CodeAnalysisStatus FieldStatus   `json:"code_analysis_status"`
	CodeAnalysis       *CodeAnalysis `json:"code_analysis,omitempty"`

	TradeSimulationStatus FieldStatus      `json:"trade_simulation_status"`
	TradeSimulation       *TradeSimulation `json:"trade_simulation,omitempty"`

	HoldersStatus FieldStatus `json:"holders_status"`
	HoldersCount  *int        `json:"holders_count,omitempty"`
}

// NewFocusRecord returns the placeholder record shown while a selection loads.
func NewFocusRecord(gen uint64, token, pair common.Address) *FocusRecord {
	return &FocusRecord{
		Generation:            gen,
		TokenAddress:          token,
		PairAddress:           pair,
		Name:                  FocusPlaceholderName,
		Symbol:                FocusPlaceholderSymbol,
		LiquidityStatus:       StatusPending,
		CodeAnalysisStatus:    StatusPending,
		TradeSimulationStatus: StatusPending,
		HoldersStatus:         StatusPending,
	}
}
