package pairs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

var (
	ErrNoQuoteAsset  = errors.New("pair has no recognized quote asset")
	ErrAmbiguousPair = errors.New("both sides of pair are quote assets")
	ErrSelfPair      = errors.New("pair links a token to itself")
)

// Classification is the result of splitting a pair into candidate token and quote asset.
type Classification struct {
	TokenAddress      common.Address
	PairAddress       common.Address
	Quote             models.QuoteAsset
	IsNativeQuotePair bool
}

// Registry is the immutable set of recognized quote assets.
type Registry struct {
	byAddress map[common.Address]models.QuoteAsset
	bySymbol  map[string]models.QuoteAsset
	order     []models.QuoteAsset
}

func NewRegistry(assets ...models.QuoteAsset) (*Registry, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("registry needs at least one quote asset")
	}

	r := &Registry{
		byAddress: make(map[common.Address]models.QuoteAsset, len(assets)),
		bySymbol:  make(map[string]models.QuoteAsset, len(assets)),
	}
	for _, a := range assets {
		if a.Address == (common.Address{}) {
			return nil, fmt.Errorf("quote asset %s has zero address", a.Symbol)
		}
		if _, dup := r.byAddress[a.Address]; dup {
			return nil, fmt.Errorf("duplicate quote asset address %s", a.Address.Hex())
		}
		sym := strings.ToUpper(a.Symbol)
		if _, dup := r.bySymbol[sym]; dup {
			return nil, fmt.Errorf("duplicate quote asset symbol %s", a.Symbol)
		}
		r.byAddress[a.Address] = a
		r.bySymbol[sym] = a
		r.order = append(r.order, a)
	}
	return r, nil
}

// DefaultAssets builds the native/stable registry entries from hex addresses.
func DefaultAssets(native, stableA, stableB string) []models.QuoteAsset {
	return []models.QuoteAsset{
		{Symbol: constants.SymbolNative, Kind: models.QuoteNative, Address: common.HexToAddress(native), Decimals: constants.QuoteDecimals},
		{Symbol: constants.SymbolStableA, Kind: models.QuoteStable, Address: common.HexToAddress(stableA), Decimals: constants.QuoteDecimals},
		{Symbol: constants.SymbolStableB, Kind: models.QuoteStable, Address: common.HexToAddress(stableB), Decimals: constants.QuoteDecimals},
	}
}

func (r *Registry) Lookup(addr common.Address) (models.QuoteAsset, bool) {
	a, ok := r.byAddress[addr]
	return a, ok
}

func (r *Registry) BySymbol(sym string) (models.QuoteAsset, bool) {
	a, ok := r.bySymbol[strings.ToUpper(sym)]
	return a, ok
}

// Assets returns the registered assets in registration order.
func (r *Registry) Assets() []models.QuoteAsset {
	return append([]models.QuoteAsset(nil), r.order...)
}

// Classify picks the candidate token out of a pair. It makes no remote calls.
func (r *Registry) Classify(ev models.PairCreatedEvent) (Classification, error) {
	if ev.TokenA == ev.TokenB {
		return Classification{}, ErrSelfPair
	}

	qa, aIsQuote := r.byAddress[ev.TokenA]
	qb, bIsQuote := r.byAddress[ev.TokenB]

	var (
		token common.Address
		quote models.QuoteAsset
	)
	switch {
	case aIsQuote && bIsQuote:
		return Classification{}, ErrAmbiguousPair
	case aIsQuote:
		token, quote = ev.TokenB, qa
	case bIsQuote:
		token, quote = ev.TokenA, qb
	default:
		return Classification{}, ErrNoQuoteAsset
	}

	return Classification{
		TokenAddress:      token,
		PairAddress:       ev.Pair,
		Quote:             quote,
		IsNativeQuotePair: quote.Kind == models.QuoteNative,
	}, nil
}
