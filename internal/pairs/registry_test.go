package pairs

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

var (
	newToken = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	other    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	pairAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(DefaultAssets(constants.DefaultNativeAddress, constants.DefaultStableAAddress, constants.DefaultStableBAddress)...)
	require.NoError(t, err)
	return r
}

func TestClassify(t *testing.T) {
	r := testRegistry(t)
	native := common.HexToAddress(constants.DefaultNativeAddress)
	usdt := common.HexToAddress(constants.DefaultStableBAddress)
	busd := common.HexToAddress(constants.DefaultStableAAddress)

	tests := []struct {
		name      string
		a, b      common.Address
		wantErr   error
		wantQuote string
		native    bool
	}{
		{name: "stable on side A", a: usdt, b: newToken, wantQuote: "USDT"},
		{name: "native on side B", a: newToken, b: native, wantQuote: "BNB", native: true},
		{name: "busd", a: busd, b: newToken, wantQuote: "BUSD"},
		{name: "no quote asset", a: newToken, b: other, wantErr: ErrNoQuoteAsset},
		{name: "both quote assets", a: usdt, b: native, wantErr: ErrAmbiguousPair},
		{name: "self pair", a: newToken, b: newToken, wantErr: ErrSelfPair},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := r.Classify(models.PairCreatedEvent{TokenA: tt.a, TokenB: tt.b, Pair: pairAddr})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, newToken, c.TokenAddress)
			assert.Equal(t, pairAddr, c.PairAddress)
			assert.Equal(t, tt.wantQuote, c.Quote.Symbol)
			assert.Equal(t, tt.native, c.IsNativeQuotePair)
		})
	}
}

func TestClassify_AddressCaseInsensitive(t *testing.T) {
	r := testRegistry(t)
	lower := common.HexToAddress("0x55d398326f99059ff775485246999027b3197955")

	c, err := r.Classify(models.PairCreatedEvent{TokenA: lower, TokenB: newToken, Pair: pairAddr})
	require.NoError(t, err)
	assert.Equal(t, "USDT", c.Quote.Symbol)
}

func TestNewRegistry_Rejects(t *testing.T) {
	_, err := NewRegistry()
	assert.Error(t, err)

	_, err = NewRegistry(models.QuoteAsset{Symbol: "X"})
	assert.ErrorContains(t, err, "zero address")

	a := models.QuoteAsset{Symbol: "X", Address: newToken}
	_, err = NewRegistry(a, models.QuoteAsset{Symbol: "Y", Address: newToken})
	assert.ErrorContains(t, err, "duplicate quote asset address")

	_, err = NewRegistry(a, models.QuoteAsset{Symbol: "x", Address: other})
	assert.ErrorContains(t, err, "duplicate quote asset symbol")
}

func TestLookup(t *testing.T) {
	r := testRegistry(t)

	a, ok := r.BySymbol("bnb")
	require.True(t, ok)
	assert.Equal(t, models.QuoteNative, a.Kind)

	got, ok := r.Lookup(a.Address)
	require.True(t, ok)
	assert.Equal(t, "BNB", got.Symbol)

	_, ok = r.Lookup(newToken)
	assert.False(t, ok)
	assert.Len(t, r.Assets(), 3)
}
