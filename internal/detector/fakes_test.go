package detector

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/pair-detector/internal/chain/chaintest"
	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
	"github.com/aman-zulfiqar/pair-detector/internal/pairs"
	"github.com/aman-zulfiqar/pair-detector/internal/policy"
	"github.com/aman-zulfiqar/pair-detector/internal/storage"
	"github.com/aman-zulfiqar/pair-detector/internal/stream"
)

var (
	usdt    = common.HexToAddress(constants.DefaultStableBAddress)
	wbnb    = common.HexToAddress(constants.DefaultNativeAddress)
	newTok  = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	newTok2 = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	pair1   = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	pair2   = common.HexToAddress("0x0000000000000000000000000000000000000c02")
)

type fakeAnalysis struct {
	mu         sync.Mutex
	code       *models.CodeAnalysis
	codeErr    error
	sim        *models.TradeSimulation
	simErr     error
	holders    int
	holdersErr error
	launch     *models.LaunchRecord
	delay      map[common.Address]time.Duration
	calls      map[string]int
}

func newFakeAnalysis() *fakeAnalysis {
	return &fakeAnalysis{
		code:    &models.CodeAnalysis{Verified: false},
		sim:     &models.TradeSimulation{IsHoneypot: false},
		holders: 12,
		calls:   make(map[string]int),
	}
}

func (f *fakeAnalysis) track(name string, token common.Address) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.delay[token]
}

func (f *fakeAnalysis) CodeAnalysis(_ context.Context, token common.Address) (*models.CodeAnalysis, error) {
	time.Sleep(f.track("code", token))
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codeErr != nil {
		return nil, f.codeErr
	}
	return f.code, nil
}

func (f *fakeAnalysis) TradeSimulation(_ context.Context, token common.Address) (*models.TradeSimulation, error) {
	time.Sleep(f.track("sim", token))
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.simErr != nil {
		return nil, f.simErr
	}
	return f.sim, nil
}

func (f *fakeAnalysis) HolderCount(_ context.Context, token common.Address) (int, error) {
	time.Sleep(f.track("holders", token))
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holders, f.holdersErr
}

func (f *fakeAnalysis) LastLaunch(context.Context) (*models.LaunchRecord, error) {
	f.track("launch", common.Address{})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.launch == nil {
		return nil, errors.New("no launches")
	}
	return f.launch, nil
}

func (f *fakeAnalysis) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAnalysis) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.calls {
		n += v
	}
	return n
}

type recordingSink struct {
	mu    sync.Mutex
	got   []*models.TokenCandidate
	fails bool
}

func (s *recordingSink) Record(_ context.Context, c *models.TokenCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, c)
	if s.fails {
		return errors.New("sink down")
	}
	return nil
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

// units converts whole quote units to 18-decimal raw units.
func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type harness struct {
	d        *Detector
	gw       *chaintest.Gateway
	analysis *fakeAnalysis
	policy   *policy.State
	sink     *recordingSink
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()

	reg, err := pairs.NewRegistry(pairs.DefaultAssets(constants.DefaultNativeAddress, constants.DefaultStableAAddress, constants.DefaultStableBAddress)...)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	h := &harness{
		gw:       chaintest.New(),
		analysis: newFakeAnalysis(),
		policy:   policy.NewState(nil, logger),
		sink:     &recordingSink{},
	}
	h.gw.SetToken(newTok, "Ape Coin", "APE")
	h.gw.SetToken(newTok2, "Banana", "BAN")
	h.gw.SetBalance(usdt, pair1, units(5))
	h.gw.SetBalance(wbnb, pair2, units(3))

	cfg := Config{
		Registry:         reg,
		Analysis:         h.analysis,
		Policy:           h.policy,
		StepTimeout:      2 * time.Second,
		IgnoreTestTokens: true,
		Sinks:            []storage.CandidateSink{h.sink},
		Logger:           logger,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	h.d, err = New(cfg)
	require.NoError(t, err)
	return h
}

// attach makes the detector live with the fake gateway without running a listener.
func (h *harness) attach() {
	h.d.alive.Store(true)
	h.d.onState(stream.StateSubscribed, h.gw)
}

func (h *harness) emit(a, b, p common.Address) {
	h.d.HandleEvent(context.Background(), models.PairCreatedEvent{TokenA: a, TokenB: b, Pair: p})
}

// settle waits for every pipeline and focus task to finish.
func (h *harness) settle() {
	h.d.Wait()
}

func (h *harness) setToggle(t *testing.T, tg policy.Toggle, v bool) {
	t.Helper()
	_, err := h.policy.Set(context.Background(), tg, v)
	require.NoError(t, err)
}

// chaintestGateway returns a fake gateway seeded like the harness one.
func chaintestGateway(t *testing.T) *chaintest.Gateway {
	t.Helper()
	gw := chaintest.New()
	gw.SetToken(newTok, "Ape Coin", "APE")
	gw.SetToken(newTok2, "Banana", "BAN")
	gw.SetBalance(usdt, pair1, units(5))
	gw.SetBalance(wbnb, pair2, units(3))
	return gw
}
