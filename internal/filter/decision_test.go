package filter

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

func strictPolicy() models.FilterPolicy {
	return models.FilterPolicy{}
}

func safeCandidate() *models.TokenCandidate {
	return &models.TokenCandidate{
		Liquidity: &models.Liquidity{QuoteAsset: "BNB", Amount: decimal.NewFromInt(5), IsNativeQuotePair: true},
		CodeAnalysis: &models.CodeAnalysis{
			Verified:    true,
			SocialLinks: map[string]string{"telegram": "https://t.me/safe"},
		},
		TradeSimulation: &models.TradeSimulation{IsHoneypot: false},
	}
}

func TestDecide_Lock(t *testing.T) {
	c := safeCandidate()

	assert.Equal(t, ListAndSelect, Decide(strictPolicy(), false, c).Decision)
	assert.Equal(t, ListOnly, Decide(strictPolicy(), true, c).Decision)
	assert.Equal(t, ListAndSelect, Decide(models.DefaultFilterPolicy(), false, c).Decision)
}

func TestPassesLiquidity_Threshold(t *testing.T) {
	p := strictPolicy()

	tests := []struct {
		amount string
		want   bool
	}{
		{"1", true},
		{"1.0", true},
		{"0.999999999999999999", false},
		{"0", false},
		{"1000", true},
	}
	for _, tt := range tests {
		l := &models.Liquidity{Amount: decimal.RequireFromString(tt.amount)}
		assert.Equal(t, tt.want, PassesLiquidity(p, l), tt.amount)
	}

	assert.False(t, PassesLiquidity(p, nil))
	p.AllowLowLiquidity = true
	assert.True(t, PassesLiquidity(p, nil))
	assert.True(t, PassesLiquidity(p, &models.Liquidity{Amount: decimal.Zero}))
}

func TestCodeGates_UnverifiedFlagsAreUnknown(t *testing.T) {
	unverified := &models.CodeAnalysis{Verified: false}
	p := models.DefaultFilterPolicy()

	assert.Empty(t, CodeGates(p, unverified))

	p.AllowUnverifiedContracts = false
	assert.Equal(t, []Gate{GateVerification}, CodeGates(p, unverified))

	// unverified and unfetched are the same unknown to a strict gate
	p = models.DefaultFilterPolicy()
	p.AllowDangerousFeatures = false
	assert.Equal(t, []Gate{GateDangerousFeatures}, CodeGates(p, unverified))
	assert.Equal(t, CodeGates(p, nil), CodeGates(p, unverified))

	clean := &models.CodeAnalysis{Verified: true, Flags: []models.RiskFlag{}}
	assert.Empty(t, CodeGates(p, clean))
}

func TestCodeGates_UnknownAnalysis(t *testing.T) {
	assert.Empty(t, CodeGates(models.DefaultFilterPolicy(), nil))
	assert.ElementsMatch(t,
		[]Gate{GateVerification, GateSocial, GateDangerousFeatures},
		CodeGates(strictPolicy(), nil))
}

func TestCodeGates_DangerousFlags(t *testing.T) {
	p := models.DefaultFilterPolicy()
	p.AllowDangerousFeatures = false

	for _, f := range []models.RiskFlag{
		models.FlagReflect, models.FlagMint, models.FlagDisableTrading, models.FlagBlacklist,
		models.FlagMaxSell, models.FlagMaxTX, models.FlagFee,
	} {
		ca := &models.CodeAnalysis{Verified: true, Flags: []models.RiskFlag{f}}
		assert.Equal(t, []Gate{GateDangerousFeatures}, CodeGates(p, ca), string(f))
	}

	for _, f := range []models.RiskFlag{models.FlagRebase, models.FlagReward} {
		ca := &models.CodeAnalysis{Verified: true, Flags: []models.RiskFlag{f}}
		assert.Empty(t, CodeGates(p, ca), string(f))
	}
}

func TestCodeGates_Social(t *testing.T) {
	p := models.DefaultFilterPolicy()
	p.AllowNoSocialChannel = false

	ca := &models.CodeAnalysis{Verified: true, SocialLinks: map[string]string{"twitter": "https://x.com/a"}}
	assert.Equal(t, []Gate{GateSocial}, CodeGates(p, ca))

	ca.SocialLinks["telegram"] = "https://t.me/a"
	assert.Empty(t, CodeGates(p, ca))
}

func TestPassesSimulation(t *testing.T) {
	p := strictPolicy()
	assert.False(t, PassesSimulation(p, nil))
	assert.False(t, PassesSimulation(p, &models.TradeSimulation{IsHoneypot: true}))
	assert.True(t, PassesSimulation(p, &models.TradeSimulation{IsHoneypot: false}))

	p.AllowFailedTx = true
	assert.True(t, PassesSimulation(p, nil))
	assert.True(t, PassesSimulation(p, &models.TradeSimulation{IsHoneypot: true}))
}

// Each candidate fails one risk under the strict policy; enabling the toggles
// covering that risk must lift it out of REJECT and never the reverse.
func TestDecide_Monotonicity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.TokenCandidate)
		allow  func(*models.FilterPolicy)
		gates  []Gate
	}{
		{
			name:   "low liquidity",
			mutate: func(c *models.TokenCandidate) { c.Liquidity.Amount = decimal.RequireFromString("0.5") },
			allow:  func(p *models.FilterPolicy) { p.AllowLowLiquidity = true },
			gates:  []Gate{GateLiquidity},
		},
		{
			name:   "unverified",
			mutate: func(c *models.TokenCandidate) { c.CodeAnalysis.Verified = false },
			allow: func(p *models.FilterPolicy) {
				p.AllowUnverifiedContracts = true
				p.AllowDangerousFeatures = true
			},
			// unverified flags are unknown, so the dangerous-feature gate fails too
			gates: []Gate{GateVerification, GateDangerousFeatures},
		},
		{
			name:   "no telegram",
			mutate: func(c *models.TokenCandidate) { c.CodeAnalysis.SocialLinks = nil },
			allow:  func(p *models.FilterPolicy) { p.AllowNoSocialChannel = true },
			gates:  []Gate{GateSocial},
		},
		{
			name:   "mint scam",
			mutate: func(c *models.TokenCandidate) { c.CodeAnalysis.Flags = []models.RiskFlag{models.FlagMint} },
			allow:  func(p *models.FilterPolicy) { p.AllowDangerousFeatures = true },
			gates:  []Gate{GateDangerousFeatures},
		},
		{
			name:   "honeypot",
			mutate: func(c *models.TokenCandidate) { c.TradeSimulation.IsHoneypot = true },
			allow:  func(p *models.FilterPolicy) { p.AllowFailedTx = true },
			gates:  []Gate{GateFailedTx},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, locked := range []bool{false, true} {
				c := safeCandidate()
				tt.mutate(c)

				p := strictPolicy()
				before := Decide(p, locked, c)
				assert.Equal(t, Reject, before.Decision)
				assert.Equal(t, tt.gates, before.Failed)

				tt.allow(&p)
				after := Decide(p, locked, c)
				assert.NotEqual(t, Reject, after.Decision)
				assert.Empty(t, after.Failed)
				if locked {
					assert.Equal(t, ListOnly, after.Decision)
				} else {
					assert.Equal(t, ListAndSelect, after.Decision)
				}
			}
		})
	}
}

func TestDecide_ScenarioAB(t *testing.T) {
	c := &models.TokenCandidate{
		Liquidity:       &models.Liquidity{Amount: decimal.NewFromInt(2)},
		CodeAnalysis:    &models.CodeAnalysis{Verified: false},
		TradeSimulation: &models.TradeSimulation{IsHoneypot: false},
	}

	assert.Equal(t, ListAndSelect, Decide(models.DefaultFilterPolicy(), false, c).Decision)

	p := models.DefaultFilterPolicy()
	p.AllowUnverifiedContracts = false
	r := Decide(p, false, c)
	assert.Equal(t, Reject, r.Decision)
	assert.Equal(t, []string{"verification"}, r.FailedStrings())
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "REJECT", Reject.String())
	assert.Equal(t, "LIST_ONLY", ListOnly.String())
	assert.Equal(t, "LIST_AND_SELECT", ListAndSelect.String())
}
