package filter

import (
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

type Decision int

const (
	Reject Decision = iota
	ListOnly
	ListAndSelect
)

func (d Decision) String() string {
	switch d {
	case ListOnly:
		return "LIST_ONLY"
	case ListAndSelect:
		return "LIST_AND_SELECT"
	default:
		return "REJECT"
	}
}

// Gate names one filter dimension.
type Gate string

const (
	GateLiquidity         Gate = "liquidity"
	GateVerification      Gate = "verification"
	GateSocial            Gate = "social"
	GateDangerousFeatures Gate = "dangerous_features"
	GateFailedTx          Gate = "failed_tx"
)

// Result is the outcome of a decision: the verdict plus every gate that failed.
type Result struct {
	Decision Decision `json:"-"`
	Failed   []Gate   `json:"failed,omitempty"`
}

func (r Result) FailedStrings() []string {
	if len(r.Failed) == 0 {
		return nil
	}
	out := make([]string, len(r.Failed))
	for i, g := range r.Failed {
		out[i] = string(g)
	}
	return out
}

var minLiquidity = decimal.NewFromInt(constants.MinLiquidityUnits)

// dangerousFlags are the scam patterns that trip the dangerous-features gate.
// Rebase and reward are reported but never gated.
var dangerousFlags = []models.RiskFlag{
	models.FlagReflect,
	models.FlagMint,
	models.FlagDisableTrading,
	models.FlagBlacklist,
	models.FlagMaxSell,
	models.FlagMaxTX,
	models.FlagFee,
}

// PassesLiquidity holds when low liquidity is allowed or at least one whole
// quote unit sits in the pair. Unknown liquidity only passes when allowed.
func PassesLiquidity(p models.FilterPolicy, l *models.Liquidity) bool {
	if p.AllowLowLiquidity {
		return true
	}
	return l != nil && l.Amount.GreaterThanOrEqual(minLiquidity)
}

// CodeGates returns the verification, social and dangerous-feature gates that fail.
// A nil analysis is unknown and fails every gate whose toggle is not permissive.
// An unverified contract has unknown flags and fails the dangerous-feature gate too.
func CodeGates(p models.FilterPolicy, ca *models.CodeAnalysis) []Gate {
	var failed []Gate

	if !p.AllowUnverifiedContracts && (ca == nil || !ca.Verified) {
		failed = append(failed, GateVerification)
	}
	if !p.AllowNoSocialChannel && !hasTelegram(ca) {
		failed = append(failed, GateSocial)
	}
	if !p.AllowDangerousFeatures && (ca == nil || !ca.Verified || hasDangerousFlag(ca)) {
		failed = append(failed, GateDangerousFeatures)
	}
	return failed
}

// PassesSimulation holds when failed transactions are allowed or a known
// simulation reported no honeypot.
func PassesSimulation(p models.FilterPolicy, sim *models.TradeSimulation) bool {
	if p.AllowFailedTx {
		return true
	}
	return sim != nil && !sim.IsHoneypot
}

// Passes reports whether the candidate clears every gate under p.
func Passes(p models.FilterPolicy, c *models.TokenCandidate) bool {
	return len(failedGates(p, c)) == 0
}

// Decide maps a candidate to a verdict under the given policy and lock state.
func Decide(p models.FilterPolicy, locked bool, c *models.TokenCandidate) Result {
	failed := failedGates(p, c)
	switch {
	case len(failed) > 0:
		return Result{Decision: Reject, Failed: failed}
	case locked:
		return Result{Decision: ListOnly}
	default:
		return Result{Decision: ListAndSelect}
	}
}

func failedGates(p models.FilterPolicy, c *models.TokenCandidate) []Gate {
	var failed []Gate
	if !PassesLiquidity(p, c.Liquidity) {
		failed = append(failed, GateLiquidity)
	}
	failed = append(failed, CodeGates(p, c.CodeAnalysis)...)
	if !PassesSimulation(p, c.TradeSimulation) {
		failed = append(failed, GateFailedTx)
	}
	return failed
}

func hasTelegram(ca *models.CodeAnalysis) bool {
	if ca == nil {
		return false
	}
	return ca.SocialLinks[constants.SocialTelegram] != ""
}

func hasDangerousFlag(ca *models.CodeAnalysis) bool {
	for _, f := range dangerousFlags {
		if ca.HasFlag(f) {
			return true
		}
	}
	return false
}
