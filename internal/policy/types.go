package policy

import (
	"errors"

	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

var ErrUnknownToggle = errors.New("unknown filter toggle")

// Toggle names one FilterPolicy field on the wire and in storage.
type Toggle string

const (
	ToggleFailedTx            Toggle = "failed_tx"
	ToggleLowLiquidity        Toggle = "low_liquidity"
	ToggleUnverifiedContracts Toggle = "unverified_contracts"
	ToggleHighFees            Toggle = "high_fees"
	ToggleNoSocialChannel     Toggle = "no_social_channel"
	ToggleUnlockedLiquidity   Toggle = "unlocked_liquidity"
	ToggleDangerousFeatures   Toggle = "dangerous_features"
)

// Toggles lists every toggle in display order.
var Toggles = []Toggle{
	ToggleFailedTx,
	ToggleLowLiquidity,
	ToggleUnverifiedContracts,
	ToggleHighFees,
	ToggleNoSocialChannel,
	ToggleUnlockedLiquidity,
	ToggleDangerousFeatures,
}

func ParseToggle(s string) (Toggle, error) {
	for _, t := range Toggles {
		if string(t) == s {
			return t, nil
		}
	}
	return "", ErrUnknownToggle
}

// field returns a pointer to the policy field backing t.
func field(p *models.FilterPolicy, t Toggle) *bool {
	switch t {
	case ToggleFailedTx:
		return &p.AllowFailedTx
	case ToggleLowLiquidity:
		return &p.AllowLowLiquidity
	case ToggleUnverifiedContracts:
		return &p.AllowUnverifiedContracts
	case ToggleHighFees:
		return &p.AllowHighFees
	case ToggleNoSocialChannel:
		return &p.AllowNoSocialChannel
	case ToggleUnlockedLiquidity:
		return &p.AllowUnlockedLiquidity
	case ToggleDangerousFeatures:
		return &p.AllowDangerousFeatures
	default:
		return nil
	}
}

// Get reads toggle t from p.
func Get(p models.FilterPolicy, t Toggle) (bool, error) {
	f := field(&p, t)
	if f == nil {
		return false, ErrUnknownToggle
	}
	return *f, nil
}

// With returns p with toggle t set to v.
func With(p models.FilterPolicy, t Toggle, v bool) (models.FilterPolicy, error) {
	f := field(&p, t)
	if f == nil {
		return p, ErrUnknownToggle
	}
	*f = v
	return p, nil
}
