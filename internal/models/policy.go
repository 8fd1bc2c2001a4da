package models

// FilterPolicy holds the operator's permissive toggles. A true toggle
// allows the corresponding risk; every toggle defaults to true.
type FilterPolicy struct {
	AllowFailedTx            bool `json:"allow_failed_tx"`
	AllowLowLiquidity        bool `json:"allow_low_liquidity"`
	AllowUnverifiedContracts bool `json:"allow_unverified_contracts"`
	AllowHighFees            bool `json:"allow_high_fees"`
	AllowNoSocialChannel     bool `json:"allow_no_social_channel"`
	AllowUnlockedLiquidity   bool `json:"allow_unlocked_liquidity"`
	AllowDangerousFeatures   bool `json:"allow_dangerous_features"`
}

func DefaultFilterPolicy() FilterPolicy {
	return FilterPolicy{
		AllowFailedTx:            true,
		AllowLowLiquidity:        true,
		AllowUnverifiedContracts: true,
		AllowHighFees:            true,
		AllowNoSocialChannel:     true,
		AllowUnlockedLiquidity:   true,
		AllowDangerousFeatures:   true,
	}
}

// PolicyView is the policy plus lock flag as exposed over the API.
type PolicyView struct {
	Filters FilterPolicy `json:"filters"`
	Locked  bool         `json:"locked"`
}
