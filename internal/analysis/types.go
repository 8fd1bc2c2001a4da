package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

var (
	ErrMalformed = errors.New("malformed analysis payload")
	ErrNotFound  = errors.New("analysis backend has no data")
)

// knownFlags is the fixed scam-type vocabulary. Matching is case-sensitive.
var knownFlags = map[string]models.RiskFlag{
	string(models.FlagMint):           models.FlagMint,
	string(models.FlagDisableTrading): models.FlagDisableTrading,
	string(models.FlagBlacklist):      models.FlagBlacklist,
	string(models.FlagMaxSell):        models.FlagMaxSell,
	string(models.FlagMaxTX):          models.FlagMaxTX,
	string(models.FlagFee):            models.FlagFee,
	string(models.FlagRebase):         models.FlagRebase,
	string(models.FlagReflect):        models.FlagReflect,
	string(models.FlagReward):         models.FlagReward,
}

type envelope struct {
	Result json.RawMessage `json:"result"`
}

type codeAnalysisPayload struct {
	Verified      *bool `json:"verified"`
	DetectedScams *[]struct {
		Type string `json:"type"`
	} `json:"detectedScams"`
	Medias map[string]any `json:"medias"`
}

type simulationPayload struct {
	IsHoneypot *bool    `json:"isHoneypot"`
	BuyTax     *float64 `json:"buyTax"`
	SellTax    *float64 `json:"sellTax"`
}

type launchPayload struct {
	AddressPair  string `json:"addressPair"`
	TokenAddress string `json:"tokenAddress"`
	PairSymbol   string `json:"pairSymbol"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
}

func unwrap(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, fmt.Errorf("%w: missing result", ErrMalformed)
	}
	return env.Result, nil
}

func parseCodeAnalysis(body []byte) (*models.CodeAnalysis, error) {
	raw, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	var p codeAnalysisPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Verified == nil {
		return nil, fmt.Errorf("%w: missing verified", ErrMalformed)
	}
	if !*p.Verified {
		return &models.CodeAnalysis{Verified: false}, nil
	}

	// a verified contract without a scam list has not been checked
	if p.DetectedScams == nil {
		return nil, fmt.Errorf("%w: missing detectedScams", ErrMalformed)
	}

	out := &models.CodeAnalysis{Verified: true, Flags: []models.RiskFlag{}}
	seen := make(map[models.RiskFlag]bool)
	for _, s := range *p.DetectedScams {
		f, ok := knownFlags[s.Type]
		if !ok || seen[f] {
			continue
		}
		seen[f] = true
		out.Flags = append(out.Flags, f)
	}

	for channel, v := range p.Medias {
		link, ok := v.(string)
		if !ok || strings.TrimSpace(link) == "" {
			continue
		}
		if out.SocialLinks == nil {
			out.SocialLinks = make(map[string]string)
		}
		out.SocialLinks[channel] = link
	}
	return out, nil
}

func parseTradeSimulation(body []byte) (*models.TradeSimulation, error) {
	raw, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	var p simulationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.IsHoneypot == nil {
		return nil, fmt.Errorf("%w: missing isHoneypot", ErrMalformed)
	}
	return &models.TradeSimulation{IsHoneypot: *p.IsHoneypot, BuyTax: p.BuyTax, SellTax: p.SellTax}, nil
}

func parseHolderCount(body []byte) (int, error) {
	raw, err := unwrap(body)
	if err != nil {
		return 0, err
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		// some deployments quote the number
		var s string
		if err2 := json.Unmarshal(raw, &s); err2 != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := n.Int64()
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: holder count %q", ErrMalformed, n.String())
	}
	return int(v), nil
}

// parseLaunch accepts the launch record either bare or inside a result envelope.
func parseLaunch(body []byte) (*models.LaunchRecord, error) {
	raw := json.RawMessage(body)
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Result) > 0 && string(env.Result) != "null" {
		raw = env.Result
	}

	var p launchPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.AddressPair == "" && p.TokenAddress == "" {
		return nil, ErrNotFound
	}
	if !common.IsHexAddress(p.AddressPair) || !common.IsHexAddress(p.TokenAddress) {
		return nil, fmt.Errorf("%w: bad launch addresses", ErrMalformed)
	}
	if p.PairSymbol == "" {
		return nil, fmt.Errorf("%w: missing pairSymbol", ErrMalformed)
	}

	return &models.LaunchRecord{
		PairAddress:  common.HexToAddress(p.AddressPair),
		TokenAddress: common.HexToAddress(p.TokenAddress),
		PairSymbol:   p.PairSymbol,
		Name:         p.Name,
		Symbol:       p.Symbol,
	}, nil
}
