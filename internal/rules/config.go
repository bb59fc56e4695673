package rules

import (
	"fmt"

	"github.com/shopspring/decimal"

	"riskengine/internal/config"
	"riskengine/pkg/types"
)

func parseSubject(s string) (SubjectField, error) {
	switch s {
	case "", "account":
		return SubjectAccount, nil
	case "contract":
		return SubjectContract, nil
	case "product":
		return SubjectProduct, nil
	case "exchange":
		return SubjectExchange, nil
	case "account_group":
		return SubjectAccountGroup, nil
	default:
		return 0, fmt.Errorf("unknown subject %q", s)
	}
}

func liveDimensions(c config.RuleConfig) types.LiveDimensions {
	return types.LiveDimensions{
		Account:      c.Account,
		Contract:     c.Contract,
		Product:      c.Product,
		Exchange:     c.Exchange,
		AccountGroup: c.AccountGroup,
	}
}

// FromConfig builds the configured rule set (spec.md §6) from
// declarative config, in order. An unrecognized type, subject, metric,
// or event kind, or an unparseable threshold, is a configuration error,
// not a panic — a bad rule definition should fail engine construction,
// not the first event that reaches it. Action kind strings (action,
// suspend_kind, resume_kind) are used as given and not checked.
func FromConfig(cfgs []config.RuleConfig) ([]Rule, error) {
	out := make([]Rule, 0, len(cfgs))
	for _, c := range cfgs {
		r, err := ruleFromConfig(c)
		if err != nil {
			return nil, fmt.Errorf("rules: rule %q: %w", c.Name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func ruleFromConfig(c config.RuleConfig) (Rule, error) {
	subject, err := parseSubject(c.Subject)
	if err != nil {
		return nil, err
	}

	switch c.Type {
	case "threshold":
		threshold, err := decimal.NewFromString(c.Threshold)
		if err != nil {
			return nil, fmt.Errorf("parse threshold %q: %w", c.Threshold, err)
		}
		switch types.Metric(c.Metric) {
		case types.MetricTradeVolume, types.MetricTradeNotional, types.MetricOrderCount,
			types.MetricCancelCount, types.MetricTradeCount:
		default:
			return nil, fmt.Errorf("unknown metric %q", c.Metric)
		}
		return NewThresholdRule(c.Name, liveDimensions(c), types.Metric(c.Metric), threshold, types.ActionKind(c.Action), subject), nil

	case "rate_limit":
		switch types.EventKind(c.Kind) {
		case types.EventOrder, types.EventTrade, types.EventCancel:
		default:
			return nil, fmt.Errorf("unknown event kind %q", c.Kind)
		}
		numBuckets := c.NumBuckets
		if numBuckets <= 0 {
			numBuckets = 60
		}
		return NewRateLimitRule(c.Name, liveDimensions(c), c.WindowNs, numBuckets, c.RateLimit,
			types.ActionKind(c.SuspendKind), types.ActionKind(c.ResumeKind), subject, types.EventKind(c.Kind)), nil

	default:
		return nil, fmt.Errorf("unknown rule type %q", c.Type)
	}
}
