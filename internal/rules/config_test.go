package rules

import (
	"testing"

	"riskengine/internal/config"
)

func TestFromConfigBuildsThresholdRule(t *testing.T) {
	t.Parallel()

	rs, err := FromConfig([]config.RuleConfig{
		{
			Name:      "daily-volume",
			Type:      "threshold",
			Account:   true,
			Subject:   "account",
			Metric:    "trade_volume",
			Threshold: "1000",
			Action:    "SUSPEND_ACCOUNT_TRADING",
		},
	})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if len(rs) != 1 || rs[0].Name() != "daily-volume" {
		t.Fatalf("FromConfig() = %+v, want one rule named daily-volume", rs)
	}
	if _, ok := rs[0].(*ThresholdRule); !ok {
		t.Fatalf("FromConfig() rule type = %T, want *ThresholdRule", rs[0])
	}
}

func TestFromConfigBuildsRateLimitRule(t *testing.T) {
	t.Parallel()

	rs, err := FromConfig([]config.RuleConfig{
		{
			Name:        "order-rate",
			Type:        "rate_limit",
			Account:     true,
			Subject:     "account",
			Kind:        "order",
			WindowNs:    1_000_000_000,
			NumBuckets:  10,
			RateLimit:   50,
			SuspendKind: "SUSPEND_ORDERING",
			ResumeKind:  "RESUME_ORDERING",
		},
	})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("FromConfig() = %+v, want one rule", rs)
	}
	if _, ok := rs[0].(*RateLimitRule); !ok {
		t.Fatalf("FromConfig() rule type = %T, want *RateLimitRule", rs[0])
	}
}

func TestFromConfigRejectsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := FromConfig([]config.RuleConfig{{Name: "bad", Type: "nonsense"}})
	if err == nil {
		t.Fatal("FromConfig() error = nil, want error for unknown rule type")
	}
}

func TestFromConfigRejectsBadThreshold(t *testing.T) {
	t.Parallel()

	_, err := FromConfig([]config.RuleConfig{{
		Name:      "bad-threshold",
		Type:      "threshold",
		Threshold: "not-a-number",
	}})
	if err == nil {
		t.Fatal("FromConfig() error = nil, want error for unparseable threshold")
	}
}

func TestFromConfigRejectsUnknownSubject(t *testing.T) {
	t.Parallel()

	_, err := FromConfig([]config.RuleConfig{{
		Name:      "bad-subject",
		Type:      "threshold",
		Threshold: "10",
		Subject:   "nonsense",
	}})
	if err == nil {
		t.Fatal("FromConfig() error = nil, want error for unknown subject")
	}
}
