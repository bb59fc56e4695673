package types

import (
	"math"
	"testing"
)

func TestOrderValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		order   Order
		wantErr error
	}{
		{"valid", Order{AccountID: "A", ContractID: "T2303", Volume: 1, Price: 100}, nil},
		{"zero volume", Order{AccountID: "A", ContractID: "T2303", Volume: 0, Price: 100}, ErrNonPositiveVolume},
		{"negative volume", Order{AccountID: "A", ContractID: "T2303", Volume: -1, Price: 100}, ErrNonPositiveVolume},
		{"nan price", Order{AccountID: "A", ContractID: "T2303", Volume: 1, Price: math.NaN()}, ErrNonFiniteNumeric},
		{"inf price", Order{AccountID: "A", ContractID: "T2303", Volume: 1, Price: math.Inf(1)}, ErrNonFiniteNumeric},
		{"missing account", Order{ContractID: "T2303", Volume: 1, Price: 100}, ErrMissingIdentifier},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.order.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDimensionKeyCollapse(t *testing.T) {
	t.Parallel()

	k := DimensionKey{
		AccountID:      "A",
		ContractID:     "T2303",
		ProductID:      "T10Y",
		ExchangeID:     "CFFEX",
		AccountGroupID: "G1",
	}

	got := k.Collapse(LiveDimensions{Account: true, Product: true})
	want := DimensionKey{AccountID: "A", ProductID: "T10Y"}
	if got != want {
		t.Errorf("Collapse() = %+v, want %+v", got, want)
	}
}

func TestActionKindFamily(t *testing.T) {
	t.Parallel()

	fam, isSuspend, ok := SuspendAccountTrading.Family()
	if !ok || fam != FamilyAccountTrading || !isSuspend {
		t.Errorf("SuspendAccountTrading.Family() = (%v, %v, %v)", fam, isSuspend, ok)
	}

	fam, isSuspend, ok = ResumeOrdering.Family()
	if !ok || fam != FamilyOrdering || isSuspend {
		t.Errorf("ResumeOrdering.Family() = (%v, %v, %v)", fam, isSuspend, ok)
	}

	if _, _, ok = Alert.Family(); ok {
		t.Error("Alert.Family() should report ok=false (non-pair action)")
	}
}

func TestRuleResultEmpty(t *testing.T) {
	t.Parallel()

	var r RuleResult
	if !r.Empty() {
		t.Error("zero-value RuleResult should be Empty")
	}

	r.Actions = append(r.Actions, Action{Kind: Alert, Subject: "A"})
	if r.Empty() {
		t.Error("RuleResult with an action should not be Empty")
	}
}
