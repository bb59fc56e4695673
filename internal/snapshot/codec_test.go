package snapshot

import (
	"errors"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"

	"riskengine/internal/action"
	"riskengine/internal/stats"
	"riskengine/pkg/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	s := State{
		ProductByContract:  map[string]string{"T2303": "T10Y"},
		ExchangeByContract: map[string]string{"T2303": "CFFEX"},
		DailyCounters: map[string][]stats.DailyEntry{
			"daily-volume": {
				{
					Dim:    types.DimensionKey{AccountID: "A1"},
					Day:    19724,
					Metric: types.MetricTradeVolume,
					Value:  decimal.NewFromInt(1500),
				},
			},
		},
		LatchEntries: []action.Entry{
			{Subject: "A1", Family: types.FamilyAccountTrading, State: action.Suspended},
		},
	}

	blob, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got.ProductByContract["T2303"] != "T10Y" {
		t.Errorf("ProductByContract = %v", got.ProductByContract)
	}
	if got.ExchangeByContract["T2303"] != "CFFEX" {
		t.Errorf("ExchangeByContract = %v", got.ExchangeByContract)
	}

	entries := got.DailyCounters["daily-volume"]
	if len(entries) != 1 {
		t.Fatalf("DailyCounters entries = %d, want 1", len(entries))
	}
	if entries[0].Dim.AccountID != "A1" || !entries[0].Value.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("unexpected daily entry: %+v", entries[0])
	}

	if len(got.LatchEntries) != 1 || got.LatchEntries[0].State != action.Suspended {
		t.Errorf("unexpected latch entries: %+v", got.LatchEntries)
	}
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	t.Parallel()

	blob, err := Encode(State{DailyCounters: map[string][]stats.DailyEntry{}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// A structurally valid but empty state round-trips with no entries,
	// confirming readers don't choke on zero-length sections.
	got, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.DailyCounters) != 0 {
		t.Errorf("DailyCounters = %v, want empty", got.DailyCounters)
	}

	// A blob carrying any other version tag is rejected.
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd.NewWriter() error = %v", err)
	}
	bad := enc.EncodeAll([]byte{2, 0, 0, 0}, nil) // version 2, little-endian
	enc.Close()
	if _, err := Decode(bad); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Decode(version 2) error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestEncodeEmptyState(t *testing.T) {
	t.Parallel()
	blob, err := Encode(State{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.ProductByContract) != 0 || len(got.LatchEntries) != 0 {
		t.Errorf("expected empty decoded state, got %+v", got)
	}
}
