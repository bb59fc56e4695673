package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"riskengine/pkg/types"
)

func testCatalog() *Catalog {
	return New(
		map[string]string{"T2303": "T10Y", "T2306": "T10Y", "IF2303": "IF"},
		map[string]string{"T2303": "CFFEX", "T2306": "CFFEX", "IF2303": "CFFEX"},
	)
}

func TestResolveOrder(t *testing.T) {
	t.Parallel()
	c := testCatalog()

	got := c.ResolveOrder(types.Order{
		AccountID:  "A1",
		ContractID: "T2303",
		Volume:     1,
	})
	want := types.DimensionKey{
		AccountID:  "A1",
		ContractID: "T2303",
		ProductID:  "T10Y",
		ExchangeID: "CFFEX",
	}
	if got != want {
		t.Errorf("ResolveOrder() = %+v, want %+v", got, want)
	}
}

func TestResolveOrderUnknownContract(t *testing.T) {
	t.Parallel()
	c := testCatalog()

	got := c.ResolveOrder(types.Order{AccountID: "A1", ContractID: "UNKNOWN", Volume: 1})
	if got.ProductID != types.Absent || got.ExchangeID != types.Absent {
		t.Errorf("unknown contract should resolve to Absent components, got %+v", got)
	}
}

func TestResolveOrderExplicitExchangeWins(t *testing.T) {
	t.Parallel()
	c := testCatalog()

	got := c.ResolveOrder(types.Order{AccountID: "A1", ContractID: "T2303", ExchangeID: "OTHER", Volume: 1})
	if got.ExchangeID != "OTHER" {
		t.Errorf("explicit exchange-id should take precedence, got %q", got.ExchangeID)
	}
}

func TestCatalogImmutableAfterConstruction(t *testing.T) {
	t.Parallel()

	seed := map[string]string{"T2303": "T10Y"}
	c := New(seed, nil)
	seed["T2303"] = "MUTATED"

	if c.Product("T2303") != "T10Y" {
		t.Error("catalog should have copied the seed map, not aliased it")
	}
}

func TestEmptyCatalog(t *testing.T) {
	t.Parallel()
	c := Empty()
	if c.Product("anything") != types.Absent {
		t.Error("empty catalog should resolve everything to Absent")
	}
}

func TestLoadSeed(t *testing.T) {
	t.Parallel()

	entries := []SeedEntry{
		{ContractID: "T2303", ProductID: "T10Y", ExchangeID: "CFFEX"},
		{ContractID: "IF2303", ProductID: "IF", ExchangeID: "CFFEX"},
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal seed entries: %v", err)
	}

	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	c, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	if c.Product("T2303") != "T10Y" || c.Exchange("T2303") != "CFFEX" {
		t.Errorf("LoadSeed() did not populate T2303 correctly: product=%q exchange=%q", c.Product("T2303"), c.Exchange("T2303"))
	}
	if c.Product("IF2303") != "IF" {
		t.Errorf("LoadSeed() did not populate IF2303 correctly: product=%q", c.Product("IF2303"))
	}
}

func TestLoadSeedMissingFileYieldsEmpty(t *testing.T) {
	t.Parallel()

	c, err := LoadSeed(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	if c.Product("anything") != types.Absent {
		t.Error("missing seed file should yield an empty catalog")
	}
}
