// Package catalog provides the static instrument catalog (C2): read-only
// contract→product and contract→exchange maps used to resolve an
// event's dimension key. Catalog lookups are lock-free — the catalog is
// immutable once built, matching spec.md §4.1 ("Reads are lock-free
// (frozen maps)").
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"riskengine/pkg/types"
)

// Catalog resolves contract identifiers to their product and exchange.
// It is built once (typically from a seed file read by LoadSeed)
// and never mutated afterward; a new Catalog is the only way to change
// the mapping.
type Catalog struct {
	productByContract  map[string]string
	exchangeByContract map[string]string
}

// New builds an immutable catalog from the given contract→product and
// contract→exchange maps. The maps are copied so later mutation of the
// caller's maps cannot affect the catalog.
func New(productByContract, exchangeByContract map[string]string) *Catalog {
	c := &Catalog{
		productByContract:  make(map[string]string, len(productByContract)),
		exchangeByContract: make(map[string]string, len(exchangeByContract)),
	}
	for k, v := range productByContract {
		c.productByContract[k] = v
	}
	for k, v := range exchangeByContract {
		c.exchangeByContract[k] = v
	}
	return c
}

// Empty returns a catalog with no known contracts; every lookup yields
// types.Absent. Useful for tests and for engines that only ever key on
// account/contract, never product/exchange.
func Empty() *Catalog {
	return New(nil, nil)
}

// Product returns the product-id for a contract, or types.Absent if
// unknown. Missing mappings are not an error (spec.md §4.1).
func (c *Catalog) Product(contractID string) string {
	if v, ok := c.productByContract[contractID]; ok {
		return v
	}
	return types.Absent
}

// Exchange returns the exchange-id for a contract, or types.Absent if
// unknown.
func (c *Catalog) Exchange(contractID string) string {
	if v, ok := c.exchangeByContract[contractID]; ok {
		return v
	}
	return types.Absent
}

// ResolveOrder populates a full DimensionKey from an order, looking up
// product/exchange from the contract-id. Account-id and
// account-group-id come directly from the event.
func (c *Catalog) ResolveOrder(o types.Order) types.DimensionKey {
	exchangeID := o.ExchangeID
	if exchangeID == types.Absent {
		exchangeID = c.Exchange(o.ContractID)
	}
	return types.DimensionKey{
		AccountID:      o.AccountID,
		ContractID:     o.ContractID,
		ProductID:      c.Product(o.ContractID),
		ExchangeID:     exchangeID,
		AccountGroupID: o.AccountGroupID,
	}
}

// ResolveTrade populates a DimensionKey from a (possibly enriched)
// trade's account-id and contract-id.
func (c *Catalog) ResolveTrade(accountID, contractID string) types.DimensionKey {
	return types.DimensionKey{
		AccountID:  accountID,
		ContractID: contractID,
		ProductID:  c.Product(contractID),
		ExchangeID: c.Exchange(contractID),
	}
}

// ResolveCancel is identical in shape to ResolveTrade — cancels enrich
// and resolve the same way.
func (c *Catalog) ResolveCancel(accountID, contractID string) types.DimensionKey {
	return c.ResolveTrade(accountID, contractID)
}

// SeedEntry is one row of a catalog seed file: a contract and the
// product/exchange it belongs to.
type SeedEntry struct {
	ContractID string `json:"contract_id"`
	ProductID  string `json:"product_id"`
	ExchangeID string `json:"exchange_id"`
}

// LoadSeed reads a JSON array of SeedEntry from path and builds the
// immutable catalog it describes. A missing file is not an error — it
// yields Empty(), the same catalog a deployment with no static
// contract metadata starts with.
func LoadSeed(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("catalog: read seed file: %w", err)
	}

	var entries []SeedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("catalog: parse seed file: %w", err)
	}

	productByContract := make(map[string]string, len(entries))
	exchangeByContract := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.ProductID != "" {
			productByContract[e.ContractID] = e.ProductID
		}
		if e.ExchangeID != "" {
			exchangeByContract[e.ContractID] = e.ExchangeID
		}
	}
	return New(productByContract, exchangeByContract), nil
}

// Snapshot returns copies of the underlying maps, used by the snapshot
// codec (C10) to serialize catalog state.
func (c *Catalog) Snapshot() (productByContract, exchangeByContract map[string]string) {
	productByContract = make(map[string]string, len(c.productByContract))
	for k, v := range c.productByContract {
		productByContract[k] = v
	}
	exchangeByContract = make(map[string]string, len(c.exchangeByContract))
	for k, v := range c.exchangeByContract {
		exchangeByContract[k] = v
	}
	return
}
