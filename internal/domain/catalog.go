package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Catalog: products, clients and region tiers
// ============================================================

// Entity names a collection in the data store (a PostgREST table).
type Entity string

const (
	EntityProduct          Entity = "products"
	EntityClient           Entity = "clients"
	EntityQuote            Entity = "quotes"
	EntityQuoteLineItem    Entity = "quote_items"
	EntityPaymentCondition Entity = "payment_conditions"
	EntityPaymentOption    Entity = "payment_options"
	EntityNotification     Entity = "notifications"
)

// RegionTier is one of the three pricing buckets a client's state maps to.
type RegionTier int

const (
	RegionOther RegionTier = iota
	RegionA
	RegionB
)

func (t RegionTier) String() string {
	switch t {
	case RegionA:
		return "region_a"
	case RegionB:
		return "region_b"
	default:
		return "region_other"
	}
}

// Product is a catalog entry priced per region tier. A null price means the
// product has no price for that tier and resolves to zero.
type Product struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Description      string              `json:"description,omitempty"`
	PriceRegionA     decimal.NullDecimal `json:"price_region_a"`
	PriceRegionB     decimal.NullDecimal `json:"price_region_b"`
	PriceRegionOther decimal.NullDecimal `json:"price_region_other"`
	CreatedAt        time.Time           `json:"created_at,omitempty"`
}

// Client is the buyer a quote is addressed to. State is the two-letter UF code.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Document  string    `json:"document,omitempty"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// PriceQuote is the API response for a resolved unit price.
type PriceQuote struct {
	ProductID string          `json:"product_id"`
	Region    string          `json:"region"`
	Tier      string          `json:"tier"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
