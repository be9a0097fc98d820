// Package pricing holds the quote engine: regional price resolution, line-item
// accumulation, payment plan computation and the quote status machine.
// Everything here is pure; persistence and notifications live in package service.
package pricing

import (
	"strings"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"

	"github.com/shopspring/decimal"
)

// regionBStates are the states priced on the second tier.
var regionBStates = map[string]struct{}{
	"MG": {},
	"RJ": {},
	"PR": {},
	"RS": {},
	"SC": {},
}

// TierForRegion classifies a two-letter state code. Unknown or empty codes
// fall through to RegionOther; that fallback is relied upon by existing data.
func TierForRegion(code string) domain.RegionTier {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "SP" {
		return domain.RegionA
	}
	if _, ok := regionBStates[code]; ok {
		return domain.RegionB
	}
	return domain.RegionOther
}

// ResolvePrice returns the product's unit price for the client's region,
// or zero when the product carries no price for that tier.
func ResolvePrice(p domain.Product, regionCode string) decimal.Decimal {
	var price decimal.NullDecimal
	switch TierForRegion(regionCode) {
	case domain.RegionA:
		price = p.PriceRegionA
	case domain.RegionB:
		price = p.PriceRegionB
	default:
		price = p.PriceRegionOther
	}
	if !price.Valid {
		return decimal.Zero
	}
	return round2(price.Decimal)
}
