package pricing

import (
	"github.com/boddenberg/orcamento-engine-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddItem appends a line item for product to q and refreshes q.TotalValue.
// unitPrice is captured as given; later catalog changes never touch the item.
func AddItem(q *domain.Quote, product domain.Product, quantity int, unitPrice decimal.Decimal) (domain.QuoteLineItem, error) {
	if quantity <= 0 {
		return domain.QuoteLineItem{}, &domain.ErrInvalidQuantity{Quantity: quantity}
	}

	item := domain.QuoteLineItem{
		ID:          uuid.NewString(),
		QuoteID:     q.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Subtotal:    round2(unitPrice.Mul(decimal.NewFromInt(int64(quantity)))),
	}
	q.Items = append(q.Items, item)
	q.TotalValue = Total(q)
	return item, nil
}

// RemoveItem drops the item with itemID from q and refreshes q.TotalValue.
// An unknown id leaves q untouched and returns *domain.ErrItemNotFound.
func RemoveItem(q *domain.Quote, itemID string) (domain.QuoteLineItem, error) {
	for i, it := range q.Items {
		if it.ID != itemID {
			continue
		}
		q.Items = append(q.Items[:i:i], q.Items[i+1:]...)
		q.TotalValue = Total(q)
		return it, nil
	}
	return domain.QuoteLineItem{}, &domain.ErrItemNotFound{QuoteID: q.ID, ItemID: itemID}
}

// Total sums the current line-item subtotals. It is recomputed on every call
// so rounding never accumulates across mutations.
func Total(q *domain.Quote) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range q.Items {
		sum = sum.Add(it.Subtotal)
	}
	return round2(sum)
}
