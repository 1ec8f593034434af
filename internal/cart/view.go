package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// ViewItem is a visible line joined with its catalog data.
type ViewItem struct {
	ProductID int64
	Name      string
	ImageURL  *string
	Color     *string
	Size      *string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// CartView is what a cart listing renders: priced lines, totals and the
// summed quantity badge.
type CartView struct {
	Items     []ViewItem
	Totals    Totals
	CartCount int
}

// View lists the owner's visible lines and prices them against the catalog.
// Lines whose product is gone keep a zero price and an empty name.
func (s *service) View(ctx context.Context, owner Owner) (*CartView, error) {
	lines, err := s.ListLines(ctx, owner)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	catalog, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, storeError(err, "load cart products")
	}

	view := &CartView{Items: make([]ViewItem, 0, len(lines))}
	priced := make([]PricedLine, 0, len(lines))
	for _, line := range lines {
		item := ViewItem{
			ProductID: line.ProductID,
			Color:     line.Color,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: decimal.Zero,
		}
		if p, ok := catalog[line.ProductID]; ok {
			item.Name = p.Name
			item.ImageURL = p.ImageURL
			item.UnitPrice = p.Price
		}
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		view.Items = append(view.Items, item)
		view.CartCount += line.Quantity
		priced = append(priced, PricedLine{Price: item.UnitPrice, Quantity: line.Quantity})
	}
	view.Totals = ComputeTotals(priced)
	return view, nil
}
