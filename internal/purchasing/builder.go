// Package purchasing turns a priced quote into retailer-scoped purchase
// orders. The builder is pure; it never touches the database.
package purchasing

import (
	"sort"

	"github.com/buildrelay/procurement-backend/internal/pricing"
	"github.com/buildrelay/procurement-backend/internal/retailers"
	"github.com/buildrelay/procurement-backend/pkg/db/models"
	"github.com/buildrelay/procurement-backend/pkg/enums"
	"github.com/buildrelay/procurement-backend/pkg/errors"
)

// Builder groups quote lines by retailer and prices each group with that
// retailer's credentials attached.
type Builder struct {
	registry *retailers.Registry
}

func NewBuilder(registry *retailers.Registry) *Builder {
	return &Builder{registry: registry}
}

// Build produces one draft PurchaseOrder per distinct retailer in the quote.
// Purchases are tax exempt, so tax_cents stays 0 on every sub-order; the
// client-side tax lives on the parent order only.
func (b *Builder) Build(quote *pricing.Quote) ([]models.PurchaseOrder, error) {
	if quote == nil || len(quote.Lines) == 0 {
		return nil, errors.New(errors.CodeValidation, "quote has no priced lines")
	}

	grouped := make(map[string][]pricing.Line)
	order := make([]string, 0)
	for _, line := range quote.Lines {
		retailer := line.Item.Retailer
		if !b.registry.Has(retailer) {
			return nil, errors.New(errors.CodeValidation, "unknown retailer "+retailer)
		}
		if _, seen := grouped[retailer]; !seen {
			order = append(order, retailer)
		}
		grouped[retailer] = append(grouped[retailer], line)
	}
	sort.Strings(order)

	purchaseOrders := make([]models.PurchaseOrder, 0, len(order))
	for _, retailerID := range order {
		partner, err := b.registry.Get(retailerID)
		if err != nil {
			return nil, err
		}

		po := models.PurchaseOrder{
			Retailer:             retailerID,
			Status:               enums.PurchaseOrderStatusDraft,
			TaxCents:             0,
			TaxExemptCertificate: partner.Credentials().TaxExemptCertificate,
		}
		if proID := partner.Credentials().ProAccountID; proID != "" {
			po.ProAccountID = &proID
		}

		for _, line := range grouped[retailerID] {
			item := models.OrderItem{
				ProductID:              line.Item.ProductID,
				Name:                   line.Item.Name,
				Qty:                    line.Item.Quantity,
				ClientUnitPriceCents:   pricing.ToCents(line.Item.UnitPrice),
				ClientTotalCents:       pricing.ToCents(line.ClientTotal),
				PurchaseUnitPriceCents: pricing.ToCents(line.PurchaseUnitPrice),
				PurchaseTotalCents:     pricing.ToCents(line.PurchaseTotal),
				TaxSavingsCents:        pricing.ToCents(line.TaxSavings),
				DiscountSavingsCents:   pricing.ToCents(line.DiscountSavings),
				TotalSavingsCents:      pricing.ToCents(line.TotalSavings()),
			}
			po.Items = append(po.Items, item)
			po.SubtotalCents += item.PurchaseTotalCents
			po.DiscountCents += item.DiscountSavingsCents
		}
		po.TotalCents = po.SubtotalCents + po.TaxCents

		purchaseOrders = append(purchaseOrders, po)
	}

	return purchaseOrders, nil
}
