// Package pricing computes the two-sided money model for a material order:
// what the client is charged at retail, and what is actually paid to
// retailers after the contractor discount and tax exemption. The spread is
// the margin the business keeps.
package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buildrelay/procurement-backend/pkg/errors"
)

// Item is one priced line entering a quote.
type Item struct {
	ProductID uuid.UUID
	Name      string
	Retailer  string
	Quantity  int
	// UnitPrice is the client-facing retail unit price.
	UnitPrice decimal.Decimal
}

// Line is the fully priced form of an Item inside a Quote.
type Line struct {
	Item Item

	ClientTotal       decimal.Decimal
	PurchaseUnitPrice decimal.Decimal
	PurchaseTotal     decimal.Decimal
	TaxSavings        decimal.Decimal
	DiscountSavings   decimal.Decimal
}

// TotalSavings is the line's tax plus discount savings.
func (l Line) TotalSavings() decimal.Decimal {
	return l.TaxSavings.Add(l.DiscountSavings)
}

// Quote carries the aggregate money model for one order. All values are
// exact decimals. Rounding to cents happens only when a Quote is persisted,
// via ToCents.
type Quote struct {
	ClientTotal      decimal.Decimal
	ClientTaxAmount  decimal.Decimal
	ClientGrandTotal decimal.Decimal

	PurchaseCost     decimal.Decimal
	TaxSavings       decimal.Decimal
	DiscountSavings  decimal.Decimal
	EstimatedSavings decimal.Decimal

	Lines []Line
}

// Calculator prices item sets. It is stateless apart from the fallback
// discount rate used when a retailer has no configured rate.
type Calculator struct {
	defaultDiscount decimal.Decimal
}

func NewCalculator(defaultDiscountRate float64) *Calculator {
	return &Calculator{defaultDiscount: decimal.NewFromFloat(defaultDiscountRate)}
}

// Quote prices the items against the given tax rate. discountRates maps a
// retailer id to its contractor discount rate; retailers absent from the map
// fall back to the calculator's default.
func (c *Calculator) Quote(items []Item, taxRate decimal.Decimal, discountRates map[string]decimal.Decimal) (*Quote, error) {
	if len(items) == 0 {
		return nil, errors.New(errors.CodeValidation, "at least one item is required")
	}
	if taxRate.IsNegative() {
		return nil, errors.New(errors.CodeValidation, "tax rate must not be negative")
	}

	quote := &Quote{
		ClientTotal:     decimal.Zero,
		PurchaseCost:    decimal.Zero,
		DiscountSavings: decimal.Zero,
		Lines:           make([]Line, 0, len(items)),
	}

	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, errors.New(errors.CodeValidation, fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if item.UnitPrice.IsNegative() {
			return nil, errors.New(errors.CodeValidation, fmt.Sprintf("item %d: unit price must not be negative", i))
		}
		if item.Retailer == "" {
			return nil, errors.New(errors.CodeValidation, fmt.Sprintf("item %d: retailer is required", i))
		}

		rate, err := c.discountFor(item.Retailer, discountRates)
		if err != nil {
			return nil, err
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		retailTotal := item.UnitPrice.Mul(qty)
		purchaseUnit := item.UnitPrice.Mul(decimal.NewFromInt(1).Sub(rate))
		purchaseTotal := purchaseUnit.Mul(qty)

		line := Line{
			Item:              item,
			ClientTotal:       retailTotal,
			PurchaseUnitPrice: purchaseUnit,
			PurchaseTotal:     purchaseTotal,
			TaxSavings:        retailTotal.Mul(taxRate),
			DiscountSavings:   retailTotal.Sub(purchaseTotal),
		}

		quote.ClientTotal = quote.ClientTotal.Add(retailTotal)
		quote.PurchaseCost = quote.PurchaseCost.Add(purchaseTotal)
		quote.DiscountSavings = quote.DiscountSavings.Add(line.DiscountSavings)
		quote.Lines = append(quote.Lines, line)
	}

	// The purchasing entity buys tax exempt, so the client's tax amount is
	// retained margin in full.
	quote.ClientTaxAmount = quote.ClientTotal.Mul(taxRate)
	quote.TaxSavings = quote.ClientTaxAmount
	quote.ClientGrandTotal = quote.ClientTotal.Add(quote.ClientTaxAmount)
	quote.EstimatedSavings = quote.TaxSavings.Add(quote.DiscountSavings)

	return quote, nil
}

func (c *Calculator) discountFor(retailer string, rates map[string]decimal.Decimal) (decimal.Decimal, error) {
	rate, ok := rates[retailer]
	if !ok {
		rate = c.defaultDiscount
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, errors.New(errors.CodeValidation,
			fmt.Sprintf("retailer %q: discount rate must be in [0,1)", retailer))
	}
	return rate, nil
}

// ToCents rounds an exact decimal amount to whole cents, half up. This is
// the single output boundary where rounding is allowed.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
