// Package pricing computes reservation totals from booking-time snapshots.
// Every function is pure, so recomputing from the same snapshot yields the
// same amounts.
package pricing

import (
	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Input struct {
	Seats   []domain.SeatLine
	Combos  []domain.ComboLine
	Voucher *domain.AppliedVoucher
	// Tax and ServiceFee come from policy and are added as-is.
	Tax        decimal.Decimal
	ServiceFee decimal.Decimal
}

type Breakdown struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	ServiceFee decimal.Decimal
	Total      decimal.Decimal
}

func Calculate(in Input) (Breakdown, error) {
	subtotal := Subtotal(in.Seats, in.Combos)

	discount, err := Discount(subtotal, in.Voucher)
	if err != nil {
		return Breakdown{}, err
	}

	total := subtotal.Sub(discount).Add(in.Tax).Add(in.ServiceFee)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{
		Subtotal:   subtotal,
		Discount:   discount,
		Tax:        in.Tax,
		ServiceFee: in.ServiceFee,
		Total:      total,
	}, nil
}

func Subtotal(seats []domain.SeatLine, combos []domain.ComboLine) decimal.Decimal {
	subtotal := decimal.Zero

	for _, s := range seats {
		subtotal = subtotal.Add(s.Price)
	}

	for _, c := range combos {
		subtotal = subtotal.Add(c.Price.Mul(decimal.NewFromInt(int64(c.Quantity))))
	}

	return subtotal
}

// Discount rejects a voucher whose minimum order value is not met instead of
// ignoring it.
func Discount(subtotal decimal.Decimal, v *domain.AppliedVoucher) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}

	if v.MinOrderValue != nil && subtotal.LessThan(*v.MinOrderValue) {
		return decimal.Zero, &domain.InvalidVoucherError{
			Code:   v.Code,
			Reason: "order total is below the minimum of " + v.MinOrderValue.StringFixed(2),
		}
	}

	switch v.DiscountType {
	case domain.DiscountPercent:
		discount := subtotal.Mul(v.DiscountValue).Div(hundred).Round(2)
		if v.MaxDiscount != nil && discount.GreaterThan(*v.MaxDiscount) {
			discount = *v.MaxDiscount
		}
		return discount, nil
	case domain.DiscountFixed:
		return decimal.Min(v.DiscountValue, subtotal), nil
	default:
		return decimal.Zero, &domain.InvalidVoucherError{Code: v.Code, Reason: "unknown discount type"}
	}
}
