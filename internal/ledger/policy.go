package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Policy struct {
	HoldDuration time.Duration
	// TaxRate is a fraction applied to the discounted subtotal, e.g. 0.1.
	TaxRate           decimal.Decimal
	ServiceFeePerSeat decimal.Decimal
	Currency          string
}

func DefaultPolicy() Policy {
	return Policy{
		HoldDuration:      15 * time.Minute,
		TaxRate:           decimal.Zero,
		ServiceFeePerSeat: decimal.Zero,
		Currency:          "usd",
	}
}

func (p Policy) Tax(taxable decimal.Decimal) decimal.Decimal {
	if !taxable.IsPositive() {
		return decimal.Zero
	}

	return taxable.Mul(p.TaxRate).Round(2)
}

func (p Policy) ServiceFee(seats int) decimal.Decimal {
	return p.ServiceFeePerSeat.Mul(decimal.NewFromInt(int64(seats)))
}
