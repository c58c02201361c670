package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

type Voucher struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MaxDiscount   *decimal.Decimal
	MinOrderValue *decimal.Decimal
	ValidFrom     time.Time
	ValidUntil    time.Time
}

func (v *Voucher) ValidAt(t time.Time) bool {
	return !t.Before(v.ValidFrom) && t.Before(v.ValidUntil)
}

// Snapshot copies the discount terms into a reservation.
func (v *Voucher) Snapshot() *AppliedVoucher {
	return &AppliedVoucher{
		Code:          v.Code,
		DiscountType:  v.DiscountType,
		DiscountValue: v.DiscountValue,
		MaxDiscount:   v.MaxDiscount,
		MinOrderValue: v.MinOrderValue,
	}
}

type AppliedVoucher struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MaxDiscount   *decimal.Decimal
	MinOrderValue *decimal.Decimal
}
