package services

import (
	"math"
	"time"

	"github.com/song-xingzhou/MVEN-Parking/models"
)

// Quote is the price snapshot captured at order creation. It is written
// onto the order and never recomputed, so later price changes on the
// space do not affect existing orders.
type Quote struct {
	BillingType string
	UnitPrice   float64
	Quantity    int
	Original    float64
	Discount    float64
	Total       float64
}

// DiscountPolicy computes a discount for a quote, e.g. a first-booking or
// promo-code reduction. The result is clamped to [0, Original].
type DiscountPolicy func(q Quote) float64

// NoDiscount is the default policy.
func NoDiscount(Quote) float64 { return 0 }

// billing unit durations; a month bills as 30 days.
const (
	billingDay   = 24 * time.Hour
	billingMonth = 30 * billingDay
)

// Price computes the snapshot for the half-open window [start, end).
// Elapsed time is rounded up to whole billing units: 2h10m hourly bills
// as 3 hours. Monetary amounts are rounded to two decimals and are never
// negative.
func Price(billingType string, unitPrice float64, start, end time.Time, policy DiscountPolicy) (Quote, error) {
	if !start.Before(end) {
		return Quote{}, &ValidationError{Field: "endTime", Reason: "must be after startTime"}
	}
	if unitPrice <= 0 {
		return Quote{}, &ValidationError{Field: "unitPrice", Reason: "must be positive"}
	}

	var unit time.Duration
	switch billingType {
	case models.BillingHourly:
		unit = time.Hour
	case models.BillingDaily:
		unit = billingDay
	case models.BillingMonthly:
		unit = billingMonth
	default:
		return Quote{}, &ValidationError{Field: "billingType", Reason: "must be hourly, daily or monthly"}
	}

	elapsed := end.Sub(start)
	quantity := int((elapsed + unit - 1) / unit)

	q := Quote{
		BillingType: billingType,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		Original:    round2(unitPrice * float64(quantity)),
	}

	if policy == nil {
		policy = NoDiscount
	}
	discount := policy(q)
	if discount < 0 {
		discount = 0
	}
	if discount > q.Original {
		discount = q.Original
	}
	q.Discount = round2(discount)
	q.Total = round2(q.Original - q.Discount)
	return q, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
