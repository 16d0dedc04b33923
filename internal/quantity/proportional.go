// Package quantity recomputes contract tonnage when a contract period changes.
//
// The model is a flat daily rate: the original quantity spread evenly over the
// days of the original period, multiplied by the days of the new period. The
// same function serves terminations (shorter period) and extensions (longer
// period).
package quantity

import (
	"github.com/shopspring/decimal"

	"github.com/nurpe/waste-contracts/internal/calendar"
)

const scale = 2

// Proportional returns the quantity for the period [start, newEnd] at the
// daily rate of quantity over [start, end]. It returns nil when the quantity
// or either bound of the original period is unknown.
func Proportional(q *decimal.Decimal, start, end *calendar.Date, newEnd calendar.Date) (*decimal.Decimal, error) {
	if q == nil || start == nil || end == nil {
		return nil, nil
	}

	// Inverted original period: nothing to prorate against.
	if end.Before(*start) {
		unchanged := *q
		return &unchanged, nil
	}

	totalDays, err := calendar.InclusiveSpanDays(*start, *end)
	if err != nil {
		return nil, err
	}
	newDays, err := calendar.InclusiveSpanDays(*start, newEnd)
	if err != nil {
		return nil, err
	}

	// Multiply before dividing so the only rounding is the final one.
	result := q.Mul(decimal.NewFromInt(int64(newDays))).
		DivRound(decimal.NewFromInt(int64(totalDays)), scale)
	return &result, nil
}

// Round2 rounds half away from zero to two places.
func Round2(q decimal.Decimal) decimal.Decimal {
	return q.Round(scale)
}

// Delta returns updated - original when both are known.
func Delta(updated, original *decimal.Decimal) *decimal.Decimal {
	if updated == nil || original == nil {
		return nil
	}
	d := updated.Sub(*original)
	return &d
}
