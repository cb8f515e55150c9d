package ledger

import "github.com/shopspring/decimal"

// ResolvedAmount picks the single amount a public entry stands for: the
// first present of actual, approved, avg, min, max, else 0.
func (e PublicExpenseEntry) ResolvedAmount() float64 {
	return firstPresent(e.ActualAmount, e.ApprovedAmount, e.AmountAvg, e.AmountMin, e.AmountMax)
}

// ResolvedAmount of a personal request prefers the approved amount and
// otherwise follows the public chain.
func (r PersonalExpenseRequest) ResolvedAmount() float64 {
	return firstPresent(r.ApprovedAmount, r.AmountAvg, r.AmountMin, r.AmountMax)
}

// DisplayPrice is the amount shown in the pending queue: requested, avg, min.
func (r PersonalExpenseRequest) DisplayPrice() float64 {
	return firstPresent(r.RequestedAmount, r.AmountAvg, r.AmountMin)
}

func firstPresent(values ...*float64) float64 {
	for _, value := range values {
		if value != nil {
			return *value
		}
	}
	return 0
}

// AmountsOrdered reports whether min <= avg <= max for the amounts present.
// Nothing rejects unordered amounts; callers only log them.
func AmountsOrdered(min, avg, max *float64) bool {
	present := make([]float64, 0, 3)
	for _, value := range []*float64{min, avg, max} {
		if value != nil {
			present = append(present, *value)
		}
	}
	for i := 1; i < len(present); i++ {
		if present[i-1] > present[i] {
			return false
		}
	}
	return true
}

// Sum adds amounts through decimal so long lists of cents do not drift.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, value := range values {
		total = total.Add(decimal.NewFromFloat(value))
	}
	result, _ := total.Float64()
	return result
}

// Accumulator is a running decimal total.
type Accumulator struct {
	total decimal.Decimal
}

func (a *Accumulator) Add(value float64) {
	a.total = a.total.Add(decimal.NewFromFloat(value))
}

func (a *Accumulator) Float64() float64 {
	result, _ := a.total.Float64()
	return result
}

func Float(value float64) *float64 {
	return &value
}
