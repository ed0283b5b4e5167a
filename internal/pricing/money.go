package pricing

import (
	"github.com/shopspring/decimal"
)

// Exponent is the number of minor units digits of the settlement currency.
const Exponent = 2

// Money is an amount in minor currency units. All arithmetic on money is
// integer arithmetic; floating values only appear in DTOs.
type Money int64

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Exponent)
}

// Float returns the display value, e.g. Money(185000).Float() == 1850.0.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

func (m Money) String() string {
	return m.Decimal().StringFixed(Exponent)
}

func minMoney(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}
