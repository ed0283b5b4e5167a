package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Rule computes the discount granted on an amount. Implementations are the
// discount variants a coupon or event can carry.
type Rule interface {
	Discount(amount Money) Money
	Kind() DiscountType
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// Percentage grants Percent percent of the amount, floored to a minor unit
// and capped at Cap when Cap > 0.
type Percentage struct {
	Percent decimal.Decimal
	Cap     Money
}

func (p Percentage) Kind() DiscountType { return DiscountPercentage }

func (p Percentage) Discount(amount Money) Money {
	if amount <= 0 || !p.Percent.IsPositive() {
		return 0
	}
	d := Money(decimal.NewFromInt(int64(amount)).Mul(p.Percent).Div(hundred).Floor().IntPart())
	if p.Cap > 0 {
		d = minMoney(d, p.Cap)
	}
	return minMoney(d, amount)
}

// Fixed grants a flat Value, never more than the amount itself.
type Fixed struct {
	Value Money
}

func (f Fixed) Kind() DiscountType { return DiscountFixed }

func (f Fixed) Discount(amount Money) Money {
	if amount <= 0 || f.Value <= 0 {
		return 0
	}
	return minMoney(f.Value, amount)
}

// NewRule builds the rule variant for a stored discount definition. For
// PERCENTAGE value is in percent points, for FIXED it is in minor units.
func NewRule(kind DiscountType, value decimal.Decimal, maxDiscount Money) (Rule, bool) {
	switch kind {
	case DiscountPercentage:
		return Percentage{Percent: value, Cap: maxDiscount}, true
	case DiscountFixed:
		return Fixed{Value: Money(value.Floor().IntPart())}, true
	default:
		return nil, false
	}
}

// Apply returns the discount and the amount left to pay.
func Apply(rule Rule, amount Money) (discount, final Money) {
	if rule == nil {
		return 0, amount
	}
	discount = rule.Discount(amount)
	final = amount - discount
	if final < 0 {
		final = 0
	}
	return discount, final
}

type Source string

const (
	SourceCoupon Source = "COUPON"
	SourceEvent  Source = "EVENT"
)

// DiscountOutcome is a validated discount priced against an order amount.
type DiscountOutcome struct {
	Source         Source
	SourceID       uint
	Code           string
	Rule           Rule
	OrderAmount    Money
	DiscountAmount Money
	FinalAmount    Money
}

// NewOutcome prices rule against amount.
func NewOutcome(source Source, sourceID uint, code string, rule Rule, amount Money) DiscountOutcome {
	discount, final := Apply(rule, amount)
	return DiscountOutcome{
		Source:         source,
		SourceID:       sourceID,
		Code:           code,
		Rule:           rule,
		OrderAmount:    amount,
		DiscountAmount: discount,
		FinalAmount:    final,
	}
}
