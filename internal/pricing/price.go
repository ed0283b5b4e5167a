package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

type SeatType string

const (
	SeatStandard SeatType = "STANDARD"
	SeatVIP      SeatType = "VIP"
	SeatCouple   SeatType = "COUPLE"
)

var seatMultipliers = map[SeatType]decimal.Decimal{
	SeatStandard: decimal.NewFromInt(1),
	SeatVIP:      decimal.RequireFromString("1.5"),
	SeatCouple:   decimal.NewFromInt(2),
}

// Multiplier returns the price multiplier of a seat type. Unknown types are
// priced as standard seats.
func Multiplier(t SeatType) decimal.Decimal {
	if m, ok := seatMultipliers[t]; ok {
		return m
	}
	return seatMultipliers[SeatStandard]
}

// SeatPrice is the list price of one seat, rounded half up to a minor unit.
func SeatPrice(base Money, t SeatType) Money {
	return Money(decimal.NewFromInt(int64(base)).Mul(Multiplier(t)).Round(0).IntPart())
}

type PricedSeat struct {
	SeatID uint
	Type   SeatType
}

type Line struct {
	SeatID    uint
	Type      SeatType
	ListPrice Money
	Price     Money
}

type Total struct {
	Subtotal Money
	Discount Money
	Total    Money
	Lines    []Line
}

// Subtotal sums the list prices of seats.
func Subtotal(base Money, seats []PricedSeat) Money {
	var sum Money
	for _, s := range seats {
		sum += SeatPrice(base, s.Type)
	}
	return sum
}

// Price composes seat prices and an optional discount into a total. The
// discount rule is re-applied to the seat subtotal so the result always
// agrees with the resolver. Line prices sum exactly to Total.
func Price(base Money, seats []PricedSeat, outcome *DiscountOutcome) Total {
	lines := make([]Line, len(seats))
	var subtotal Money
	for i, s := range seats {
		p := SeatPrice(base, s.Type)
		lines[i] = Line{SeatID: s.SeatID, Type: s.Type, ListPrice: p, Price: p}
		subtotal += p
	}

	var rule Rule
	if outcome != nil {
		rule = outcome.Rule
	}
	discount, final := Apply(rule, subtotal)
	distribute(lines, subtotal, discount)

	return Total{
		Subtotal: subtotal,
		Discount: discount,
		Total:    final,
		Lines:    lines,
	}
}

// distribute spreads discount over lines proportionally to their list
// price. Units lost to flooring go to the lines with the largest remainders.
func distribute(lines []Line, subtotal, discount Money) {
	if discount <= 0 || subtotal <= 0 {
		return
	}
	type share struct {
		idx int
		rem decimal.Decimal
	}
	total := decimal.NewFromInt(int64(subtotal))
	d := decimal.NewFromInt(int64(discount))
	shares := make([]share, len(lines))
	var given Money
	for i := range lines {
		exact := d.Mul(decimal.NewFromInt(int64(lines[i].ListPrice))).Div(total)
		floor := exact.Floor()
		lines[i].Price = lines[i].ListPrice - Money(floor.IntPart())
		given += Money(floor.IntPart())
		shares[i] = share{idx: i, rem: exact.Sub(floor)}
	}
	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].rem.GreaterThan(shares[b].rem)
	})
	for left, k := discount-given, 0; left > 0 && len(shares) > 0; left, k = left-1, k+1 {
		lines[shares[k%len(shares)].idx].Price--
	}
}
