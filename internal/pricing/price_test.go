package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage_CappedDiscount(t *testing.T) {
	rule := Percentage{Percent: decimal.NewFromInt(10), Cap: 15_000}

	discount, final := Apply(rule, 200_000)

	assert.Equal(t, Money(15_000), discount)
	assert.Equal(t, Money(185_000), final)
}

func TestPercentage_UncappedAndFloored(t *testing.T) {
	rule := Percentage{Percent: decimal.RequireFromString("12.5")}

	discount, final := Apply(rule, 999)

	// 124.875 floors to 124
	assert.Equal(t, Money(124), discount)
	assert.Equal(t, Money(875), final)
}

func TestFixed_NeverExceedsAmount(t *testing.T) {
	tests := []struct {
		name     string
		value    Money
		amount   Money
		discount Money
		final    Money
	}{
		{"below amount", 5_000, 20_000, 5_000, 15_000},
		{"equal to amount", 20_000, 20_000, 20_000, 0},
		{"above amount", 50_000, 20_000, 20_000, 0},
		{"zero amount", 5_000, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			discount, final := Apply(Fixed{Value: tt.value}, tt.amount)
			assert.Equal(t, tt.discount, discount)
			assert.Equal(t, tt.final, final)
		})
	}
}

func TestApply_NilRule(t *testing.T) {
	discount, final := Apply(nil, 42)
	assert.Equal(t, Money(0), discount)
	assert.Equal(t, Money(42), final)
}

func TestNewRule(t *testing.T) {
	r, ok := NewRule(DiscountPercentage, decimal.NewFromInt(10), 15_000)
	require.True(t, ok)
	assert.Equal(t, DiscountPercentage, r.Kind())

	r, ok = NewRule(DiscountFixed, decimal.RequireFromString("2500.9"), 0)
	require.True(t, ok)
	assert.Equal(t, Fixed{Value: 2500}, r)

	_, ok = NewRule("BOGUS", decimal.Zero, 0)
	assert.False(t, ok)
}

func TestSeatPrice_TypeMultipliers(t *testing.T) {
	assert.Equal(t, Money(100_000), SeatPrice(100_000, SeatStandard))
	assert.Equal(t, Money(150_000), SeatPrice(100_000, SeatVIP))
	assert.Equal(t, Money(200_000), SeatPrice(100_000, SeatCouple))
	assert.Equal(t, Money(100_000), SeatPrice(100_000, "UNKNOWN"))
	// 333 * 1.5 = 499.5 rounds half up
	assert.Equal(t, Money(500), SeatPrice(333, SeatVIP))
}

func TestPrice_AgreesWithResolver(t *testing.T) {
	seats := []PricedSeat{
		{SeatID: 1, Type: SeatStandard},
		{SeatID: 2, Type: SeatVIP},
		{SeatID: 3, Type: SeatCouple},
	}
	base := Money(40_000)
	subtotal := Subtotal(base, seats)
	require.Equal(t, Money(180_000), subtotal)

	rule := Percentage{Percent: decimal.NewFromInt(10), Cap: 15_000}
	outcome := NewOutcome(SourceCoupon, 7, "SAVE10", rule, subtotal)

	total := Price(base, seats, &outcome)

	assert.Equal(t, outcome.OrderAmount, total.Subtotal)
	assert.Equal(t, outcome.DiscountAmount, total.Discount)
	assert.Equal(t, outcome.FinalAmount, total.Total)

	var sum Money
	for _, l := range total.Lines {
		sum += l.Price
		assert.LessOrEqual(t, l.Price, l.ListPrice)
	}
	assert.Equal(t, total.Total, sum)
}

func TestPrice_DistributesRemainder(t *testing.T) {
	seats := []PricedSeat{{SeatID: 1}, {SeatID: 2}, {SeatID: 3}}
	outcome := NewOutcome(SourceEvent, 1, "EVT", Fixed{Value: 100}, Subtotal(1_000, seats))

	total := Price(1_000, seats, &outcome)

	assert.Equal(t, Money(2_900), total.Total)
	var sum Money
	for _, l := range total.Lines {
		sum += l.Price
	}
	assert.Equal(t, Money(2_900), sum)
}

func TestPrice_IsRepeatable(t *testing.T) {
	seats := []PricedSeat{{SeatID: 1, Type: SeatVIP}, {SeatID: 2, Type: SeatStandard}}
	rule := Percentage{Percent: decimal.RequireFromString("7.3")}
	outcome := NewOutcome(SourceCoupon, 1, "ODD", rule, Subtotal(33_333, seats))

	first := Price(33_333, seats, &outcome)
	for i := 0; i < 100; i++ {
		again := Price(33_333, seats, &outcome)
		require.Equal(t, first, again)
	}
}

func TestPrice_NoDiscount(t *testing.T) {
	seats := []PricedSeat{{SeatID: 9, Type: SeatVIP}}

	total := Price(10_000, seats, nil)

	assert.Equal(t, Money(15_000), total.Subtotal)
	assert.Equal(t, Money(0), total.Discount)
	assert.Equal(t, Money(15_000), total.Total)
	assert.Equal(t, Money(15_000), total.Lines[0].Price)
}

func TestMoney_Display(t *testing.T) {
	assert.Equal(t, "1850.00", Money(185_000).String())
	assert.InDelta(t, 1850.0, Money(185_000).Float(), 1e-9)
}
