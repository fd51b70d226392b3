package pricing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func calculate(in Input) Result { return NewCalculator(DefaultRates()).Calculate(in) }

func categoryFor(birth *time.Time, asOf time.Time) AgeCategory {
	return DefaultRates().CategoryFor(birth, asOf)
}

func TestCalculate_ElderScenario(t *testing.T) {
	res := calculate(Input{
		Lines:    []Line{{Name: "Endodoncia", UnitOriginal: d("1000"), Quantity: 2}},
		Category: CategoryElder,
		Charge:   true,
	})

	assertDec(t, "2000", res.Subtotal, "subtotal")
	assertDec(t, "700", res.Discount, "discount")
	assertDec(t, "1300", res.Total, "total")
	require.Len(t, res.Reasons, 1)
	assert.Contains(t, res.Reasons[0], "Endodoncia")
}

func TestCalculate_AgeRatesExact(t *testing.T) {
	cases := []struct {
		category AgeCategory
		want     string
	}{
		{CategorySenior, "125"},
		{CategoryElder, "175"},
		{CategoryAdult, "0"},
		{CategoryMinor, "0"},
	}
	for _, tc := range cases {
		t.Run(string(tc.category), func(t *testing.T) {
			res := calculate(Input{
				Lines:    []Line{{Name: "Limpieza", UnitOriginal: d("500"), Quantity: 1}},
				Category: tc.category,
				Charge:   true,
			})
			assertDec(t, tc.want, res.Discount, "discount")
			assertDec(t, "500", res.Subtotal, "subtotal")
		})
	}
}

func TestCalculate_PromotionalLineFlag(t *testing.T) {
	lines := []Line{
		{Name: "Blanqueamiento 2x1", UnitOriginal: d("500"), Quantity: 1, Promotional: true, DisableAgeDiscount: true},
		{Name: "Sellante", UnitOriginal: d("200"), Quantity: 1, Promotional: true},
		{Name: "Resina", UnitOriginal: d("400"), Quantity: 1, DisableAgeDiscount: true},
	}
	res := calculate(Input{Lines: lines, Category: CategorySenior, Charge: true})

	assertDec(t, "0", res.Lines[0].Discount, "promo with flag")
	assertDec(t, "50", res.Lines[1].Discount, "promo without flag")
	// The flag only exempts promotional lines.
	assertDec(t, "100", res.Lines[2].Discount, "regular line")
	assertDec(t, "150", res.Discount, "discount")
	assertDec(t, "950", res.Total, "total")
	assert.Len(t, res.Reasons, 2)
}

func TestCalculate_HistoricalZeroesEverything(t *testing.T) {
	res := calculate(Input{
		Lines: []Line{
			{Name: "Extracción", UnitOriginal: d("800"), Quantity: 3},
			{Name: "Corona", UnitOriginal: d("4500"), Quantity: 1},
		},
		Category: CategoryElder,
		Manual:   ManualDiscount{Type: DiscountFixed, Value: d("100")},
		Charge:   false,
	})

	assert.True(t, res.Subtotal.IsZero())
	assert.True(t, res.Discount.IsZero())
	assert.True(t, res.Total.IsZero())
	require.Len(t, res.Lines, 2)
	for _, l := range res.Lines {
		assert.True(t, l.Total.IsZero())
	}
}

func TestCalculate_ManualFixedCapped(t *testing.T) {
	cases := []struct {
		name     string
		value    string
		category AgeCategory
		applied  string
		total    string
	}{
		{"below balance", "300", CategoryAdult, "300", "700"},
		{"equal balance", "1000", CategoryAdult, "1000", "0"},
		{"above balance", "2500", CategoryAdult, "1000", "0"},
		{"after age discount", "900", CategorySenior, "750", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := calculate(Input{
				Lines:    []Line{{Name: "Puente", UnitOriginal: d("1000"), Quantity: 1}},
				Category: tc.category,
				Manual:   ManualDiscount{Type: DiscountFixed, Value: d(tc.value)},
				Charge:   true,
			})
			assertDec(t, tc.applied, res.ManualDiscount, "manual")
			assertDec(t, tc.total, res.Total, "total")
			assert.False(t, res.Total.IsNegative())
			assert.True(t, res.Subtotal.Sub(res.Discount).Equal(res.Total))
		})
	}
}

func TestCalculate_ManualPercentageOnRemaining(t *testing.T) {
	res := calculate(Input{
		Lines:    []Line{{Name: "Ortodoncia", UnitOriginal: d("2000"), Quantity: 1}},
		Category: CategorySenior,
		Manual:   ManualDiscount{Type: DiscountPercentage, Value: d("10")},
		Charge:   true,
	})
	// 2000 - 500 (age) = 1500; 10% of 1500 = 150
	assertDec(t, "150", res.ManualDiscount, "manual")
	assertDec(t, "650", res.Discount, "discount")
	assertDec(t, "1350", res.Total, "total")

	res = calculate(Input{
		Lines:  []Line{{Name: "Ortodoncia", UnitOriginal: d("2000"), Quantity: 1}},
		Manual: ManualDiscount{Type: DiscountPercentage, Value: d("150")},
		Charge: true,
	})
	assertDec(t, "0", res.Total, "percentage clamps at 100")
}

func TestCalculate_ClampsQuantityAndPrice(t *testing.T) {
	res := calculate(Input{
		Lines: []Line{
			{Name: "Radiografía", UnitOriginal: d("150"), Quantity: 0},
			{Name: "Ajuste", UnitOriginal: d("-40"), Quantity: 2},
		},
		Charge: true,
	})
	assertDec(t, "150", res.Lines[0].Subtotal, "qty clamped to 1")
	assertDec(t, "0", res.Lines[1].Subtotal, "price clamped to 0")
	assertDec(t, "150", res.Total, "total")
}

func TestCalculate_NoneIgnoresValue(t *testing.T) {
	res := calculate(Input{
		Lines:  []Line{{Name: "Consulta", UnitOriginal: d("300"), Quantity: 1}},
		Manual: ManualDiscount{Type: DiscountNone, Value: d("100")},
		Charge: true,
	})
	assertDec(t, "300", res.Total, "total")
	assert.Empty(t, res.Reasons)
}

func TestCalculator_CustomRates(t *testing.T) {
	rates := DefaultRates()
	rates.SeniorRate = d("0.10")
	res := NewCalculator(rates).Calculate(Input{
		Lines:    []Line{{Name: "Limpieza", UnitOriginal: d("1000"), Quantity: 1}},
		Category: CategorySenior,
		Charge:   true,
	})
	assertDec(t, "100", res.Discount, "discount")
}

func TestDiscountType_Valid(t *testing.T) {
	assert.True(t, DiscountFixed.Valid())
	assert.True(t, DiscountType("").Valid())
	assert.False(t, DiscountType("fixed-amount-typo").Valid())
}

func TestCalculate_GoldenQuote(t *testing.T) {
	res := calculate(Input{
		Lines:    []Line{{Name: "Endodoncia", UnitOriginal: d("1000"), Quantity: 2}},
		Category: CategoryElder,
		Charge:   true,
	})
	out, err := json.MarshalIndent(res, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "quote_elder", out)
}
