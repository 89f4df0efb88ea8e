// Package loanmath prices the recommended loan: score-bracketed interest
// rates and annuity monthly payments. Rates and payments use decimal
// arithmetic so repeated division never drifts cents.
package loanmath

import (
	"github.com/shopspring/decimal"

	"chamacredit/internal/core"
)

// DefaultTermMonths is the term the recommendation prices against before
// the member negotiates an actual duration.
const DefaultTermMonths = 12

var twelve = decimal.NewFromInt(12)

// InterestRate maps a credit score to the annual percentage rate bracket.
func InterestRate(score int) decimal.Decimal {
	switch {
	case score >= 80:
		return decimal.NewFromFloat(3.5)
	case score >= 70:
		return decimal.NewFromFloat(5.0)
	case score >= 60:
		return decimal.NewFromFloat(7.5)
	case score >= 50:
		return decimal.NewFromFloat(10.0)
	case score >= 40:
		return decimal.NewFromFloat(12.5)
	default:
		return decimal.NewFromFloat(15.0)
	}
}

// MonthlyPayment amortizes a principal over the term at the given annual
// percentage rate using the standard annuity formula, rounded to cents.
// A zero rate degenerates to straight division.
func MonthlyPayment(principal core.Money, annualRatePercent decimal.Decimal, termMonths int) core.Money {
	if principal.Cents <= 0 || termMonths <= 0 {
		return core.Money{}
	}

	p := decimal.New(principal.Cents, -2)
	if annualRatePercent.IsZero() {
		return core.Money{Cents: p.Div(decimal.NewFromInt(int64(termMonths))).Shift(2).Round(0).IntPart()}
	}

	// monthly rate = APR / 100 / 12
	r := annualRatePercent.Div(decimal.NewFromInt(100)).Div(twelve)
	one := decimal.NewFromInt(1)

	// payment = P * r * (1+r)^n / ((1+r)^n - 1)
	growth := one.Add(r).Pow(decimal.NewFromInt(int64(termMonths)))
	payment := p.Mul(r).Mul(growth).Div(growth.Sub(one))

	return core.Money{Cents: payment.Shift(2).Round(0).IntPart()}
}
