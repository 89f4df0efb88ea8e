package loanmath

import (
	"testing"

	"github.com/shopspring/decimal"

	"chamacredit/internal/core"
)

func TestInterestRateBrackets(t *testing.T) {
	tests := []struct {
		score int
		want  float64
	}{
		{100, 3.5},
		{80, 3.5},
		{79, 5.0},
		{70, 5.0},
		{69, 7.5},
		{60, 7.5},
		{59, 10.0},
		{50, 10.0},
		{49, 12.5},
		{40, 12.5},
		{39, 15.0},
		{0, 15.0},
	}
	for _, tt := range tests {
		if got := InterestRate(tt.score); got.InexactFloat64() != tt.want {
			t.Errorf("InterestRate(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestMonthlyPaymentAnnuity(t *testing.T) {
	// 120,000 units at 10% APR over 12 months: the standard annuity works
	// out to 10,549.91 per month.
	principal := core.NewMoneyFromUnits(120_000)
	got := MonthlyPayment(principal, decimal.NewFromFloat(10.0), 12)
	want := core.Money{Cents: 1_054_991}
	if got != want {
		t.Errorf("MonthlyPayment = %v cents, want %v cents", got.Cents, want.Cents)
	}
}

func TestMonthlyPaymentZeroRate(t *testing.T) {
	principal := core.NewMoneyFromUnits(12_000)
	got := MonthlyPayment(principal, decimal.Zero, 12)
	want := core.NewMoneyFromUnits(1_000)
	if got != want {
		t.Errorf("zero-rate payment = %v, want %v", got, want)
	}
}

func TestMonthlyPaymentDegenerateInputs(t *testing.T) {
	rate := decimal.NewFromFloat(10.0)
	if got := MonthlyPayment(core.Money{}, rate, 12); !got.IsZero() {
		t.Errorf("zero principal payment = %v, want zero", got)
	}
	if got := MonthlyPayment(core.NewMoneyFromUnits(1000), rate, 0); !got.IsZero() {
		t.Errorf("zero term payment = %v, want zero", got)
	}
	if got := MonthlyPayment(core.Money{Cents: -500}, rate, 12); !got.IsZero() {
		t.Errorf("negative principal payment = %v, want zero", got)
	}
}

func TestMonthlyPaymentCoversPrincipal(t *testing.T) {
	// Total paid over the term always exceeds the principal when interest
	// is charged.
	principal := core.NewMoneyFromUnits(50_000)
	payment := MonthlyPayment(principal, decimal.NewFromFloat(7.5), DefaultTermMonths)
	total := payment.Cents * int64(DefaultTermMonths)
	if total <= principal.Cents {
		t.Errorf("total repaid %d does not exceed principal %d", total, principal.Cents)
	}
}
