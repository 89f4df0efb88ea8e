package core

import (
	"testing"
	"time"
)

func TestMoneyUnits(t *testing.T) {
	m := NewMoneyFromUnits(10000)
	if m.Cents != 1000000 {
		t.Errorf("NewMoneyFromUnits(10000).Cents = %d, want 1000000", m.Cents)
	}
	if got := m.Units(); got != 10000 {
		t.Errorf("Units() = %v, want 10000", got)
	}
	if got := m.Add(Money{Cents: 50}).Cents; got != 1000050 {
		t.Errorf("Add() = %d, want 1000050", got)
	}
	if got := m.Sub(m); got.Cents != 0 || !got.IsZero() {
		t.Errorf("Sub(self) = %+v, want zero", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: -1}).Validate(); err != ErrInvalidAmount {
		t.Errorf("negative amount error = %v, want ErrInvalidAmount", err)
	}
	if err := (Money{Cents: 0}).Validate(); err != nil {
		t.Errorf("zero amount error = %v, want nil", err)
	}
}

func TestLoanStatusValidate(t *testing.T) {
	valid := []LoanStatus{
		LoanPending, LoanApproved, LoanDisbursed, LoanActive,
		LoanCompleted, LoanDefaulted, LoanRejected,
	}
	for _, s := range valid {
		if err := s.Validate(); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", s, err)
		}
	}
	if err := LoanStatus("written_off").Validate(); err != ErrInvalidStatus {
		t.Errorf("Validate(unknown) = %v, want ErrInvalidStatus", err)
	}
}

func TestLoanStatusOpen(t *testing.T) {
	tests := []struct {
		status LoanStatus
		want   bool
	}{
		{LoanDisbursed, true},
		{LoanActive, true},
		{LoanCompleted, false},
		{LoanPending, false},
		{LoanDefaulted, false},
	}
	for _, tt := range tests {
		if got := tt.status.Open(); got != tt.want {
			t.Errorf("%s.Open() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestMembershipMonths(t *testing.T) {
	now := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		created time.Time
		want    int
	}{
		{"joined two years ago", time.Date(2022, 7, 15, 0, 0, 0, 0, time.UTC), 24},
		{"joined mid-month, day not reached", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), 5},
		{"joined same day", now, 0},
		{"joined in the future", now.AddDate(0, 1, 0), 0},
		{"zero creation time", time.Time{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Member{CreatedAt: tt.created}
			if got := m.MembershipMonths(now); got != tt.want {
				t.Errorf("MembershipMonths() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMemberPresenceFlags(t *testing.T) {
	m := Member{Occupation: " ", Address: "plot 12", NationalID: ""}
	if m.HasOccupation() {
		t.Error("HasOccupation() = true for blank occupation")
	}
	if !m.HasAddress() {
		t.Error("HasAddress() = false for set address")
	}
	if m.HasNationalID() {
		t.Error("HasNationalID() = true for empty id")
	}
}

func TestMeetingAttended(t *testing.T) {
	mt := Meeting{Attendees: []int64{3, 7, 11}}
	if !mt.Attended(7) {
		t.Error("Attended(7) = false, want true")
	}
	if mt.Attended(5) {
		t.Error("Attended(5) = true, want false")
	}
}
