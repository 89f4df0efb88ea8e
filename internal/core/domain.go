package core

import (
	"errors"
	"strings"
	"time"
)

const (
	ContributionPending  ContributionStatus = "pending"
	ContributionApproved ContributionStatus = "approved"
	ContributionRejected ContributionStatus = "rejected"
)

const (
	LoanPending   LoanStatus = "pending"
	LoanApproved  LoanStatus = "approved"
	LoanDisbursed LoanStatus = "disbursed"
	LoanActive    LoanStatus = "active"
	LoanCompleted LoanStatus = "completed"
	LoanDefaulted LoanStatus = "defaulted"
	LoanRejected  LoanStatus = "rejected"
)

const (
	TxLoanPayment      TransactionType = "loan_payment"
	TxContribution     TransactionType = "contribution"
	TxLoanDisbursement TransactionType = "loan_disbursement"
	TxFee              TransactionType = "fee"
	TxRefund           TransactionType = "refund"
	TxInterest         TransactionType = "interest"
)

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

const (
	FinePending  FineStatus = "pending"
	FineApproved FineStatus = "approved"
	FinePaid     FineStatus = "paid"
	FineWaived   FineStatus = "waived"
)

const (
	MemberActive   = "active"
	MemberInactive = "inactive"
)

type (
	ContributionStatus string
	LoanStatus         string
	TransactionType    string
	MeetingStatus      string
	FineStatus         string

	// Money is a currency amount in cents. All stored amounts use cents to
	// avoid floating-point drift; scoring math converts to units at the edge.
	Money struct {
		Cents int64
	}

	// Member is a savings-group member. The engine reads members and never
	// mutates them; SavingsBalance is the externally maintained running total,
	// which the scorer deliberately recomputes from approved contributions.
	Member struct {
		ID             int64
		GroupID        int64
		Name           string
		Status         string
		Occupation     string
		Address        string
		NationalID     string
		SavingsBalance Money
		CreatedAt      time.Time
	}

	Contribution struct {
		ID        int64
		MemberID  int64
		Amount    Money
		Status    ContributionStatus
		CreatedAt time.Time
	}

	Loan struct {
		ID              int64
		MemberID        int64
		Principal       Money
		TotalPayable    Money
		AmountPaid      Money
		Remaining       Money
		Status          LoanStatus
		DurationMonths  int
		DisbursedAt     time.Time
		NextPaymentDate time.Time
	}

	// Transaction is a typed ledger entry. LoanID is zero when the entry is
	// not tied to a loan.
	Transaction struct {
		ID        int64
		MemberID  int64
		LoanID    int64
		Type      TransactionType
		Amount    Money
		CreatedAt time.Time
	}

	Meeting struct {
		ID          int64
		GroupID     int64
		ScheduledAt time.Time
		Status      MeetingStatus
		Attendees   []int64
	}

	Fine struct {
		ID        int64
		MemberID  int64
		Amount    Money
		Status    FineStatus
		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidStatus = errors.New("invalid status")
	ErrNotFound      = errors.New("record not found")
)

// NewMoneyFromUnits converts whole currency units to Money.
func NewMoneyFromUnits(units int64) Money {
	return Money{Cents: units * 100}
}

// Units returns the amount in currency units as a float for scoring math.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (s ContributionStatus) Validate() error {
	switch s {
	case ContributionPending, ContributionApproved, ContributionRejected:
		return nil
	}
	return ErrInvalidStatus
}

func (s LoanStatus) Validate() error {
	switch s {
	case LoanPending, LoanApproved, LoanDisbursed, LoanActive,
		LoanCompleted, LoanDefaulted, LoanRejected:
		return nil
	}
	return ErrInvalidStatus
}

// Open reports whether the loan still has money out with the member.
func (s LoanStatus) Open() bool {
	switch s {
	case LoanDisbursed, LoanActive:
		return true
	}
	return false
}

func (t TransactionType) Validate() error {
	switch t {
	case TxLoanPayment, TxContribution, TxLoanDisbursement, TxFee, TxRefund, TxInterest:
		return nil
	}
	return ErrInvalidStatus
}

func (s FineStatus) Validate() error {
	switch s {
	case FinePending, FineApproved, FinePaid, FineWaived:
		return nil
	}
	return ErrInvalidStatus
}

// HasOccupation reports whether the member recorded an occupation.
func (m Member) HasOccupation() bool {
	return strings.TrimSpace(m.Occupation) != ""
}

func (m Member) HasAddress() bool {
	return strings.TrimSpace(m.Address) != ""
}

func (m Member) HasNationalID() bool {
	return strings.TrimSpace(m.NationalID) != ""
}

// MembershipMonths returns whole months elapsed since the member joined.
func (m Member) MembershipMonths(now time.Time) int {
	if m.CreatedAt.IsZero() || now.Before(m.CreatedAt) {
		return 0
	}
	months := (now.Year()-m.CreatedAt.Year())*12 + int(now.Month()) - int(m.CreatedAt.Month())
	if now.Day() < m.CreatedAt.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// Attended reports whether the member appears in the meeting attendance list.
func (mt Meeting) Attended(memberID int64) bool {
	for _, id := range mt.Attendees {
		if id == memberID {
			return true
		}
	}
	return false
}
