package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chamacredit/internal/core"
)

// Snapshot is the cheap one-pass aggregation of a member's records used by
// the rule-based fallback and emergency recovery. Unlike the full extractor
// it does no cadence or discipline inference, just sums and counts.
type Snapshot struct {
	Member *core.Member

	Savings                 core.Money
	ContributionCount       int
	ContributionTotal       core.Money
	RecentContributionCount int

	TotalLoans           int
	CompletedLoans       int
	ActiveLoans          int
	DefaultedLoans       int
	OnTimeCompletedLoans int
	Borrowed             core.Money
	Repaid               core.Money
	Outstanding          core.Money

	MeetingsHeld     int
	MeetingsAttended int
	FineCount        int
	UnpaidFineAmount core.Money

	MembershipMonths int

	// ContributionsUnavailable marks that the contribution query failed and
	// the Savings figure cannot be trusted. The rule-based path refuses
	// degraded savings and defers to emergency recovery.
	ContributionsUnavailable bool
}

// SnapshotBuilder fetches each record type once and pre-sums it.
type SnapshotBuilder struct {
	src Source
	now func() time.Time
}

func NewSnapshotBuilder(src Source) *SnapshotBuilder {
	return &SnapshotBuilder{src: src, now: time.Now}
}

// Build aggregates one member's records. A missing member is reported as an
// error with a nil-Member snapshot so the orchestrator can distinguish
// "no data" from "store down"; any other per-type failure degrades that
// section to zeros.
func (b *SnapshotBuilder) Build(ctx context.Context, memberID int64) (*Snapshot, error) {
	now := b.now()
	snap := &Snapshot{}

	member, err := b.src.MemberByID(ctx, memberID)
	if errors.Is(err, core.ErrNotFound) {
		// Member genuinely absent: a valid snapshot with no member record,
		// unlike a store failure.
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("fetch member %d: %w", memberID, err)
	}
	snap.Member = member
	snap.MembershipMonths = member.MembershipMonths(now)

	if contribs, err := b.src.ContributionsByMember(ctx, memberID); err != nil {
		snap.ContributionsUnavailable = true
	} else {
		recentCutoff := now.AddDate(0, -6, 0)
		for _, c := range contribs {
			if c.Status != core.ContributionApproved {
				continue
			}
			snap.ContributionCount++
			snap.ContributionTotal = snap.ContributionTotal.Add(c.Amount)
			if c.CreatedAt.After(recentCutoff) {
				snap.RecentContributionCount++
			}
		}
		snap.Savings = snap.ContributionTotal
	}

	if loans, err := b.src.LoansByMember(ctx, memberID); err == nil {
		for _, l := range loans {
			snap.TotalLoans++
			switch l.Status {
			case core.LoanCompleted:
				snap.CompletedLoans++
				// Without the payment ledger the snapshot approximates
				// on-time completion as "nothing left owing".
				if l.Remaining.Cents <= 0 {
					snap.OnTimeCompletedLoans++
				}
			case core.LoanDefaulted:
				snap.DefaultedLoans++
			case core.LoanDisbursed, core.LoanActive:
				snap.ActiveLoans++
			}
			switch l.Status {
			case core.LoanDisbursed, core.LoanActive, core.LoanCompleted, core.LoanDefaulted:
				snap.Borrowed = snap.Borrowed.Add(l.Principal)
				snap.Repaid = snap.Repaid.Add(l.AmountPaid)
			}
			if l.Status.Open() || l.Status == core.LoanDefaulted {
				snap.Outstanding = snap.Outstanding.Add(l.Remaining)
			}
		}
	}

	if member.GroupID != 0 {
		if meetings, err := b.src.MeetingsByGroup(ctx, member.GroupID); err == nil {
			for _, m := range meetings {
				if m.Status != core.MeetingCompleted {
					continue
				}
				snap.MeetingsHeld++
				if m.Attended(memberID) {
					snap.MeetingsAttended++
				}
			}
		}
	}

	if fines, err := b.src.FinesByMember(ctx, memberID); err == nil {
		snap.FineCount = len(fines)
		for _, f := range fines {
			if f.Status == core.FinePending || f.Status == core.FineApproved {
				snap.UnpaidFineAmount = snap.UnpaidFineAmount.Add(f.Amount)
			}
		}
	}

	return snap, nil
}

// HasMember reports whether the snapshot found the member record.
func (s *Snapshot) HasMember() bool {
	return s != nil && s.Member != nil
}

// AttendanceRate is attended/held over completed meetings, neutral when the
// group has not met yet.
func (s *Snapshot) AttendanceRate() float64 {
	if s.MeetingsHeld == 0 {
		return 0.5
	}
	return float64(s.MeetingsAttended) / float64(s.MeetingsHeld)
}
