package features

import (
	"context"

	"chamacredit/internal/core"
)

// Source is the read-only view of the group's records that feature
// extraction and snapshot building run against. The SQLite repository
// implements it in production; tests plug in fakes.
type Source interface {
	MemberByID(ctx context.Context, id int64) (*core.Member, error)
	ContributionsByMember(ctx context.Context, memberID int64) ([]core.Contribution, error)
	LoansByMember(ctx context.Context, memberID int64) ([]core.Loan, error)
	TransactionsByMember(ctx context.Context, memberID int64) ([]core.Transaction, error)
	MeetingsByGroup(ctx context.Context, groupID int64) ([]core.Meeting, error)
	FinesByMember(ctx context.Context, memberID int64) ([]core.Fine, error)
}
