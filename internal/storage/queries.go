package storage

import (
	"context"
	"database/sql"
	"time"

	"chamacredit/internal/core"
)

// Queries wraps a database handle with typed accessors for the scoring
// engine's read paths. All monetary columns are stored as integer cents.
type Queries struct {
	db *sql.DB
}

func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

const getMember = `
SELECT id, group_id, name, status, occupation, address, national_id,
       savings_balance_cents, created_at
FROM members
WHERE id = ?`

func (q *Queries) GetMember(ctx context.Context, id int64) (core.Member, error) {
	row := q.db.QueryRowContext(ctx, getMember, id)
	var m core.Member
	err := row.Scan(
		&m.ID,
		&m.GroupID,
		&m.Name,
		&m.Status,
		&m.Occupation,
		&m.Address,
		&m.NationalID,
		&m.SavingsBalance.Cents,
		&m.CreatedAt,
	)
	return m, err
}

const listContributionsByMember = `
SELECT id, member_id, amount_cents, status, created_at
FROM contributions
WHERE member_id = ?
ORDER BY created_at`

func (q *Queries) ListContributionsByMember(ctx context.Context, memberID int64) ([]core.Contribution, error) {
	rows, err := q.db.QueryContext(ctx, listContributionsByMember, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Contribution
	for rows.Next() {
		var c core.Contribution
		if err := rows.Scan(&c.ID, &c.MemberID, &c.Amount.Cents, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const listLoansByMember = `
SELECT id, member_id, principal_cents, total_payable_cents, amount_paid_cents,
       remaining_cents, status, duration_months, disbursed_at, next_payment_date
FROM loans
WHERE member_id = ?
ORDER BY id`

func (q *Queries) ListLoansByMember(ctx context.Context, memberID int64) ([]core.Loan, error) {
	rows, err := q.db.QueryContext(ctx, listLoansByMember, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Loan
	for rows.Next() {
		var (
			l           core.Loan
			disbursedAt sql.NullTime
			nextPayment sql.NullTime
		)
		err := rows.Scan(
			&l.ID,
			&l.MemberID,
			&l.Principal.Cents,
			&l.TotalPayable.Cents,
			&l.AmountPaid.Cents,
			&l.Remaining.Cents,
			&l.Status,
			&l.DurationMonths,
			&disbursedAt,
			&nextPayment,
		)
		if err != nil {
			return nil, err
		}
		if disbursedAt.Valid {
			l.DisbursedAt = disbursedAt.Time
		}
		if nextPayment.Valid {
			l.NextPaymentDate = nextPayment.Time
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const listTransactionsByMember = `
SELECT id, member_id, loan_id, type, amount_cents, created_at
FROM transactions
WHERE member_id = ?
ORDER BY created_at`

func (q *Queries) ListTransactionsByMember(ctx context.Context, memberID int64) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByMember, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t      core.Transaction
			loanID sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.MemberID, &loanID, &t.Type, &t.Amount.Cents, &t.CreatedAt); err != nil {
			return nil, err
		}
		if loanID.Valid {
			t.LoanID = loanID.Int64
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const listMeetingsByGroup = `
SELECT id, group_id, scheduled_at, status
FROM meetings
WHERE group_id = ?
ORDER BY scheduled_at`

const listMeetingAttendees = `
SELECT member_id
FROM meeting_attendance
WHERE meeting_id = ?
ORDER BY member_id`

func (q *Queries) ListMeetingsByGroup(ctx context.Context, groupID int64) ([]core.Meeting, error) {
	rows, err := q.db.QueryContext(ctx, listMeetingsByGroup, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Meeting
	for rows.Next() {
		var m core.Meeting
		if err := rows.Scan(&m.ID, &m.GroupID, &m.ScheduledAt, &m.Status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		attendees, err := q.listAttendees(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Attendees = attendees
	}
	return out, nil
}

func (q *Queries) listAttendees(ctx context.Context, meetingID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listMeetingAttendees, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const listFinesByMember = `
SELECT id, member_id, amount_cents, status, created_at
FROM fines
WHERE member_id = ?
ORDER BY created_at`

func (q *Queries) ListFinesByMember(ctx context.Context, memberID int64) ([]core.Fine, error) {
	rows, err := q.db.QueryContext(ctx, listFinesByMember, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Fine
	for rows.Next() {
		var f core.Fine
		if err := rows.Scan(&f.ID, &f.MemberID, &f.Amount.Cents, &f.Status, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const listMemberIDsWithActivity = `
SELECT DISTINCT m.id
FROM members m
WHERE EXISTS (SELECT 1 FROM contributions c WHERE c.member_id = m.id)
   OR EXISTS (SELECT 1 FROM loans l WHERE l.member_id = m.id)
ORDER BY m.id`

func (q *Queries) ListMemberIDsWithActivity(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listMemberIDsWithActivity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type scoringConfigRow struct {
	ContributionWeight float64
	PaymentWeight      float64
	SavingsWeight      float64
	AgeWeight          float64
	ApproveThreshold   float64
	ReviewThreshold    float64
	ModelEnabled       bool
	UpdatedAt          time.Time
}

const getScoringConfig = `
SELECT contribution_weight, payment_weight, savings_weight, age_weight,
       approve_threshold, review_threshold, model_enabled, updated_at
FROM scoring_config
WHERE id = 1`

func (q *Queries) GetScoringConfig(ctx context.Context) (scoringConfigRow, error) {
	row := q.db.QueryRowContext(ctx, getScoringConfig)
	var c scoringConfigRow
	err := row.Scan(
		&c.ContributionWeight,
		&c.PaymentWeight,
		&c.SavingsWeight,
		&c.AgeWeight,
		&c.ApproveThreshold,
		&c.ReviewThreshold,
		&c.ModelEnabled,
		&c.UpdatedAt,
	)
	return c, err
}

const updateScoringConfig = `
UPDATE scoring_config
SET contribution_weight = ?,
    payment_weight = ?,
    savings_weight = ?,
    age_weight = ?,
    approve_threshold = ?,
    review_threshold = ?,
    model_enabled = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = 1`

func (q *Queries) UpdateScoringConfig(ctx context.Context, c scoringConfigRow) error {
	_, err := q.db.ExecContext(ctx, updateScoringConfig,
		c.ContributionWeight,
		c.PaymentWeight,
		c.SavingsWeight,
		c.AgeWeight,
		c.ApproveThreshold,
		c.ReviewThreshold,
		c.ModelEnabled,
	)
	return err
}
