package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"chamacredit/internal/core"
	"chamacredit/internal/scoring"
)

// SQLiteRepository backs the scoring engine with a local sqlite database.
// It satisfies the feature extractor's data source and the trainer's store.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &SQLiteRepository{db: db, queries: NewQueries(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) MemberByID(ctx context.Context, id int64) (*core.Member, error) {
	m, err := r.queries.GetMember(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member %d: %w", id, err)
	}
	return &m, nil
}

func (r *SQLiteRepository) ContributionsByMember(ctx context.Context, memberID int64) ([]core.Contribution, error) {
	out, err := r.queries.ListContributionsByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list contributions for member %d: %w", memberID, err)
	}
	return out, nil
}

func (r *SQLiteRepository) LoansByMember(ctx context.Context, memberID int64) ([]core.Loan, error) {
	out, err := r.queries.ListLoansByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list loans for member %d: %w", memberID, err)
	}
	return out, nil
}

func (r *SQLiteRepository) TransactionsByMember(ctx context.Context, memberID int64) ([]core.Transaction, error) {
	out, err := r.queries.ListTransactionsByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list transactions for member %d: %w", memberID, err)
	}
	return out, nil
}

func (r *SQLiteRepository) MeetingsByGroup(ctx context.Context, groupID int64) ([]core.Meeting, error) {
	out, err := r.queries.ListMeetingsByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list meetings for group %d: %w", groupID, err)
	}
	return out, nil
}

func (r *SQLiteRepository) FinesByMember(ctx context.Context, memberID int64) ([]core.Fine, error) {
	out, err := r.queries.ListFinesByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list fines for member %d: %w", memberID, err)
	}
	return out, nil
}

func (r *SQLiteRepository) MemberIDsWithActivity(ctx context.Context) ([]int64, error) {
	out, err := r.queries.ListMemberIDsWithActivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members with activity: %w", err)
	}
	return out, nil
}

// ScoringConfig returns the persisted engine configuration. The table holds
// exactly one row seeded by the migration, so a missing row is an error.
func (r *SQLiteRepository) ScoringConfig(ctx context.Context) (scoring.Config, error) {
	row, err := r.queries.GetScoringConfig(ctx)
	if err != nil {
		return scoring.Config{}, fmt.Errorf("get scoring config: %w", err)
	}
	return scoring.Config{
		ContributionWeight: row.ContributionWeight,
		PaymentWeight:      row.PaymentWeight,
		SavingsWeight:      row.SavingsWeight,
		AgeWeight:          row.AgeWeight,
		ApproveThreshold:   row.ApproveThreshold,
		ReviewThreshold:    row.ReviewThreshold,
		ModelEnabled:       row.ModelEnabled,
	}, nil
}

// UpdateScoringConfig validates before writing, so an invalid update leaves
// the previous configuration in place.
func (r *SQLiteRepository) UpdateScoringConfig(ctx context.Context, cfg scoring.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate scoring config: %w", err)
	}
	err := r.queries.UpdateScoringConfig(ctx, scoringConfigRow{
		ContributionWeight: cfg.ContributionWeight,
		PaymentWeight:      cfg.PaymentWeight,
		SavingsWeight:      cfg.SavingsWeight,
		AgeWeight:          cfg.AgeWeight,
		ApproveThreshold:   cfg.ApproveThreshold,
		ReviewThreshold:    cfg.ReviewThreshold,
		ModelEnabled:       cfg.ModelEnabled,
	})
	if err != nil {
		return fmt.Errorf("update scoring config: %w", err)
	}
	return nil
}
