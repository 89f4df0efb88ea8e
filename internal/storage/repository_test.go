package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"chamacredit/internal/core"
	"chamacredit/internal/scoring"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedMember(t *testing.T, repo *SQLiteRepository) int64 {
	t.Helper()
	res, err := repo.db.Exec(`
		INSERT INTO members (group_id, name, status, occupation, national_id, created_at)
		VALUES (1, 'Test Member', 'active', 'farmer', '1234', ?)`,
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("seed member: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("member id: %v", err)
	}
	return id
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	repo.Close()

	// Reopening runs migrations again against the migrated schema.
	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	repo.Close()
}

func TestMemberByID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id := seedMember(t, repo)

	member, err := repo.MemberByID(ctx, id)
	if err != nil {
		t.Fatalf("MemberByID: %v", err)
	}
	if member.Name != "Test Member" {
		t.Errorf("name = %q, want Test Member", member.Name)
	}
	if member.GroupID != 1 {
		t.Errorf("group = %d, want 1", member.GroupID)
	}

	if _, err := repo.MemberByID(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing member error = %v, want ErrNotFound", err)
	}
}

func TestContributionsOrderedByTime(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := seedMember(t, repo)

	times := []time.Time{
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, at := range times {
		if _, err := repo.db.Exec(`
			INSERT INTO contributions (member_id, amount_cents, status, created_at)
			VALUES (?, 100000, 'approved', ?)`, id, at); err != nil {
			t.Fatalf("seed contribution: %v", err)
		}
	}

	contribs, err := repo.ContributionsByMember(ctx, id)
	if err != nil {
		t.Fatalf("ContributionsByMember: %v", err)
	}
	if len(contribs) != 3 {
		t.Fatalf("got %d contributions, want 3", len(contribs))
	}
	for i := 1; i < len(contribs); i++ {
		if contribs[i].CreatedAt.Before(contribs[i-1].CreatedAt) {
			t.Errorf("contributions not in chronological order at %d", i)
		}
	}
	if contribs[0].Amount != core.NewMoneyFromUnits(1000) {
		t.Errorf("amount = %v, want 1000 units", contribs[0].Amount)
	}
}

func TestLoansNullableColumns(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := seedMember(t, repo)

	if _, err := repo.db.Exec(`
		INSERT INTO loans (member_id, principal_cents, remaining_cents, status, duration_months)
		VALUES (?, 5000000, 5000000, 'pending', 12)`, id); err != nil {
		t.Fatalf("seed loan: %v", err)
	}

	loans, err := repo.LoansByMember(ctx, id)
	if err != nil {
		t.Fatalf("LoansByMember: %v", err)
	}
	if len(loans) != 1 {
		t.Fatalf("got %d loans, want 1", len(loans))
	}
	if !loans[0].DisbursedAt.IsZero() {
		t.Errorf("undisbursed loan has disbursement time %v", loans[0].DisbursedAt)
	}
	if !loans[0].NextPaymentDate.IsZero() {
		t.Errorf("undisbursed loan has next payment date %v", loans[0].NextPaymentDate)
	}
}

func TestMeetingsIncludeAttendees(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := seedMember(t, repo)

	res, err := repo.db.Exec(`
		INSERT INTO meetings (group_id, scheduled_at, status)
		VALUES (1, ?, 'completed')`, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("seed meeting: %v", err)
	}
	meetingID, _ := res.LastInsertId()
	if _, err := repo.db.Exec(`
		INSERT INTO meeting_attendance (meeting_id, member_id) VALUES (?, ?)`,
		meetingID, id); err != nil {
		t.Fatalf("seed attendance: %v", err)
	}

	meetings, err := repo.MeetingsByGroup(ctx, 1)
	if err != nil {
		t.Fatalf("MeetingsByGroup: %v", err)
	}
	if len(meetings) != 1 {
		t.Fatalf("got %d meetings, want 1", len(meetings))
	}
	if !meetings[0].Attended(id) {
		t.Errorf("member %d not listed in attendees %v", id, meetings[0].Attendees)
	}
}

func TestMemberIDsWithActivity(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	active := seedMember(t, repo)
	seedMember(t, repo) // no contributions or loans

	if _, err := repo.db.Exec(`
		INSERT INTO contributions (member_id, amount_cents, status) VALUES (?, 100000, 'approved')`,
		active); err != nil {
		t.Fatalf("seed contribution: %v", err)
	}

	ids, err := repo.MemberIDsWithActivity(ctx)
	if err != nil {
		t.Fatalf("MemberIDsWithActivity: %v", err)
	}
	if len(ids) != 1 || ids[0] != active {
		t.Errorf("ids = %v, want [%d]", ids, active)
	}
}

func TestScoringConfigRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// Migration seeds the defaults.
	cfg, err := repo.ScoringConfig(ctx)
	if err != nil {
		t.Fatalf("ScoringConfig: %v", err)
	}
	if cfg != scoring.DefaultConfig() {
		t.Errorf("seeded config = %+v, want defaults", cfg)
	}

	cfg.ContributionWeight = 50
	cfg.SavingsWeight = 10
	cfg.ApproveThreshold = 75
	if err := repo.UpdateScoringConfig(ctx, cfg); err != nil {
		t.Fatalf("UpdateScoringConfig: %v", err)
	}

	got, err := repo.ScoringConfig(ctx)
	if err != nil {
		t.Fatalf("ScoringConfig after update: %v", err)
	}
	if got != cfg {
		t.Errorf("config = %+v, want %+v", got, cfg)
	}
}

func TestUpdateScoringConfigRejectsInvalid(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	before, err := repo.ScoringConfig(ctx)
	if err != nil {
		t.Fatalf("ScoringConfig: %v", err)
	}

	bad := before
	bad.AgeWeight = 50 // weights no longer sum to 100
	if err := repo.UpdateScoringConfig(ctx, bad); err == nil {
		t.Fatal("expected validation error")
	}

	after, err := repo.ScoringConfig(ctx)
	if err != nil {
		t.Fatalf("ScoringConfig after rejected update: %v", err)
	}
	if after != before {
		t.Errorf("config changed after rejected update: %+v vs %+v", after, before)
	}
}

func TestQueriesEmptyResults(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := seedMember(t, repo)

	if contribs, err := repo.ContributionsByMember(ctx, id); err != nil || len(contribs) != 0 {
		t.Errorf("contributions = %v, %v; want empty, nil", contribs, err)
	}
	if loans, err := repo.LoansByMember(ctx, id); err != nil || len(loans) != 0 {
		t.Errorf("loans = %v, %v; want empty, nil", loans, err)
	}
	if fines, err := repo.FinesByMember(ctx, id); err != nil || len(fines) != 0 {
		t.Errorf("fines = %v, %v; want empty, nil", fines, err)
	}

	var count int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil && err != sql.ErrNoRows {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 0 {
		t.Errorf("transactions = %d, want 0", count)
	}
}
