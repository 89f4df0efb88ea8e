package features

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"chamacredit/internal/core"
)

// Feature names shared between extraction, normalization and training. The
// trained model addresses features by these keys; a key absent from a vector
// contributes zero at prediction time rather than erroring.
const (
	FeatContributionCount   = "contributionCount"
	FeatTotalContributions  = "totalContributions"
	FeatAvgContribution     = "avgContribution"
	FeatRecentContributions = "recentContributions"
	FeatPriorContributions  = "priorContributions"
	FeatConsistency         = "contributionConsistency"
	FeatMissedContributions = "missedContributions"
	FeatGrowthTrend         = "contributionGrowthTrend"

	FeatTotalLoans          = "totalLoans"
	FeatCompletedLoans      = "completedLoans"
	FeatActiveLoans         = "activeLoans"
	FeatDefaultedLoans      = "defaultedLoans"
	FeatTotalBorrowed       = "totalBorrowed"
	FeatTotalRepaid         = "totalRepaid"
	FeatOutstandingBalance  = "outstandingBalance"
	FeatRepaymentDiscipline = "repaymentDiscipline"
	FeatOnTimePayments      = "onTimePayments"
	FeatLatePayments        = "latePayments"
	FeatEarlyPayments       = "earlyPayments"
	FeatDefaultRate         = "defaultRate"
	FeatAvgRepaymentSpeed   = "avgRepaymentSpeed"

	FeatTotalSavings      = "totalSavings"
	FeatAvgMonthlySavings = "avgMonthlySavings"
	FeatWithdrawalCount   = "withdrawalCount"
	FeatWithdrawalAmount  = "withdrawalAmount"
	FeatBalanceStability  = "balanceStability"
	FeatSavingsGrowthRate = "savingsGrowthRate"

	FeatMeetingsHeld       = "meetingsHeld"
	FeatMeetingsAttended   = "meetingsAttended"
	FeatAttendanceRate     = "attendanceRate"
	FeatTotalFines         = "totalFines"
	FeatPaidFines          = "paidFines"
	FeatUnpaidFines        = "unpaidFines"
	FeatUnpaidFineAmount   = "unpaidFineAmount"
	FeatFineComplianceRate = "fineComplianceRate"
	FeatParticipationScore = "participationScore"

	FeatHasOccupation    = "hasOccupation"
	FeatHasNationalID    = "hasNationalID"
	FeatHasAddress       = "hasAddress"
	FeatAccountActive    = "accountActive"
	FeatMembershipMonths = "membershipMonths"
)

// Categorical feature values.
const (
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyIrregular = "irregular"

	EngagementHigh   = "high"
	EngagementMedium = "medium"
	EngagementLow    = "low"
)

// On-time window for classifying loan payments against the due date.
const onTimeWindowDays = 7

// Vector is one member's behavioral profile at a point in time. It is
// rebuilt on every request and never persisted.
type Vector struct {
	MemberID              int64
	Values                map[string]float64
	ContributionFrequency string
	EngagementLevel       string
}

// Get returns a feature value, zero when the key is absent.
func (v *Vector) Get(name string) float64 {
	if v == nil || v.Values == nil {
		return 0
	}
	return v.Values[name]
}

// Valid reports whether the vector carries the minimum keys downstream
// scoring depends on. A vector failing this check sends the orchestrator
// down the rule-based path.
func (v *Vector) Valid() bool {
	if v == nil || v.Values == nil {
		return false
	}
	_, ok := v.Values[FeatTotalSavings]
	return ok
}

// Extractor computes feature vectors from the group's raw records. The five
// sub-extractions run as independent concurrent reads; a failure in one
// degrades that feature group to its defaults and never aborts the rest.
type Extractor struct {
	src Source
	now func() time.Time
}

func NewExtractor(src Source) *Extractor {
	return &Extractor{src: src, now: time.Now}
}

// Extract builds the feature vector for one member. It never fails: when the
// member itself cannot be read the safe-default vector is returned, and any
// sub-extraction error is absorbed into that group's defaults.
func (e *Extractor) Extract(ctx context.Context, memberID, groupID int64) *Vector {
	now := e.now()

	member, err := e.src.MemberByID(ctx, memberID)
	if err != nil || member == nil {
		slog.WarnContext(ctx, "Member lookup failed, using safe-default vector",
			"member_id", memberID, "error", err)
		return SafeDefaultVector(memberID)
	}
	if groupID == 0 {
		groupID = member.GroupID
	}

	var (
		contribVals map[string]float64
		frequency   string
		loanVals    map[string]float64
		savingsVals map[string]float64
		engVals     map[string]float64
		engLevel    string
		stabVals    map[string]float64
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		contribs, err := e.src.ContributionsByMember(gctx, memberID)
		if err != nil {
			slog.WarnContext(gctx, "Contribution features degraded to defaults",
				"member_id", memberID, "error", err)
			contribVals, frequency = defaultContributionFeatures()
			return nil
		}
		contribVals, frequency = contributionFeatures(contribs, now)
		return nil
	})

	g.Go(func() error {
		loans, lerr := e.src.LoansByMember(gctx, memberID)
		txs, terr := e.src.TransactionsByMember(gctx, memberID)
		if lerr != nil || terr != nil {
			slog.WarnContext(gctx, "Loan features degraded to defaults",
				"member_id", memberID, "loans_error", lerr, "tx_error", terr)
			loanVals = defaultLoanFeatures()
			return nil
		}
		loanVals = loanFeatures(loans, txs, now)
		return nil
	})

	g.Go(func() error {
		contribs, cerr := e.src.ContributionsByMember(gctx, memberID)
		txs, terr := e.src.TransactionsByMember(gctx, memberID)
		if cerr != nil || terr != nil {
			slog.WarnContext(gctx, "Savings features degraded to defaults",
				"member_id", memberID, "contrib_error", cerr, "tx_error", terr)
			savingsVals = defaultSavingsFeatures()
			return nil
		}
		savingsVals = savingsFeatures(contribs, txs)
		return nil
	})

	g.Go(func() error {
		meetings, merr := e.src.MeetingsByGroup(gctx, groupID)
		fines, ferr := e.src.FinesByMember(gctx, memberID)
		contribs, cerr := e.src.ContributionsByMember(gctx, memberID)
		if merr != nil || ferr != nil || cerr != nil {
			slog.WarnContext(gctx, "Engagement features degraded to defaults",
				"member_id", memberID, "meetings_error", merr,
				"fines_error", ferr, "contrib_error", cerr)
			engVals, engLevel = defaultEngagementFeatures()
			return nil
		}
		engVals, engLevel = engagementFeatures(memberID, meetings, fines, contribs)
		return nil
	})

	g.Go(func() error {
		stabVals = stabilityFeatures(member, now)
		return nil
	})

	// Sub-extractions absorb their own failures, so Wait always returns nil.
	_ = g.Wait()

	values := make(map[string]float64, 48)
	for _, group := range []map[string]float64{contribVals, loanVals, savingsVals, engVals, stabVals} {
		for k, v := range group {
			values[k] = v
		}
	}

	return &Vector{
		MemberID:              memberID,
		Values:                values,
		ContributionFrequency: frequency,
		EngagementLevel:       engLevel,
	}
}

// SafeDefaultVector is the floor the extractor degrades to when even the
// member record is unavailable: zero activity, neutral behavioral signals.
func SafeDefaultVector(memberID int64) *Vector {
	values := make(map[string]float64, 48)
	contribVals, frequency := defaultContributionFeatures()
	engVals, engLevel := defaultEngagementFeatures()
	for _, group := range []map[string]float64{
		contribVals, defaultLoanFeatures(), defaultSavingsFeatures(), engVals,
	} {
		for k, v := range group {
			values[k] = v
		}
	}
	values[FeatHasOccupation] = 0
	values[FeatHasNationalID] = 0
	values[FeatHasAddress] = 0
	values[FeatAccountActive] = 0
	values[FeatMembershipMonths] = 0
	return &Vector{
		MemberID:              memberID,
		Values:                values,
		ContributionFrequency: frequency,
		EngagementLevel:       engLevel,
	}
}

func contributionFeatures(contribs []core.Contribution, now time.Time) (map[string]float64, string) {
	approved := sortedByTime(approvedOnly(contribs))

	vals := map[string]float64{
		FeatContributionCount:   float64(len(approved)),
		FeatTotalContributions:  0,
		FeatAvgContribution:     0,
		FeatRecentContributions: 0,
		FeatPriorContributions:  0,
		FeatConsistency:         0.5,
		FeatMissedContributions: 0,
		FeatGrowthTrend:         0,
	}
	if len(approved) == 0 {
		return vals, FrequencyIrregular
	}

	var total float64
	recentCutoff := now.AddDate(0, -6, 0)
	priorCutoff := now.AddDate(0, -12, 0)
	for _, c := range approved {
		amount := c.Amount.Units()
		total += amount
		if c.CreatedAt.After(recentCutoff) {
			vals[FeatRecentContributions] += amount
		} else if c.CreatedAt.After(priorCutoff) {
			vals[FeatPriorContributions] += amount
		}
	}
	vals[FeatTotalContributions] = total
	vals[FeatAvgContribution] = total / float64(len(approved))

	var gaps []float64
	for i := 1; i < len(approved); i++ {
		gaps = append(gaps, daysBetween(approved[i-1].CreatedAt, approved[i].CreatedAt))
	}

	frequency := FrequencyIrregular
	expectedInterval := 30.0
	if len(gaps) > 0 {
		switch avgGap := mean(gaps); {
		case avgGap <= 10:
			frequency = FrequencyWeekly
			expectedInterval = 7
		case avgGap <= 35:
			frequency = FrequencyMonthly
			expectedInterval = 30
		}
	}

	// Consistency: share of gaps within 30% of the expected cadence. A
	// single contribution has no cadence yet and stays neutral.
	if len(gaps) > 0 {
		within := 0
		for _, gap := range gaps {
			if gap >= expectedInterval*0.7 && gap <= expectedInterval*1.3 {
				within++
			}
		}
		vals[FeatConsistency] = float64(within) / float64(len(gaps))
	}

	elapsed := daysBetween(approved[0].CreatedAt, now)
	if elapsed > 0 {
		expectedCount := elapsed/expectedInterval + 1
		if missed := expectedCount - float64(len(approved)); missed > 0 {
			vals[FeatMissedContributions] = float64(int(missed))
		}
	}

	if len(approved) >= 2 {
		half := len(approved) / 2
		var firstHalf, secondHalf []float64
		for i, c := range approved {
			if i < half {
				firstHalf = append(firstHalf, c.Amount.Units())
			} else {
				secondHalf = append(secondHalf, c.Amount.Units())
			}
		}
		if firstMean := mean(firstHalf); firstMean > 0 {
			vals[FeatGrowthTrend] = clamp((mean(secondHalf)-firstMean)/firstMean, -1, 1)
		}
	}

	return vals, frequency
}

func defaultContributionFeatures() (map[string]float64, string) {
	vals, _ := contributionFeatures(nil, time.Time{})
	return vals, FrequencyIrregular
}

func loanFeatures(loans []core.Loan, txs []core.Transaction, now time.Time) map[string]float64 {
	vals := defaultLoanFeatures()
	if len(loans) == 0 {
		return vals
	}

	byID := make(map[int64]core.Loan, len(loans))
	for _, l := range loans {
		byID[l.ID] = l
		switch l.Status {
		case core.LoanCompleted:
			vals[FeatCompletedLoans]++
		case core.LoanDefaulted:
			vals[FeatDefaultedLoans]++
		case core.LoanDisbursed, core.LoanActive:
			vals[FeatActiveLoans]++
		}
		// Only money that actually went out counts toward exposure.
		switch l.Status {
		case core.LoanDisbursed, core.LoanActive, core.LoanCompleted, core.LoanDefaulted:
			vals[FeatTotalBorrowed] += l.Principal.Units()
			vals[FeatTotalRepaid] += l.AmountPaid.Units()
		}
		if l.Status.Open() || l.Status == core.LoanDefaulted {
			vals[FeatOutstandingBalance] += l.Remaining.Units()
		}
	}
	vals[FeatTotalLoans] = float64(len(loans))
	vals[FeatDefaultRate] = vals[FeatDefaultedLoans] / vals[FeatTotalLoans]

	lastPayment := make(map[int64]time.Time)
	for _, tx := range txs {
		if tx.Type != core.TxLoanPayment || tx.LoanID == 0 {
			continue
		}
		loan, ok := byID[tx.LoanID]
		if !ok || loan.NextPaymentDate.IsZero() {
			continue
		}
		if tx.CreatedAt.After(lastPayment[tx.LoanID]) {
			lastPayment[tx.LoanID] = tx.CreatedAt
		}
		switch delta := daysBetween(loan.NextPaymentDate, tx.CreatedAt); {
		case delta > onTimeWindowDays:
			vals[FeatLatePayments]++
		case delta < -onTimeWindowDays:
			vals[FeatEarlyPayments]++
		default:
			vals[FeatOnTimePayments]++
		}
	}
	if classified := vals[FeatOnTimePayments] + vals[FeatEarlyPayments] + vals[FeatLatePayments]; classified > 0 {
		vals[FeatRepaymentDiscipline] = (vals[FeatOnTimePayments] + vals[FeatEarlyPayments]) / classified
	}

	var speeds []float64
	for _, l := range loans {
		if l.Status != core.LoanCompleted || l.DurationMonths <= 0 || l.DisbursedAt.IsZero() {
			continue
		}
		end := lastPayment[l.ID]
		if end.IsZero() {
			end = now
		}
		actual := monthsBetween(l.DisbursedAt, end)
		if actual < 0.25 {
			actual = 0.25
		}
		speeds = append(speeds, float64(l.DurationMonths)/actual)
	}
	if len(speeds) > 0 {
		vals[FeatAvgRepaymentSpeed] = mean(speeds)
	}

	return vals
}

func defaultLoanFeatures() map[string]float64 {
	return map[string]float64{
		FeatTotalLoans:          0,
		FeatCompletedLoans:      0,
		FeatActiveLoans:         0,
		FeatDefaultedLoans:      0,
		FeatTotalBorrowed:       0,
		FeatTotalRepaid:         0,
		FeatOutstandingBalance:  0,
		FeatRepaymentDiscipline: 0.5,
		FeatOnTimePayments:      0,
		FeatLatePayments:        0,
		FeatEarlyPayments:       0,
		FeatDefaultRate:         0,
		FeatAvgRepaymentSpeed:   1,
	}
}

func savingsFeatures(contribs []core.Contribution, txs []core.Transaction) map[string]float64 {
	vals := defaultSavingsFeatures()
	approved := sortedByTime(approvedOnly(contribs))

	type event struct {
		at     time.Time
		amount float64
	}
	var events []event
	var total float64
	monthly := make(map[string]float64)
	for _, c := range approved {
		amount := c.Amount.Units()
		total += amount
		monthly[monthKey(c.CreatedAt)] += amount
		events = append(events, event{c.CreatedAt, amount})
	}
	vals[FeatTotalSavings] = total

	for _, tx := range txs {
		if tx.Type != core.TxLoanDisbursement && tx.Type != core.TxFee {
			continue
		}
		vals[FeatWithdrawalCount]++
		vals[FeatWithdrawalAmount] += tx.Amount.Units()
		events = append(events, event{tx.CreatedAt, -tx.Amount.Units()})
	}

	if len(monthly) > 0 {
		vals[FeatAvgMonthlySavings] = total / float64(len(monthly))
	}

	// Running balance reconstructed in chronological order; stability is
	// penalized by variance relative to the mean balance.
	if len(events) >= 2 {
		sort.Slice(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })
		var balance float64
		balances := make([]float64, 0, len(events))
		for _, ev := range events {
			balance += ev.amount
			balances = append(balances, balance)
		}
		if m := mean(balances); m > 0 {
			vals[FeatBalanceStability] = clamp(1-stddev(balances)/m, 0, 1)
		} else {
			vals[FeatBalanceStability] = 0
		}
	}

	if len(monthly) >= 2 {
		months := make([]string, 0, len(monthly))
		for k := range monthly {
			months = append(months, k)
		}
		sort.Strings(months)
		var changes []float64
		for i := 1; i < len(months); i++ {
			prev := monthly[months[i-1]]
			if prev > 0 {
				changes = append(changes, (monthly[months[i]]-prev)/prev)
			}
		}
		if len(changes) > 0 {
			vals[FeatSavingsGrowthRate] = mean(changes)
		}
	}

	return vals
}

func defaultSavingsFeatures() map[string]float64 {
	return map[string]float64{
		FeatTotalSavings:      0,
		FeatAvgMonthlySavings: 0,
		FeatWithdrawalCount:   0,
		FeatWithdrawalAmount:  0,
		FeatBalanceStability:  0.5,
		FeatSavingsGrowthRate: 0,
	}
}

func engagementFeatures(memberID int64, meetings []core.Meeting, fines []core.Fine, contribs []core.Contribution) (map[string]float64, string) {
	vals, _ := defaultEngagementFeatures()

	var held, attended float64
	for _, m := range meetings {
		if m.Status != core.MeetingCompleted {
			continue
		}
		held++
		if m.Attended(memberID) {
			attended++
		}
	}
	vals[FeatMeetingsHeld] = held
	vals[FeatMeetingsAttended] = attended
	attendanceRate := 0.5
	if held > 0 {
		attendanceRate = attended / held
	}
	vals[FeatAttendanceRate] = attendanceRate

	var paid, unpaid, unpaidAmount float64
	for _, f := range fines {
		switch f.Status {
		case core.FinePaid:
			paid++
		case core.FinePending, core.FineApproved:
			unpaid++
			unpaidAmount += f.Amount.Units()
		}
	}
	vals[FeatTotalFines] = float64(len(fines))
	vals[FeatPaidFines] = paid
	vals[FeatUnpaidFines] = unpaid
	vals[FeatUnpaidFineAmount] = unpaidAmount
	if len(fines) > 0 {
		vals[FeatFineComplianceRate] = paid / float64(len(fines))
	}

	contributionCount := float64(len(approvedOnly(contribs)))
	participation := 0.5*attendanceRate + 0.5*clamp(contributionCount/24, 0, 1)
	vals[FeatParticipationScore] = participation

	level := EngagementLow
	switch {
	case participation >= 0.8 && attendanceRate >= 0.8 && len(fines) == 0:
		level = EngagementHigh
	case participation >= 0.5 && attendanceRate >= 0.5 && len(fines) <= 2:
		level = EngagementMedium
	}

	return vals, level
}

func defaultEngagementFeatures() (map[string]float64, string) {
	return map[string]float64{
		FeatMeetingsHeld:       0,
		FeatMeetingsAttended:   0,
		FeatAttendanceRate:     0.5,
		FeatTotalFines:         0,
		FeatPaidFines:          0,
		FeatUnpaidFines:        0,
		FeatUnpaidFineAmount:   0,
		FeatFineComplianceRate: 1,
		FeatParticipationScore: 0.25,
	}, EngagementLow
}

func stabilityFeatures(member *core.Member, now time.Time) map[string]float64 {
	vals := map[string]float64{
		FeatHasOccupation:    0,
		FeatHasNationalID:    0,
		FeatHasAddress:       0,
		FeatAccountActive:    0,
		FeatMembershipMonths: float64(member.MembershipMonths(now)),
	}
	if member.HasOccupation() {
		vals[FeatHasOccupation] = 1
	}
	if member.HasNationalID() {
		vals[FeatHasNationalID] = 1
	}
	if member.HasAddress() {
		vals[FeatHasAddress] = 1
	}
	if member.Status == core.MemberActive {
		vals[FeatAccountActive] = 1
	}
	return vals
}
