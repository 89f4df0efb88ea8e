package features

import (
	"math"
	"sort"
	"time"

	"chamacredit/internal/core"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func daysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

func monthsBetween(a, b time.Time) float64 {
	return daysBetween(a, b) / 30
}

// monthKey groups timestamps into calendar months for the savings series.
func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

func sortedByTime(contribs []core.Contribution) []core.Contribution {
	out := make([]core.Contribution, len(contribs))
	copy(out, contribs)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func approvedOnly(contribs []core.Contribution) []core.Contribution {
	var out []core.Contribution
	for _, c := range contribs {
		if c.Status == core.ContributionApproved {
			out = append(out, c)
		}
	}
	return out
}
