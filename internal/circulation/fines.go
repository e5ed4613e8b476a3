// internal/circulation/fines.go
package circulation

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// daysOverdue counts whole days elapsed past due; zero when not yet due.
func daysOverdue(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	return int(now.Sub(due) / day)
}

func (p Policy) fineFor(days int) float64 {
	if days <= 0 {
		return 0
	}
	return roundCents(float64(days) * p.FinePerDay)
}

// accruing is the fine an unreturned loan would carry if returned at now.
func (p Policy) accruing(l *Loan, now time.Time) float64 {
	if l.Returned() {
		return 0
	}
	return p.fineFor(daysOverdue(l.DueAt, now))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
