// internal/circulation/reports.go
package circulation

import (
	"iter"
	"math"
	"sort"
	"strings"
	"time"
)

const unknownTitle = "unknown title"

func (s *service) titleOf(itemID string) string {
	item, err := s.catalog.GetItem(itemID)
	if err != nil {
		return unknownTitle
	}
	return item.Title
}

// MostBorrowedItems ranks items by loans ever issued against them. Ties keep
// the order in which each item was first lent.
func (s *service) MostBorrowedItems(n int) []ItemRanking {
	if n <= 0 {
		return []ItemRanking{}
	}

	counts := make(map[string]int)
	var firstSeen []string
	for _, loanID := range s.loanIDs {
		itemID := s.loans[loanID].ItemID
		if counts[itemID] == 0 {
			firstSeen = append(firstSeen, itemID)
		}
		counts[itemID]++
	}

	ranking := make([]ItemRanking, 0, len(firstSeen))
	for _, itemID := range firstSeen {
		ranking = append(ranking, ItemRanking{ItemID: itemID, Title: s.titleOf(itemID), Loans: counts[itemID]})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Loans > ranking[j].Loans
	})

	return ranking[:min(n, len(ranking))]
}

// MostActiveMembers ranks members by the length of their loan history. Ties
// are ordered by member id.
func (s *service) MostActiveMembers(n int) []MemberRanking {
	if n <= 0 {
		return []MemberRanking{}
	}

	ranking := []MemberRanking{}
	for m := range s.members.Members() {
		ranking = append(ranking, MemberRanking{MemberID: m.ID, Name: m.Name, Loans: len(m.History)})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Loans > ranking[j].Loans
	})

	return ranking[:min(n, len(ranking))]
}

// CategoryStatistics summarises the items of one category (case-insensitive).
func (s *service) CategoryStatistics(category string) CategoryStats {
	stats := CategoryStats{Category: category}

	perItem := make(map[string]int)
	var itemIDs []string
	titles := make(map[string]string)
	for item := range s.catalog.Items() {
		if !strings.EqualFold(item.Category, category) {
			continue
		}
		stats.TotalItems++
		stats.TotalCopies += item.TotalCopies
		stats.CopiesOnLoan += item.OnLoan()
		perItem[item.ID] = 0
		itemIDs = append(itemIDs, item.ID)
		titles[item.ID] = item.Title
	}
	if stats.TotalItems == 0 {
		return stats
	}

	for _, loanID := range s.loanIDs {
		itemID := s.loans[loanID].ItemID
		if _, ok := perItem[itemID]; ok {
			perItem[itemID]++
			stats.Loans++
		}
	}

	if stats.TotalCopies > 0 {
		stats.LoanRate = math.Round(float64(stats.Loans)/float64(stats.TotalCopies)*10000) / 10000
	}

	best := itemIDs[0]
	for _, id := range itemIDs[1:] {
		if perItem[id] > perItem[best] {
			best = id
		}
	}
	stats.MostLoanedID = best
	stats.MostLoanedTitle = titles[best]
	stats.MostLoanedCount = perItem[best]

	return stats
}

// OverdueLoans yields every unreturned loan past its due date, with the fine
// accrued so far.
func (s *service) OverdueLoans() iter.Seq[OverdueLoan] {
	return func(yield func(OverdueLoan) bool) {
		now := s.clock.Now()
		for _, loanID := range s.loanIDs {
			loan := s.loans[loanID]
			if loan.StateAt(now) != StateOverdue {
				continue
			}
			days := daysOverdue(loan.DueAt, now)
			row := OverdueLoan{
				LoanID:      loan.ID,
				ItemID:      loan.ItemID,
				Title:       s.titleOf(loan.ItemID),
				MemberID:    loan.MemberID,
				DueAt:       loan.DueAt,
				DaysOverdue: days,
				FineToDate:  s.policy.fineFor(days),
			}
			if !yield(row) {
				return
			}
		}
	}
}

// FinancialReport totals fines of loans returned within [start, end]; nil
// bounds are open. Fines still accruing on active loans are added only when
// end is absent or not before the current moment. The average is taken over
// every counted loan, fined or not.
func (s *service) FinancialReport(start, end *time.Time) FinancialReport {
	now := s.clock.Now()
	report := FinancialReport{Start: start, End: end}

	var total, paid, unpaid float64
	for _, loanID := range s.loanIDs {
		loan := s.loans[loanID]
		if !loan.Returned() || !within(*loan.ReturnedAt, start, end) {
			continue
		}
		total += loan.Fine
		report.CountedLoans++
		if loan.Paid {
			paid += loan.Fine
		} else {
			unpaid += loan.Fine
		}
		if loan.Fine > 0 {
			report.FinedLoans++
		}
	}

	if end == nil || !now.After(*end) {
		report.IncludesAccruing = true
		for _, loanID := range s.loanIDs {
			fine := s.policy.accruing(s.loans[loanID], now)
			if fine <= 0 {
				continue
			}
			total += fine
			unpaid += fine
			report.CountedLoans++
			report.FinedLoans++
		}
	}

	report.TotalFines = roundCents(total)
	report.PaidFines = roundCents(paid)
	report.UnpaidFines = roundCents(unpaid)
	if report.CountedLoans > 0 {
		report.AverageFine = roundCents(total / float64(report.CountedLoans))
	}
	return report
}

func within(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

// Reconcile checks that every item's lent-out copies match its active loans.
func (s *service) Reconcile() []Discrepancy {
	active := make(map[string]int)
	for _, loanID := range s.loanIDs {
		if loan := s.loans[loanID]; !loan.Returned() {
			active[loan.ItemID]++
		}
	}

	discrepancies := []Discrepancy{}
	for item := range s.catalog.Items() {
		if item.OnLoan() != active[item.ID] {
			discrepancies = append(discrepancies, Discrepancy{
				ItemID:      item.ID,
				OnLoan:      item.OnLoan(),
				ActiveLoans: active[item.ID],
			})
		}
	}
	return discrepancies
}
