package main

import (
	"fmt"
	"strings"
	"sync"
)

type expense struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Merchant    string  `json:"merchant"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
}

type donation struct {
	ID            string  `json:"id"`
	Date          string  `json:"date"`
	Organization  string  `json:"organization"`
	Description   string  `json:"description,omitempty"`
	Amount        float64 `json:"amount"`
	TaxDeductible bool    `json:"tax_deductible"`
}

// ledger is the in-memory backing store for the demo servers.
type ledger struct {
	mu        sync.Mutex
	expenses  []expense
	donations []donation
}

func seedLedger() *ledger {
	return &ledger{
		expenses: []expense{
			{ID: "exp-001", Date: "2026-07-02", Merchant: "CVS Pharmacy", Description: "prescription refill", Amount: 24.99, Status: "unreimbursed"},
			{ID: "exp-002", Date: "2026-07-18", Merchant: "Bright Smile Dental", Description: "cleaning copay", Amount: 12.00, Status: "unreimbursed"},
			{ID: "exp-003", Date: "2026-08-09", Merchant: "QuickCare Clinic", Description: "urgent care copay", Amount: 5.51, Status: "unreimbursed"},
			{ID: "exp-004", Date: "2026-05-30", Merchant: "VisionWorks", Description: "contact lenses", Amount: 89.00, Status: "reimbursed"},
		},
		donations: []donation{
			{ID: "don-001", Date: "2026-01-15", Organization: "Food Bank", Amount: 150, TaxDeductible: true},
			{ID: "don-002", Date: "2026-02-20", Organization: "Red Cross", Amount: 300, TaxDeductible: true},
			{ID: "don-003", Date: "2026-04-10", Organization: "School Fundraiser", Description: "raffle tickets", Amount: 150, TaxDeductible: false},
			{ID: "don-004", Date: "2026-06-01", Organization: "Animal Shelter", Amount: 400, TaxDeductible: true},
			{ID: "don-005", Date: "2026-07-04", Organization: "Community Theater", Amount: 250, TaxDeductible: true},
		},
	}
}

func (l *ledger) unreimbursedBalance() (total float64, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.expenses {
		if e.Status == "unreimbursed" {
			total += e.Amount
			count++
		}
	}
	return total, count
}

func (l *ledger) readExpenses(status string, limit int) []expense {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []expense
	for _, e := range l.expenses {
		if status != "" && status != "all" && e.Status != status {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (l *ledger) updateExpenseStatus(id, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.expenses {
		if l.expenses[i].ID == id {
			l.expenses[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("no expense with id %q", id)
}

func (l *ledger) findDuplicateExpenses(merchant string, amount float64, date string) []expense {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []expense
	for _, e := range l.expenses {
		if !strings.EqualFold(e.Merchant, merchant) || e.Amount != amount {
			continue
		}
		if date != "" && e.Date != date {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (l *ledger) appendExpense(e expense) expense {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.ID = fmt.Sprintf("exp-%03d", len(l.expenses)+1)
	if e.Status == "" {
		e.Status = "unreimbursed"
	}
	l.expenses = append(l.expenses, e)
	return e
}

type charitableSummary struct {
	TotalAmount        float64            `json:"total_amount"`
	TaxDeductibleTotal float64            `json:"tax_deductible_total"`
	NonDeductibleTotal float64            `json:"non_deductible_total"`
	TotalCount         int                `json:"total_count"`
	ByOrganization     map[string]float64 `json:"by_organization"`
	ByYear             map[string]float64 `json:"by_year"`
}

func (l *ledger) summarizeDonations(year int, deductibleOnly bool) charitableSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	sum := charitableSummary{
		ByOrganization: make(map[string]float64),
		ByYear:         make(map[string]float64),
	}
	for _, d := range l.donations {
		if year > 0 && !strings.HasPrefix(d.Date, fmt.Sprintf("%04d-", year)) {
			continue
		}
		if deductibleOnly && !d.TaxDeductible {
			continue
		}
		sum.TotalAmount += d.Amount
		sum.TotalCount++
		if d.TaxDeductible {
			sum.TaxDeductibleTotal += d.Amount
		} else {
			sum.NonDeductibleTotal += d.Amount
		}
		sum.ByOrganization[d.Organization] += d.Amount
		if len(d.Date) >= 4 {
			sum.ByYear[d.Date[:4]] += d.Amount
		}
	}
	return sum
}

func (l *ledger) readDonations(year int, organization string, limit int) []donation {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []donation
	for _, d := range l.donations {
		if year > 0 && !strings.HasPrefix(d.Date, fmt.Sprintf("%04d-", year)) {
			continue
		}
		if organization != "" && !strings.EqualFold(d.Organization, organization) {
			continue
		}
		out = append(out, d)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (l *ledger) findDuplicateDonations(organization string, amount float64, date string) []donation {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []donation
	for _, d := range l.donations {
		if !strings.EqualFold(d.Organization, organization) || d.Amount != amount {
			continue
		}
		if date != "" && d.Date != date {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (l *ledger) appendDonation(d donation) donation {
	l.mu.Lock()
	defer l.mu.Unlock()
	d.ID = fmt.Sprintf("don-%03d", len(l.donations)+1)
	l.donations = append(l.donations, d)
	return d
}
