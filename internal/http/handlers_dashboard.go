package http

import (
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

type dashboardResponse struct {
	CurrentMonth  monthSummary      `json:"currentMonth"`
	Accounts      []accountResponse `json:"accounts"`
	TopMerchants  []merchantSummary `json:"topMerchants"`
	MonthlySeries []monthPoint      `json:"monthlySeries"`
	ByCategory    []categorySummary `json:"byCategory"`
}

type monthSummary struct {
	Income           float64 `json:"income"`
	Expenses         float64 `json:"expenses"`
	Balance          float64 `json:"balance"`
	TransactionCount int     `json:"transactionCount"`
}

type merchantSummary struct {
	Merchant string  `json:"merchant"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

type monthPoint struct {
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
}

type categorySummary struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// handleDashboard derives everything from one six-month transaction read:
// current-month totals, the monthly series, current-month category breakdown
// and the top merchants.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	now := time.Now()
	seriesStart := time.Date(now.Year(), now.Month()-5, 1, 0, 0, 0, 0, now.Location())
	currentMonth := now.Format("2006-01")

	records, err := s.repo.ListTransactions(r.Context(), uid, storage.TransactionFilter{From: seriesStart})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "dashboard transaction read failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	accounts, err := s.repo.ListAccounts(r.Context(), uid)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "dashboard account read failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	var income, expenses decimal.Decimal
	txCount := 0
	byMonth := map[string]*monthPoint{}
	byCategory := map[string]decimal.Decimal{}
	type merchantAgg struct {
		total decimal.Decimal
		count int
	}
	byMerchant := map[string]*merchantAgg{}

	for _, rec := range records {
		month := rec.Date.Format("2006-01")
		point, ok := byMonth[month]
		if !ok {
			point = &monthPoint{Month: month}
			byMonth[month] = point
		}

		amount, _ := rec.Amount.Float64()
		switch rec.Type {
		case core.Income:
			point.Income += amount
			if month == currentMonth {
				income = income.Add(rec.Amount)
			}
		case core.Expense:
			abs := rec.Amount.Abs()
			absFloat, _ := abs.Float64()
			point.Expenses += absFloat

			if month == currentMonth {
				expenses = expenses.Add(abs)
				byCategory[rec.CategoryName] = byCategory[rec.CategoryName].Add(abs)
			}
			if rec.Merchant != "" {
				agg, ok := byMerchant[rec.Merchant]
				if !ok {
					agg = &merchantAgg{}
					byMerchant[rec.Merchant] = agg
				}
				agg.total = agg.total.Add(abs)
				agg.count++
			}
		}
		if month == currentMonth {
			txCount++
		}
	}

	series := make([]monthPoint, 0, 6)
	for offset := 5; offset >= 0; offset-- {
		month := time.Date(now.Year(), now.Month()-time.Month(offset), 1, 0, 0, 0, 0, now.Location()).Format("2006-01")
		if point, ok := byMonth[month]; ok {
			series = append(series, *point)
		} else {
			series = append(series, monthPoint{Month: month})
		}
	}

	categories := make([]categorySummary, 0, len(byCategory))
	for name, total := range byCategory {
		t, _ := total.Float64()
		categories = append(categories, categorySummary{Category: name, Total: t})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Total > categories[j].Total })

	merchants := make([]merchantSummary, 0, len(byMerchant))
	for name, agg := range byMerchant {
		t, _ := agg.total.Float64()
		merchants = append(merchants, merchantSummary{Merchant: name, Total: t, Count: agg.count})
	}
	sort.Slice(merchants, func(i, j int) bool { return merchants[i].Total > merchants[j].Total })
	if len(merchants) > 5 {
		merchants = merchants[:5]
	}

	accountsOut := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		accountsOut = append(accountsOut, toAccountResponse(a))
	}

	incomeF, _ := income.Float64()
	expensesF, _ := expenses.Float64()
	writeJSON(w, http.StatusOK, dashboardResponse{
		CurrentMonth: monthSummary{
			Income:           incomeF,
			Expenses:         expensesF,
			Balance:          incomeF - expensesF,
			TransactionCount: txCount,
		},
		Accounts:      accountsOut,
		TopMerchants:  merchants,
		MonthlySeries: series,
		ByCategory:    categories,
	})
}
