package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finanzas/internal/core"
)

// Store is the narrow read interface the aggregator needs from the
// persistence layer.
type Store interface {
	// TransactionsSince returns the user's transactions dated on or after
	// since, joined with their category names.
	TransactionsSince(ctx context.Context, userID string, since time.Time) ([]Transaction, error)
	// BudgetsForMonth returns the user's budgets for the given YYYY-MM month,
	// joined with their category names.
	BudgetsForMonth(ctx context.Context, userID, month string) ([]BudgetEntry, error)
}

// Aggregator computes the analysis input window: the trailing three calendar
// months of transactions plus the current month's budgets.
type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

const minTransactions = 3

// Aggregate reads the window and derives totals, per-category expense
// breakdown and the monthly series. Fails with core.ErrInsufficientData when
// fewer than three transactions exist; callers reject the request with a 400
// before any streaming starts. Calendar-month boundaries use the server's
// local timezone, matching how the rest of the app buckets months.
func (a *Aggregator) Aggregate(ctx context.Context, userID string, now time.Time) (*Aggregates, error) {
	windowStart := time.Date(now.Year(), now.Month()-2, 1, 0, 0, 0, 0, now.Location())
	currentMonth := now.Format("2006-01")

	var (
		transactions []Transaction
		budgets      []BudgetEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		transactions, err = a.store.TransactionsSince(gctx, userID, windowStart)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		budgets, err = a.store.BudgetsForMonth(gctx, userID, currentMonth)
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(transactions) < minTransactions {
		return nil, core.ErrInsufficientData
	}

	agg := &Aggregates{
		TransactionCount: len(transactions),
		Budgets:          budgets,
	}

	byCategory := make(map[string]*CategorySpend)
	byMonth := make(map[string]*MonthlyFlow)

	for _, t := range transactions {
		month := t.Date.Format("2006-01")
		flow, ok := byMonth[month]
		if !ok {
			flow = &MonthlyFlow{Month: month}
			byMonth[month] = flow
		}

		switch t.Type {
		case core.Income:
			agg.TotalIncome = agg.TotalIncome.Add(t.Amount)
			flow.Income = flow.Income.Add(t.Amount)
		case core.Expense:
			abs := t.Amount.Abs()
			agg.TotalExpenses = agg.TotalExpenses.Add(abs)
			flow.Expenses = flow.Expenses.Add(abs)

			spend, ok := byCategory[t.Category]
			if !ok {
				spend = &CategorySpend{Category: t.Category}
				byCategory[t.Category] = spend
			}
			spend.Total = spend.Total.Add(abs)
			spend.Count++
		}
	}

	for _, spend := range byCategory {
		agg.ByCategory = append(agg.ByCategory, *spend)
	}
	sort.Slice(agg.ByCategory, func(i, j int) bool {
		return agg.ByCategory[i].Total.GreaterThan(agg.ByCategory[j].Total)
	})

	// Fixed three-month series, oldest first, including empty months.
	for offset := 2; offset >= 0; offset-- {
		month := time.Date(now.Year(), now.Month()-time.Month(offset), 1, 0, 0, 0, 0, now.Location()).Format("2006-01")
		if flow, ok := byMonth[month]; ok {
			agg.Monthly = append(agg.Monthly, *flow)
		} else {
			agg.Monthly = append(agg.Monthly, MonthlyFlow{Month: month})
		}
	}

	return agg, nil
}

// Balance is the window's net position.
func (a *Aggregates) Balance() decimal.Decimal {
	return a.TotalIncome.Sub(a.TotalExpenses)
}
