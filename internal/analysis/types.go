package analysis

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
)

// Insight is one observation the model makes about the user's spending.
type Insight struct {
	Type        string    `json:"type"` // budget_exceeded, recurring_expenses, spending_spike, category_analysis
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Impact      string    `json:"impact"` // high, medium, low
	Category    string    `json:"category,omitempty"`
	Amount      JSONFloat `json:"amount,omitempty"`
}

// Recommendation is one actionable saving suggestion.
type Recommendation struct {
	Title                   string    `json:"title"`
	Description             string    `json:"description"`
	PotentialMonthlySavings JSONFloat `json:"potential_monthly_savings"`
	PotentialAnnualSavings  JSONFloat `json:"potential_annual_savings"`
	Difficulty              string    `json:"difficulty"` // easy, medium, hard
	Category                string    `json:"category"`
}

// Result is the final envelope sent to the client in the completed event.
// It is ephemeral; nothing here is persisted.
type Result struct {
	Insights              []Insight        `json:"insights"`
	Recommendations       []Recommendation `json:"recommendations"`
	TotalMonthlyPotential float64          `json:"total_monthly_potential"`
	TotalAnnualPotential  float64          `json:"total_annual_potential"`
	AnalysisDate          time.Time        `json:"analysis_date"`
}

// Event is one frame of the downstream stream. Status is the discriminator
// the browser switches on.
type Event struct {
	Status   string  `json:"status"` // processing, completed, error
	Progress int     `json:"progress,omitempty"`
	Message  string  `json:"message,omitempty"`
	Result   *Result `json:"result,omitempty"`
}

// JSONFloat tolerates the loose numeric shapes language models produce:
// numbers, quoted numbers, null, or garbage all decode without failing the
// whole document. Anything non-numeric becomes zero.
type JSONFloat float64

func (f *JSONFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = JSONFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			*f = JSONFloat(n)
			return nil
		}
	}
	*f = 0
	return nil
}

// Transaction is the read-only view the aggregator consumes: the stored
// record joined with its category name.
type Transaction struct {
	Date     time.Time
	Amount   decimal.Decimal
	Type     core.TransactionType
	Category string
	Merchant string
}

// BudgetEntry is a budget row joined with its category name.
type BudgetEntry struct {
	Category string
	Amount   decimal.Decimal
}

// CategorySpend aggregates expenses for one category over the window.
type CategorySpend struct {
	Category string
	Total    decimal.Decimal // absolute value
	Count    int
}

// MonthlyFlow is one month of the income/expense series.
type MonthlyFlow struct {
	Month    string // YYYY-MM
	Income   decimal.Decimal
	Expenses decimal.Decimal // absolute value
}

// Aggregates holds everything the prompt builder needs, derived from one
// read-only pass over the trailing window.
type Aggregates struct {
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal // absolute value
	TransactionCount int
	ByCategory       []CategorySpend
	Monthly          []MonthlyFlow
	Budgets          []BudgetEntry
}
