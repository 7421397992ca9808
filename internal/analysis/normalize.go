package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// rawResult is the shape the model is asked to produce.
type rawResult struct {
	Insights        []Insight        `json:"insights"`
	Recommendations []Recommendation `json:"recommendations"`
}

// ParseResult parses the fully-accumulated buffer and normalizes it into the
// final Result: savings totals summed with missing or non-numeric values
// treated as zero, absent arrays defaulted to empty, and the analysis date
// stamped at normalization time.
func ParseResult(buffer string) (*Result, error) {
	var raw rawResult
	if err := json.Unmarshal([]byte(buffer), &raw); err != nil {
		return nil, fmt.Errorf("parse analysis payload: %w", err)
	}
	return normalize(raw), nil
}

func normalize(raw rawResult) *Result {
	if raw.Insights == nil {
		raw.Insights = []Insight{}
	}
	if raw.Recommendations == nil {
		raw.Recommendations = []Recommendation{}
	}

	var monthly, annual float64
	for _, rec := range raw.Recommendations {
		monthly += safeFloat(float64(rec.PotentialMonthlySavings))
		annual += safeFloat(float64(rec.PotentialAnnualSavings))
	}

	return &Result{
		Insights:              raw.Insights,
		Recommendations:       raw.Recommendations,
		TotalMonthlyPotential: monthly,
		TotalAnnualPotential:  annual,
		AnalysisDate:          time.Now(),
	}
}

func safeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
