package analysis

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the model as a financial advisor and pins the output
// contract to a single JSON object.
const SystemPrompt = `Eres un asesor financiero personal. Analizas los datos de gastos e ingresos ` +
	`de un usuario y devuelves conclusiones accionables. Respondes SIEMPRE con un único objeto JSON ` +
	`válido, sin texto adicional antes ni después.`

// BuildPrompt renders the aggregates into the user prompt. Pure and
// deterministic for a given set of aggregates.
func BuildPrompt(agg *Aggregates) string {
	var b strings.Builder

	b.WriteString("Analiza los datos financieros de los últimos 3 meses de este usuario.\n\n")

	b.WriteString("RESUMEN:\n")
	fmt.Fprintf(&b, "- Ingresos totales: %s EUR\n", agg.TotalIncome.StringFixed(2))
	fmt.Fprintf(&b, "- Gastos totales: %s EUR\n", agg.TotalExpenses.StringFixed(2))
	fmt.Fprintf(&b, "- Balance: %s EUR\n", agg.Balance().StringFixed(2))
	fmt.Fprintf(&b, "- Número de transacciones: %d\n\n", agg.TransactionCount)

	b.WriteString("GASTOS POR CATEGORÍA:\n")
	for _, c := range agg.ByCategory {
		fmt.Fprintf(&b, "- %s: %s EUR (%d transacciones)\n", c.Category, c.Total.StringFixed(2), c.Count)
	}
	b.WriteString("\n")

	b.WriteString("PRESUPUESTOS DEL MES ACTUAL:\n")
	if len(agg.Budgets) == 0 {
		b.WriteString("- Sin presupuestos definidos\n")
	}
	for _, bu := range agg.Budgets {
		fmt.Fprintf(&b, "- %s: %s EUR\n", bu.Category, bu.Amount.StringFixed(2))
	}
	b.WriteString("\n")

	b.WriteString("EVOLUCIÓN MENSUAL:\n")
	for _, m := range agg.Monthly {
		fmt.Fprintf(&b, "- %s: ingresos %s EUR, gastos %s EUR\n", m.Month, m.Income.StringFixed(2), m.Expenses.StringFixed(2))
	}
	b.WriteString("\n")

	b.WriteString(`FORMATO DE SALIDA (obligatorio): un objeto JSON con exactamente estas claves:
{
  "insights": [
    {
      "type": "budget_exceeded" | "recurring_expenses" | "spending_spike" | "category_analysis",
      "title": "título breve",
      "description": "explicación concreta basada en los datos",
      "impact": "high" | "medium" | "low",
      "category": "categoría afectada (opcional)",
      "amount": importe relevante en EUR (opcional, número)
    }
  ],
  "recommendations": [
    {
      "title": "título breve",
      "description": "acción concreta",
      "potential_monthly_savings": ahorro mensual estimado en EUR (número),
      "potential_annual_savings": ahorro anual estimado en EUR (número),
      "difficulty": "easy" | "medium" | "hard",
      "category": "categoría afectada"
    }
  ]
}

REGLAS:
1. Entre 3 y 6 insights.
2. Entre 3 y 5 recommendations.
3. Todos los importes son números, no cadenas.
4. Basa cada conclusión en los datos proporcionados, no inventes cifras.
`)

	return b.String()
}
