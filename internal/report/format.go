package report

import (
	"fmt"
	"strings"

	"finbot/internal/core"

	"github.com/shopspring/decimal"
)

// FormatSummary renders the totals of s as a short multi-line message.
func FormatSummary(s core.Summary) string {
	var b strings.Builder
	label := fmt.Sprintf("%d days", s.WindowDays)
	if s.WindowDays == 1 {
		label = "1 day"
	}
	if p, ok := PeriodFor(s.WindowDays); ok {
		label = fmt.Sprintf("%s (%s)", p.Label, label)
	}
	fmt.Fprintf(&b, "📊 Period: %s\n", label)
	fmt.Fprintf(&b, "Income: %s\n", s.Income)
	fmt.Fprintf(&b, "Expense: %s\n", s.Expense)
	fmt.Fprintf(&b, "Balance: %s", s.Balance())
	return b.String()
}

// Slice is one category of a Distribution.
type Slice struct {
	Category string
	Amount   core.Money
	Percent  decimal.Decimal
}

// Label is the text drawn next to the slice, e.g. "Transit 150.00 (60.0%)".
func (s Slice) Label() string {
	return fmt.Sprintf("%s %s (%s%%)", s.Category, s.Amount, s.Percent.StringFixed(1))
}

// Distribution is a chart-ready share breakdown for one kind.
type Distribution struct {
	Kind   core.Kind
	Total  core.Money
	Slices []Slice
}

func (d Distribution) Title() string {
	return d.Kind.Label() + " by category"
}

var hundred = decimal.NewFromInt(100)

// BuildDistribution computes per-category shares of the kind total. Zero
// categories are dropped; ok is false when nothing is left to chart.
func BuildDistribution(kind core.Kind, cats []core.CategoryAmount) (Distribution, bool) {
	d := Distribution{Kind: kind}
	for _, c := range cats {
		if c.Amount.Cents <= 0 {
			continue
		}
		d.Total = d.Total.Add(c.Amount)
	}
	if d.Total.IsZero() {
		return Distribution{}, false
	}

	total := decimal.NewFromInt(d.Total.Cents)
	for _, c := range cats {
		if c.Amount.Cents <= 0 {
			continue
		}
		pct := decimal.NewFromInt(c.Amount.Cents).Mul(hundred).Div(total).Round(1)
		d.Slices = append(d.Slices, Slice{Category: c.Name, Amount: c.Amount, Percent: pct})
	}
	return d, true
}

// Distributions builds the chartable breakdowns of s, expense first.
func Distributions(s core.Summary) []Distribution {
	var out []Distribution
	for _, k := range []core.Kind{core.Expense, core.Income} {
		if d, ok := BuildDistribution(k, s.ByCategory[k]); ok {
			out = append(out, d)
		}
	}
	return out
}
