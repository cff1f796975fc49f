package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Summary holds the aggregates of one user over a trailing window.
type Summary struct {
	WindowDays int
	Since      time.Time
	Income     Money
	Expense    Money
	ByCategory map[Kind][]CategoryAmount
}

func (s Summary) Balance() Money {
	return s.Income.Sub(s.Expense)
}

// Total returns the per-kind total.
func (s Summary) Total(k Kind) Money {
	switch k {
	case Income:
		return s.Income
	case Expense:
		return s.Expense
	}
	return Money{}
}

// SortedCategories turns a category->amount mapping into a slice ordered by
// amount descending, then name.
func SortedCategories(m map[string]Money) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for name, amt := range m {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
