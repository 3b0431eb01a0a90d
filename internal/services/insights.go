package services

import (
	"cmp"
	"slices"

	"moneyboard/internal/core"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Insights breaks the view down by category for one polarity. Amounts are
// magnitudes; categories are ordered by amount, largest first.
func Insights(view core.MonthView, p core.Polarity) core.Insights {
	out := core.Insights{Month: view.Month, Polarity: p}
	totals := map[core.Category]*core.CategoryTotal{}
	for _, tx := range view.Transactions {
		if tx.Polarity() != p {
			continue
		}
		cat := core.NormalizeCategory(p, string(tx.Category))
		ct, ok := totals[cat]
		if !ok {
			info := cat.Info(p)
			ct = &core.CategoryTotal{Category: cat, Label: info.Label, Color: info.Color}
			totals[cat] = ct
		}
		amount := tx.Amount.Abs()
		ct.Amount = ct.Amount.Add(amount)
		ct.Count++
		out.Total = out.Total.Add(amount)
		out.Count++
	}

	for _, ct := range totals {
		if !out.Total.IsZero() {
			ct.Percentage = ct.Amount.Div(out.Total).Mul(hundred).Round(2)
		}
		out.Categories = append(out.Categories, *ct)
	}
	slices.SortFunc(out.Categories, func(a, b core.CategoryTotal) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}
