// Package history answers price-history questions over purchase lines.
package history

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/previa/internal/domain"
)

// Order selects the sort of Search results.
type Order string

const (
	// ByDateDesc lists the newest purchase first.
	ByDateDesc Order = "date-desc"
	// ByPrice lists the cheapest unit price first.
	ByPrice Order = "price"
)

// Filter narrows purchase lines. Text fields match as case-insensitive
// substrings; zero values match everything.
type Filter struct {
	Product  string
	Supplier string
	JobCode  string
	Year     int
	Month    time.Month
	Order    Order
	// Location evaluates Year and Month. Nil means UTC.
	Location *time.Location
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToUpper(haystack), strings.ToUpper(strings.TrimSpace(needle)))
}

// Search returns the purchase lines of s matching f.
func Search(s *domain.AppState, f Filter) []domain.PurchaseLine {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	out := []domain.PurchaseLine{}
	for _, l := range s.PurchaseLines {
		d := l.Date.In(loc)
		switch {
		case f.Product != "" && !contains(l.Product, f.Product):
		case f.Supplier != "" && !contains(l.Supplier, f.Supplier):
		case f.JobCode != "" && !contains(l.JobCode, f.JobCode):
		case f.Year != 0 && d.Year() != f.Year:
		case f.Month != 0 && d.Month() != f.Month:
		default:
			out = append(out, l)
		}
	}
	if f.Order == ByPrice {
		sort.SliceStable(out, func(i, j int) bool { return out[i].UnitPrice < out[j].UnitPrice })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	}
	return out
}

// Stats summarizes the unit prices paid for a product.
type Stats struct {
	Product   string  `json:"product"`
	Count     int     `json:"count"`
	Quantity  float64 `json:"qty"`
	MinPrice  float64 `json:"minPrice"`
	MaxPrice  float64 `json:"maxPrice"`
	AvgPrice  float64 `json:"avgPrice"`
	LastPrice float64 `json:"lastPrice"`
	Spent     float64 `json:"spent"`
}

// ProductStats computes Stats over the purchases whose product contains
// product, optionally restricted to year (0 for all years, in UTC).
// LastPrice is the unit price of the most recent purchase.
func ProductStats(s *domain.AppState, product string, year int) Stats {
	return compute(product, Search(s, Filter{Product: product, Year: year}))
}

func compute(product string, lines []domain.PurchaseLine) Stats {
	st := Stats{Product: product}
	if len(lines) == 0 {
		return st
	}
	sum, qty := decimal.Zero, decimal.Zero
	var spent []float64
	var last time.Time
	for i, l := range lines {
		if i == 0 || l.UnitPrice < st.MinPrice {
			st.MinPrice = l.UnitPrice
		}
		if i == 0 || l.UnitPrice > st.MaxPrice {
			st.MaxPrice = l.UnitPrice
		}
		if i == 0 || l.Date.After(last) {
			last = l.Date
			st.LastPrice = l.UnitPrice
		}
		sum = sum.Add(decimal.NewFromFloat(l.UnitPrice))
		qty = qty.Add(decimal.NewFromFloat(l.Quantity))
		spent = append(spent, l.Total())
	}
	st.Count = len(lines)
	st.Quantity = qty.InexactFloat64()
	st.AvgPrice = sum.Div(decimal.NewFromInt(int64(len(lines)))).Round(2).InexactFloat64()
	st.Spent = domain.Sum(spent...)
	return st
}

// Group is the purchases of one product with their Stats.
type Group struct {
	Stats
	Lines []domain.PurchaseLine `json:"lines"`
}

// GroupByProduct buckets lines by product name ignoring case, in order of
// first appearance. Each group's Stats cover only its own lines.
func GroupByProduct(lines []domain.PurchaseLine) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, l := range lines {
		key := strings.ToUpper(domain.Clean(l.Product))
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Stats: Stats{Product: l.Product}})
		}
		groups[i].Lines = append(groups[i].Lines, l)
	}
	for i := range groups {
		groups[i].Stats = compute(groups[i].Product, groups[i].Lines)
	}
	return groups
}

// Products lists distinct product names, first spelling wins, sorted.
func Products(s *domain.AppState) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range s.PurchaseLines {
		key := strings.ToUpper(domain.Clean(l.Product))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l.Product)
	}
	sort.Strings(out)
	return out
}
