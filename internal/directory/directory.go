// Package directory maintains the client and supplier name registries.
//
// Names are trimmed, empty names are ignored, identity is case-insensitive
// (Unicode case folding over the NFC form) and each set is kept in
// locale-aware order. Names are never pruned.
package directory

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/previa/internal/domain"
)

// DefaultLocale orders names the way the business reads them.
var DefaultLocale = language.Italian

// Registry sorts and deduplicates names for one locale.
// A Registry is not safe for concurrent use; the session engine owns one.
type Registry struct {
	col  *collate.Collator
	fold cases.Caser
}

// New creates a Registry ordering names for tag.
func New(tag language.Tag) *Registry {
	return &Registry{
		col:  collate.New(tag, collate.Loose),
		fold: cases.Fold(),
	}
}

// Key returns the identity used for duplicate detection.
func (r *Registry) Key(name string) string {
	return r.fold.String(norm.NFC.String(strings.TrimSpace(name)))
}

// Upsert registers name under kind. It reports whether the set changed.
// Only client and supplier kinds have registries.
func (r *Registry) Upsert(d *domain.Directory, kind domain.CounterpartyKind, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	set := r.set(d, kind)
	if set == nil {
		return false
	}
	key := r.Key(name)
	for _, existing := range *set {
		if r.Key(existing) == key {
			return false
		}
	}
	*set = append(*set, name)
	r.Sort(*set)
	return true
}

// Normalize trims, drops empties, removes case-insensitive duplicates
// (the first spelling wins) and sorts.
func (r *Registry) Normalize(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := r.Key(n)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	r.Sort(out)
	return out
}

// Sort orders names by the locale collation. Names the collator treats as
// equal (accents, case) fall back to byte order so output is stable.
func (r *Registry) Sort(names []string) {
	slices.SortFunc(names, func(a, b string) int {
		if c := r.col.CompareString(a, b); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}

// Rebuild recomputes both sets from the stored names plus every client
// referenced by a job and every supplier referenced by a purchase.
func (r *Registry) Rebuild(s *domain.AppState) {
	clients := append([]string{}, s.Directory.Clients...)
	for _, j := range s.Jobs {
		clients = append(clients, j.Client)
	}
	suppliers := append([]string{}, s.Directory.Suppliers...)
	for _, p := range s.PurchaseLines {
		suppliers = append(suppliers, p.Supplier)
	}
	s.Directory.Clients = r.Normalize(clients)
	s.Directory.Suppliers = r.Normalize(suppliers)
}

// Suggest returns up to limit names of kind containing query,
// compared case-insensitively. An empty query matches everything.
func (r *Registry) Suggest(d *domain.Directory, kind domain.CounterpartyKind, query string, limit int) []string {
	set := r.set(d, kind)
	if set == nil {
		return nil
	}
	q := r.Key(query)
	var out []string
	for _, n := range *set {
		if limit > 0 && len(out) >= limit {
			break
		}
		if q == "" || strings.Contains(r.Key(n), q) {
			out = append(out, n)
		}
	}
	return out
}

func (r *Registry) set(d *domain.Directory, kind domain.CounterpartyKind) *[]string {
	switch kind {
	case domain.CounterpartyClient:
		return &d.Clients
	case domain.CounterpartySupplier:
		return &d.Suppliers
	}
	return nil
}
