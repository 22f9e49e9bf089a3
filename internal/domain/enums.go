package domain

import "strings"

// Direction is the cash effect of a Movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// ParseDirection maps user or legacy input to a Direction.
// Only an explicit outflow ("out", "uscita") yields DirectionOut.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "out", "uscita":
		return DirectionOut
	default:
		return DirectionIn
	}
}

// CounterpartyKind classifies the other side of a Movement. Client and
// supplier are also the two Directory registries.
type CounterpartyKind string

const (
	CounterpartyClient   CounterpartyKind = "client"
	CounterpartySupplier CounterpartyKind = "supplier"
	CounterpartyOther    CounterpartyKind = "other"
)

// IsValid reports whether k is a known counterparty kind.
func (k CounterpartyKind) IsValid() bool {
	switch k {
	case CounterpartyClient, CounterpartySupplier, CounterpartyOther:
		return true
	}
	return false
}

// ParseCounterpartyKind defaults to CounterpartyClient.
func ParseCounterpartyKind(s string) CounterpartyKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supplier", "fornitore":
		return CounterpartySupplier
	case "other", "altro":
		return CounterpartyOther
	default:
		return CounterpartyClient
	}
}

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobOpen     JobStatus = "open"
	JobClosed   JobStatus = "closed"
	JobArchived JobStatus = "archived"
)

// IsValid reports whether s is a known job status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobOpen, JobClosed, JobArchived:
		return true
	}
	return false
}

// ParseJobStatus defaults to JobOpen.
func ParseJobStatus(s string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "closed", "chiuso":
		return JobClosed
	case "archived", "archiviato":
		return JobArchived
	default:
		return JobOpen
	}
}

// LineKind distinguishes materials from labor on a JobLine.
type LineKind string

const (
	LineMaterial LineKind = "material"
	LineLabor    LineKind = "labor"
)

// IsValid reports whether k is a known line kind.
func (k LineKind) IsValid() bool {
	return k == LineMaterial || k == LineLabor
}

// ParseLineKind defaults to LineMaterial.
func ParseLineKind(s string) LineKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "labor", "lavorazione":
		return LineLabor
	default:
		return LineMaterial
	}
}

// QuoteStatus is the edit state of a Quote.
type QuoteStatus string

const (
	QuoteDraft  QuoteStatus = "draft"
	QuoteLocked QuoteStatus = "locked"
)

// IsValid reports whether s is a known quote status.
func (s QuoteStatus) IsValid() bool {
	return s == QuoteDraft || s == QuoteLocked
}

// ParseQuoteStatus maps "locked" and the legacy confirmed spellings to
// QuoteLocked. Everything else is a draft.
func ParseQuoteStatus(s string) QuoteStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "locked", "confirmed", "confermato":
		return QuoteLocked
	default:
		return QuoteDraft
	}
}

// SourceKind names the entity that produced a Movement as a side effect.
type SourceKind string

const (
	SourceJobPayment   SourceKind = "jobPayment"
	SourcePurchaseLine SourceKind = "purchaseLine"
)

// IsValid reports whether k is a known source kind.
func (k SourceKind) IsValid() bool {
	return k == SourceJobPayment || k == SourcePurchaseLine
}
