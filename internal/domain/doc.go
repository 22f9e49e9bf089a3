// Package domain defines the entity types shared by every previa engine.
//
// All records live inside a single AppState value. Engines receive the
// state explicitly and mutate it in place; nothing in this package keeps
// global state.
//
// Money is carried as float64 for serialization but every rounding and
// multiplication goes through shopspring/decimal (see money.go) so that
// totals are rounded half away from zero to the cent.
//
// Enumerated fields are string types with an IsValid allow-list. Values
// read from untrusted input must be parsed with the Parse* helpers, which
// substitute the documented default for anything outside the list.
package domain
