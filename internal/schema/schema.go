// Package schema checks the envelope of imported JSON documents against
// CUE definitions before they reach the loader.
//
// The schemas are deliberately loose about scalar types since the loader
// coerces them. They reject documents of the wrong shape: a purchase
// import that is neither a list nor an object with purchaseLines, list
// entries that are not objects, a state import without a state object.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed import.cue
var importCUE string

// ErrInvalidDocument is wrapped by every ValidationError.
var ErrInvalidDocument = errors.New("invalid document")

// Document kinds.
const (
	Purchases = "#PurchaseImport"
	State     = "#StateImport"
)

// ValidationError reports the first schema violation of a document.
type ValidationError struct {
	Path    string
	Message string
	Pos     token.Pos
}

// Error prefixes the message with its source position.
func (e *ValidationError) Error() string {
	loc := e.Path
	if e.Pos.IsValid() {
		loc = fmt.Sprintf("%s:%d:%d", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
		if e.Path != "" {
			loc += " " + e.Path
		}
	}
	if loc == "" {
		return e.Message
	}
	return loc + ": " + e.Message
}

// Unwrap returns ErrInvalidDocument.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidDocument
}

// Validator holds the compiled schemas.
//
// Thread-safety: a cue.Context is not safe for concurrent use, so every
// call is serialized.
type Validator struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[string]cue.Value
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(importCUE, cue.Filename("import.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile import schema: %w", err)
	}
	v := &Validator{ctx: ctx, defs: make(map[string]cue.Value)}
	for _, name := range []string{Purchases, State} {
		def := root.LookupPath(cue.ParsePath(name))
		if !def.Exists() {
			return nil, fmt.Errorf("import schema: definition %s missing", name)
		}
		v.defs[name] = def
	}
	return v, nil
}

// MustNew is New for package-level initialization.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks data against the definition kind. filename only
// labels error positions.
func (v *Validator) Validate(kind, filename string, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	def, ok := v.defs[kind]
	if !ok {
		return fmt.Errorf("unknown document kind %q", kind)
	}

	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		return formatCUEError(err, "document is not valid JSON")
	}
	doc := v.ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return formatCUEError(err, "document is not valid JSON")
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err, "document does not match "+strings.TrimPrefix(kind, "#"))
	}
	return nil
}

// formatCUEError extracts path and position info from CUE errors.
func formatCUEError(err error, fallback string) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: fallback + ": " + err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	ve := &ValidationError{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ve.Pos = positions[0]
	}
	if ve.Message == "" {
		ve.Message = fallback
	}
	return ve
}
