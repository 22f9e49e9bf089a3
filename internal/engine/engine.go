package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/roach88/previa/internal/diagnostics"
	"github.com/roach88/previa/internal/directory"
	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/exchange"
	"github.com/roach88/previa/internal/loader"
	"github.com/roach88/previa/internal/quote"
	"github.com/roach88/previa/internal/schema"
	"github.com/roach88/previa/internal/store"
	"github.com/roach88/previa/internal/workorder"
)

// DefaultStorageKey is the key the snapshot is persisted under.
const DefaultStorageKey = "previa_works_state_v2"

// DefaultDocumentTimeout bounds an external document step.
const DefaultDocumentTimeout = 15 * time.Second

// maxErrorLog is how many recent failures the engine remembers.
const maxErrorLog = 20

// Change describes one committed mutation.
type Change struct {
	Op       string
	Revision int64
}

// Observer is notified after every committed mutation, outside the
// engine lock. It may call back into the engine.
type Observer func(Change)

// statusReporter is implemented by store.Fallback.
type statusReporter interface {
	Status() store.Status
}

// Engine owns one AppState and serializes every change to it.
//
// Thread-safety model:
//   - Mutate and every operation built on it: safe from any goroutine,
//     serialized by one mutex
//   - Snapshot, View: safe from any goroutine
//   - Run: at most one goroutine at a time; Drain may be mixed with it
type Engine struct {
	mu       sync.Mutex
	state    *domain.AppState
	kv       store.KV
	key      string
	clock    domain.Clock
	ids      domain.IDGenerator
	locale   language.Tag
	names    *directory.Registry
	loader   *loader.Loader
	importer *exchange.Importer
	revision *Revision
	logger   zerolog.Logger

	defaultVAT float64
	docTimeout time.Duration
	observers  []Observer

	lastLoad loader.Diagnostics
	errLog   []string

	// worker is held while a queued task runs, keeping tasks in order
	// when Run and Drain are used together.
	worker  sync.Mutex
	imports *taskQueue
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock sets the time source. Default: domain.SystemClock.
func WithClock(c domain.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the record id source. Default: UUIDv7Generator.
func WithIDGenerator(g domain.IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithStorageKey overrides DefaultStorageKey.
func WithStorageKey(key string) EngineOption {
	return func(e *Engine) {
		e.key = key
	}
}

// WithDocumentTimeout overrides DefaultDocumentTimeout.
func WithDocumentTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.docTimeout = d
	}
}

// WithLogger sets the engine logger. Default: disabled.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithLocale sets the collation used for directory names.
func WithLocale(tag language.Tag) EngineOption {
	return func(e *Engine) {
		e.locale = tag
	}
}

// WithDefaultVAT sets the VAT percentage of quote rows that omit one.
func WithDefaultVAT(pct float64) EngineOption {
	return func(e *Engine) {
		e.defaultVAT = pct
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// New creates an Engine over kv holding the default state. Call Load to
// read the persisted snapshot.
func New(kv store.KV, opts ...EngineOption) *Engine {
	e := &Engine{
		state:      domain.NewDefaultState(),
		kv:         kv,
		key:        DefaultStorageKey,
		clock:      domain.SystemClock{},
		ids:        UUIDv7Generator{},
		locale:     directory.DefaultLocale,
		revision:   NewRevision(),
		logger:     zerolog.Nop(),
		defaultVAT: domain.DefaultVATPct,
		docTimeout: DefaultDocumentTimeout,
		lastLoad:   loader.Diagnostics{Dropped: map[string]int{}},
		imports:    newTaskQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.kv == nil {
		e.kv = store.NewFallback(nil, store.WithLogger(e.logger))
	}
	e.names = directory.New(e.locale)
	e.loader = loader.New(e.clock, e.ids, e.names)
	e.importer = exchange.NewImporter(schema.MustNew(), e.loader, e.clock)
	return e
}

// Load replaces the state with the persisted snapshot. A missing snapshot
// yields the default state; an unreadable one is normalized by the
// loader and reported through LoadDiagnostics.
func (e *Engine) Load(ctx context.Context) (loader.Diagnostics, error) {
	e.mu.Lock()

	raw, ok, err := e.kv.Get(ctx, e.key)
	if err != nil {
		e.mu.Unlock()
		return loader.Diagnostics{}, opError("load", err)
	}

	var diag loader.Diagnostics
	if ok {
		e.state, diag = e.loader.Load(raw)
	} else {
		e.state = domain.NewDefaultState()
		diag = loader.Diagnostics{Dropped: map[string]int{}}
	}
	e.lastLoad = diag
	rev := e.revision.Next()
	e.mu.Unlock()

	log := e.logger.Info()
	if diag.Fallback || !diag.Clean() {
		log = e.logger.Warn()
	}
	log.Bool("found", ok).
		Bool("fallback", diag.Fallback).
		Int("dropped", diag.DroppedTotal()).
		Int64("revision", rev).
		Msg("state loaded")

	e.notify(Change{Op: "load", Revision: rev})
	return diag, nil
}

// Tx is the view of the cloned state an operation mutates.
type Tx struct {
	State  *domain.AppState
	Jobs   *workorder.Engine
	Quotes *quote.Engine
	IDs    domain.IDGenerator
	Clock  domain.Clock
	Names  *directory.Registry

	engine *Engine
}

func (e *Engine) newTx(s *domain.AppState) *Tx {
	tx := &Tx{IDs: e.ids, Clock: e.clock, Names: e.names, engine: e}
	tx.bind(s)
	return tx
}

func (tx *Tx) bind(s *domain.AppState) {
	e := tx.engine
	tx.State = s
	tx.Jobs = workorder.New(s, e.names, e.ids, e.clock)
	tx.Quotes = quote.New(s, tx.Jobs, e.ids, e.clock, quote.WithDefaultVAT(e.defaultVAT))
}

// Replace makes s the state committed by this transaction.
func (tx *Tx) Replace(s *domain.AppState) {
	tx.bind(s)
}

// Mutate runs fn against a clone of the state while holding the
// in-flight token. If fn succeeds the clone is committed, persisted and
// announced; otherwise the state is unchanged and fn's error is returned
// as an *OperationError.
func (e *Engine) Mutate(ctx context.Context, op string, fn func(*Tx) error) error {
	if err := ctx.Err(); err != nil {
		return opError(op, err)
	}

	e.mu.Lock()
	tx := e.newTx(e.state.Clone())
	if err := fn(tx); err != nil {
		err = opError(op, err)
		e.recordError(err)
		e.mu.Unlock()
		e.logger.Debug().Err(err).Str("op", op).Msg("operation rejected")
		return err
	}
	e.state = tx.State
	rev := e.revision.Next()
	e.persist(ctx, op)
	e.mu.Unlock()

	e.logger.Debug().Str("op", op).Int64("revision", rev).Msg("state committed")
	e.notify(Change{Op: op, Revision: rev})
	return nil
}

// persist writes the current state. A failed write leaves the committed
// state in place; the store reports a degraded status on its own.
// Caller holds e.mu.
func (e *Engine) persist(ctx context.Context, op string) {
	data, err := json.Marshal(e.state)
	if err == nil {
		err = e.kv.Put(ctx, e.key, data)
	}
	if err != nil {
		e.recordError(fmt.Errorf("persist after %s: %w", op, err))
		e.logger.Warn().Err(err).Str("op", op).Msg("snapshot not persisted")
	}
}

// recordError appends err to the bounded error log. Caller holds e.mu.
func (e *Engine) recordError(err error) {
	e.errLog = append(e.errLog, err.Error())
	if len(e.errLog) > maxErrorLog {
		e.errLog = append([]string(nil), e.errLog[len(e.errLog)-maxErrorLog:]...)
	}
}

func (e *Engine) notify(c Change) {
	for _, o := range e.observers {
		o(c)
	}
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() *domain.AppState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// View runs fn with the live state under the engine lock. fn must not
// retain or modify s, and must not call back into the engine.
func (e *Engine) View(fn func(s *domain.AppState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
}

// Revision returns the revision of the current state.
func (e *Engine) Revision() int64 {
	return e.revision.Current()
}

// Clock returns the engine time source.
func (e *Engine) Clock() domain.Clock {
	return e.clock
}

// StorageStatus reports whether snapshots still reach persistent storage.
func (e *Engine) StorageStatus() store.Status {
	if r, ok := e.kv.(statusReporter); ok {
		return r.Status()
	}
	return store.Status{}
}

// LoadDiagnostics returns what the last Load or state import repaired.
func (e *Engine) LoadDiagnostics() loader.Diagnostics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastLoad
}

// Errors returns the most recent operation failures, oldest first.
func (e *Engine) Errors() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.errLog...)
}

// Diagnostics builds a consistency report of the current state.
func (e *Engine) Diagnostics() diagnostics.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	diag := e.lastLoad
	return diagnostics.Build(e.state, diagnostics.Input{
		Storage: e.StorageStatus(),
		Load:    &diag,
		Errors:  append([]string{}, e.errLog...),
		Now:     e.clock.Now(),
	})
}

// Reset deletes the persisted snapshot and installs the default state.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	if err := e.kv.Delete(ctx, e.key); err != nil {
		err = opError("reset", err)
		e.recordError(err)
		e.mu.Unlock()
		return err
	}
	e.state = domain.NewDefaultState()
	e.lastLoad = loader.Diagnostics{Dropped: map[string]int{}}
	rev := e.revision.Next()
	e.mu.Unlock()

	e.logger.Info().Int64("revision", rev).Msg("state reset")
	e.notify(Change{Op: "reset", Revision: rev})
	return nil
}
