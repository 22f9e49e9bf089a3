package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/text/message"

	"github.com/roach88/previa/internal/config"
	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/engine"
	"github.com/roach88/previa/internal/logger"
	"github.com/roach88/previa/internal/store"
)

// session is one loaded engine bound to a command invocation.
type session struct {
	cfg     *config.Config
	engine  *engine.Engine
	out     *OutputFormatter
	log     zerolog.Logger
	printer *message.Printer

	store     *store.Store
	logCloser io.Closer
}

// openSession resolves configuration, sets up logging, opens the
// snapshot store and loads the state. A store that cannot be opened
// degrades to memory; the command still runs but nothing is saved.
func openSession(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.DB != "" {
		cfg.DBPath = opts.DB
	}

	lc := cfg.LoggerConfig()
	if opts.Verbose {
		lc.Level = "debug"
	}
	log, closer, err := logger.Setup(lc)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize logger", err)
	}

	s := &session{
		cfg:       cfg,
		out:       newFormatter(cmd, opts),
		log:       log,
		printer:   message.NewPrinter(cfg.Language()),
		logCloser: closer,
	}

	var kv store.KV
	storeLog := logger.WithComponent("store")
	if cfg.DBPath == "" {
		kv = store.NewFallback(nil, store.WithLogger(storeLog))
	} else if st, err := store.Open(cfg.DBPath); err != nil {
		storeLog.Warn().Err(err).Str("path", cfg.DBPath).Msg("snapshot store unavailable, continuing in memory")
		kv = store.Disabled(err.Error(), store.WithLogger(storeLog))
	} else {
		s.store = st
		kv = store.NewFallback(st, store.WithLogger(storeLog))
	}

	s.engine = engine.New(kv,
		engine.WithStorageKey(cfg.StorageKey),
		engine.WithLocale(cfg.Language()),
		engine.WithDefaultVAT(cfg.DefaultVAT),
		engine.WithDocumentTimeout(cfg.DocumentTimeout),
		engine.WithLogger(logger.WithComponent("engine")),
	)
	if _, err := s.engine.Load(ctx); err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load state", err)
	}
	s.out.VerboseLog("loaded %s (revision %d)", cfg.DBPath, s.engine.Revision())
	return s, nil
}

// Close releases the store and the log file.
func (s *session) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close store")
		}
	}
	if s.logCloser != nil {
		_ = s.logCloser.Close()
	}
}

// withSession opens a session for the duration of fn.
func withSession(opts *RootOptions, fn func(ctx context.Context, s *session) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		s, err := openSession(ctx, cmd, opts)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(ctx, s)
	}
}

// result emits data after a successful operation, or reports err.
func (s *session) result(err error, data interface{}, text func(w io.Writer)) error {
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Emit(data, text)
}

// usageError is returned for flag values the engine never sees.
func usageError(format string, args ...interface{}) error {
	return NewExitError(ExitCommandError, fmt.Sprintf(format, args...))
}

// parseAmountFlag accepts "12.5" or "12,5".
func parseAmountFlag(name, value string) (float64, error) {
	v, ok := domain.ParseNumber(value)
	if !ok {
		return 0, usageError("--%s: %q is not a number", name, value)
	}
	return v, nil
}

// parseOptionalAmount parses value unless it is empty.
func parseOptionalAmount(name, value string) (float64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return parseAmountFlag(name, value)
}

// parseDateFlag accepts YYYY-MM-DD or RFC 3339. Empty means now.
func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return domain.Midday(t), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, usageError("--%s: %q is not a date (YYYY-MM-DD)", name, value)
	}
	return t, nil
}

// money renders an amount in the configured locale, e.g. 1.234,50.
func (s *session) money(v float64) string {
	return s.printer.Sprintf("%.2f", domain.Round2(v))
}
