package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/roomlab/internal/auth"
	"github.com/roach88/roomlab/internal/catalog"
	"github.com/roach88/roomlab/internal/kv"
)

// RedisKeyPrefix namespaces roomlab keys in a shared Redis.
const RedisKeyPrefix = "roomlab:"

// openService opens the configured store, builds a service over it and
// restores the persisted session. The returned func closes the store.
// Errors are already reported through f.
func (o *RootOptions) openService(cmd *cobra.Command, f *OutputFormatter) (*auth.Service, func(), error) {
	ctx := commandContext(cmd)
	logger := o.logger(cmd)

	cat, err := o.loadCatalog()
	if err != nil {
		return nil, nil, report(f, CodeCatalogInvalid, err)
	}

	st, err := o.openStore(ctx)
	if err != nil {
		return nil, nil, report(f, CodeStoreUnavailable, err)
	}
	closeStore := func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}

	svc := auth.New(st, auth.WithLogger(logger), auth.WithCatalog(cat))
	restored, err := svc.Restore(ctx)
	if err != nil {
		closeStore()
		return nil, nil, f.Fail(err)
	}
	logger.Debug("session loaded", "restored", restored)

	return svc, closeStore, nil
}

func (o *RootOptions) openStore(ctx context.Context) (kv.Store, error) {
	if o.Redis != "" {
		st, err := kv.DialRedis(ctx, o.Redis, RedisKeyPrefix)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open store", err)
		}
		return st, nil
	}

	st, err := kv.OpenSQLite(o.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return st, nil
}

func (o *RootOptions) loadCatalog() (*catalog.Catalog, error) {
	if o.Catalog == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(o.Catalog)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	return cat, nil
}

// logger writes service logs to stderr. Only errors are shown unless
// --verbose is set.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelError
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// report writes a command error in the configured format and marks it as
// reported so Execute does not print it twice.
func report(f *OutputFormatter, code string, err error) error {
	exitErr, ok := err.(*ExitError)
	if !ok {
		exitErr = WrapExitError(ExitCommandError, "command failed", err)
	}
	_ = f.Error(code, exitErr.Error(), nil)
	exitErr.Reported = true
	return exitErr
}
