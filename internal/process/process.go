// Package process is the entry point of one termsync run: it loads the
// orchestrator's credentials, reads the run arguments and dispatches to the
// taxonomy or term sub-process.
package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/loykin/termsync/internal/auth"
	"github.com/loykin/termsync/internal/common"
	"github.com/loykin/termsync/internal/constants"
	"github.com/loykin/termsync/internal/goapi"
	"github.com/loykin/termsync/internal/httpc"
	"github.com/loykin/termsync/internal/metrics"
	"github.com/loykin/termsync/internal/orchestrator"
	"github.com/loykin/termsync/internal/retry"
	"github.com/loykin/termsync/internal/store"
	"github.com/loykin/termsync/internal/taxonomy"
	"github.com/loykin/termsync/internal/term"
)

// ErrUnknownProcess is returned when the "process" argument names no sub-process.
var ErrUnknownProcess = errors.New("process: unknown process")

// Database is what the sub-processes write through.
type Database interface {
	ExecuteStoredProcedure(ctx context.Context, procedure string, params []store.Param) error
	InsertRows(ctx context.Context, table string, columns []string, rows []store.Row) (int, error)
	Close() error
}

// PushConfig points at a Prometheus Pushgateway. An empty URL disables pushing.
type PushConfig struct {
	URL string `mapstructure:"push_url" yaml:"push_url"`
	Job string `mapstructure:"job" yaml:"job"`
}

// Deps carries configuration and the seams tests replace. Nil functions use
// the production implementations.
type Deps struct {
	HTTP     httpc.Options
	Auth     auth.Config
	Retry    *retry.Config
	MaxPages int
	Metrics  PushConfig

	OpenDB      func(ctx context.Context, connString string) (Database, error)
	NewClient   func(ctx context.Context, creds orchestrator.Credentials) (*goapi.Client, error)
	RunTaxonomy func(ctx context.Context, c *goapi.Client, db taxonomy.Writer, o taxonomy.Options) (taxonomy.Stats, error)
	RunTerm     func(ctx context.Context, c *goapi.Client, db term.Executor, o term.Options) (term.Stats, error)
}

func (d Deps) withDefaults() Deps {
	if d.Retry == nil {
		d.Retry = retry.DefaultRetryConfig()
	}
	if d.OpenDB == nil {
		retryCfg := d.Retry
		d.OpenDB = func(ctx context.Context, connString string) (Database, error) {
			return store.Open(ctx, connString, store.WithRetryConfig(retryCfg))
		}
	}
	if d.NewClient == nil {
		httpOpts, authCfg := d.HTTP, d.Auth
		d.NewClient = func(ctx context.Context, creds orchestrator.Credentials) (*goapi.Client, error) {
			rc, err := httpc.New(httpOpts)
			if err != nil {
				return nil, err
			}
			if _, err := auth.Configure(ctx, rc, authCfg, creds.APIUsername, creds.APIPassword); err != nil {
				return nil, fmt.Errorf("process: configure auth: %w", err)
			}
			return goapi.NewClient(rc), nil
		}
	}
	if d.RunTaxonomy == nil {
		d.RunTaxonomy = taxonomy.Sync
	}
	if d.RunTerm == nil {
		d.RunTerm = term.Sync
	}
	return d
}

// Process runs one orchestrated job. Credentials are loaded and arguments
// validated before any network or database access.
func Process(ctx context.Context, conn orchestrator.Connection, deps Deps) error {
	deps = deps.withDefaults()
	conn.LogTrace("Running process.")

	creds, err := orchestrator.GetCredentialsAndConstants(conn)
	if err != nil {
		return err
	}
	args, err := orchestrator.ParseRunArguments(conn.ProcessArguments())
	if err != nil {
		return err
	}
	switch args.Process {
	case constants.ProcessTaxonomy, constants.ProcessTerm:
	default:
		common.LogWarn("no sub-process matches the process argument", "process", args.Process)
		return fmt.Errorf("%w: %q", ErrUnknownProcess, args.Process)
	}
	if err := args.Validate(); err != nil {
		return err
	}

	logger := common.GetLogger().WithProcess(args.Process).With("run_id", uuid.NewString())
	logger.Debug("credentials loaded", "credentials", creds)

	client, err := deps.NewClient(ctx, creds)
	if err != nil {
		return err
	}
	db, err := deps.OpenDB(ctx, creds.SQLConnString)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("closing database failed", "error", cerr)
		}
	}()

	run := metrics.NewRun(args.Process)
	err = dispatch(ctx, conn, deps, args, client, db, run)
	run.Finish(err)
	if perr := run.Push(ctx, deps.Metrics.URL, deps.Metrics.Job); perr != nil {
		logger.Warn("metrics push failed", "error", perr)
	}
	return err
}

func dispatch(ctx context.Context, conn orchestrator.Connection, deps Deps, args orchestrator.RunArguments, client *goapi.Client, db Database, run *metrics.Run) error {
	logger := common.GetLogger().WithProcess(args.Process)
	switch args.Process {
	case constants.ProcessTaxonomy:
		conn.LogTrace("Pull taxonomy data from GO.")
		stats, err := deps.RunTaxonomy(ctx, client, db, taxonomy.Options{
			BaseURL:         args.BaseURL,
			CaseType:        args.CaseType,
			ViewID:          args.ViewID,
			StoredProcedure: args.StoredProcedure,
			Table:           args.Table,
			MaxPages:        deps.MaxPages,
			Metrics:         run,
		})
		logger.Info("taxonomy run finished", "fetched", stats.Fetched, "written", stats.Written, "failed", stats.Failed)
		if err != nil {
			return err
		}
		conn.LogTrace("Taxonomy data was successfully pulled from GO.")
	case constants.ProcessTerm:
		conn.LogTrace("Pull term data from GO.")
		stats, err := deps.RunTerm(ctx, client, db, term.Options{
			BaseURL:         args.BaseURL,
			CaseType:        args.CaseType,
			StartTermID:     args.StartTermID,
			TermSetUUID:     args.TermSetUUID,
			StoredProcedure: args.StoredProcedure,
			OutputFile:      args.OutputFile,
			PageLimit:       args.PageLimit,
			LCID:            args.LCID,
			SSPID:           args.SSPID,
			Metrics:         run,
		})
		logger.Info("term run finished", "fetched", stats.Fetched, "written", stats.Written, "failed", stats.Failed)
		if err != nil {
			return err
		}
		conn.LogTrace("Term data was successfully pulled from GO.")
	}
	return nil
}
