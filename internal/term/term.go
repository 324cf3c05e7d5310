// Package term copies a GO term set hierarchy into SQL.
package term

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loykin/termsync/internal/common"
	"github.com/loykin/termsync/internal/constants"
	"github.com/loykin/termsync/internal/goapi"
	"github.com/loykin/termsync/internal/metrics"
	"github.com/loykin/termsync/internal/store"
	"github.com/loykin/termsync/internal/store/connector"
	"github.com/loykin/termsync/internal/util"
)

const maxReportedErrors = 10

// Executor is the subset of store.Handler used to write terms.
type Executor interface {
	ExecuteStoredProcedure(ctx context.Context, procedure string, params []store.Param) error
}

// Options configures one term run.
type Options struct {
	BaseURL     string
	CaseType    string
	StartTermID string
	TermSetUUID string
	// StoredProcedure is qualified with the rpa schema unless it names one.
	StoredProcedure string
	// OutputFile, when set, receives the fetched tree as indented JSON.
	OutputFile string
	PageLimit  int
	LCID       int
	SSPID      string
	Metrics    *metrics.Run
}

func (o Options) pageLimit() int {
	if o.PageLimit > 0 {
		return o.PageLimit
	}
	return constants.DefaultTermPageLimit
}

func (o Options) lcid() int {
	if o.LCID > 0 {
		return o.LCID
	}
	return constants.DefaultTermLCID
}

func (o Options) sspID() string { return util.TrimWithDefault(o.SSPID, constants.DefaultTermSSPID) }

// Procedure returns the schema-qualified stored procedure name.
func (o Options) Procedure() string {
	return connector.Qualify(o.StoredProcedure, constants.DefaultStoredProcedureSchema)
}

// Stats summarizes a run.
type Stats struct {
	Fetched int
	Written int
	Failed  int
}

// FormDigestURL is the page the request digest is scraped from.
func FormDigestURL(baseURL, caseType string) string {
	return util.JoinURL(baseURL, caseType+"/_layouts/15/termstoremanager.aspx")
}

// Sync obtains a form digest, fetches the whole hierarchy and writes it in
// pre-order. Nothing is written unless the full tree was fetched.
func Sync(ctx context.Context, client *goapi.Client, db Executor, opts Options) (Stats, error) {
	logger := common.GetLogger().WithProcess(constants.ProcessTerm)
	var stats Stats

	digest, err := client.GetFormDigest(ctx, FormDigestURL(opts.BaseURL, opts.CaseType))
	if err != nil {
		return stats, fmt.Errorf("term: %w", err)
	}
	headers := map[string]string{
		"Content-Type":                constants.ContentTypeJSONUTF8,
		constants.HeaderRequestDigest: digest,
	}

	tree, err := FetchTree(ctx, client, headers, opts)
	if err != nil {
		return stats, err
	}
	stats.Fetched = tree.Size()
	opts.Metrics.RowsFetched(stats.Fetched)
	logger.Info("term hierarchy fetched", "terms", stats.Fetched, "start_term", opts.StartTermID)

	if opts.OutputFile != "" {
		if err := SaveJSON(tree, opts.OutputFile); err != nil {
			return stats, err
		}
		logger.Info("term hierarchy saved", "file", opts.OutputFile)
	}

	written, failed, err := Insert(ctx, db, tree, opts)
	stats.Written, stats.Failed = written, failed
	return stats, err
}

// Insert writes every term of tree in pre-order through the stored procedure.
// The holder node is skipped. A failed row is logged and the walk continues;
// failures are returned together.
func Insert(ctx context.Context, db Executor, tree *Tree, opts Options) (written, failed int, err error) {
	logger := common.GetLogger().WithProcess(constants.ProcessTerm)
	proc := opts.Procedure()
	terms := Flatten(tree)

	var errs []error
	for _, t := range terms {
		if err := ctx.Err(); err != nil {
			return written, failed, err
		}
		var parent any
		if t.ParentID != "" {
			parent = t.ParentID
		}
		execErr := db.ExecuteStoredProcedure(ctx, proc, []store.Param{
			{Name: "name", Value: t.Name},
			{Name: "uuid", Value: t.ID},
			{Name: "parent_uuid", Value: parent},
			{Name: "term_set_uuid", Value: opts.TermSetUUID},
		})
		opts.Metrics.RowWritten(execErr)
		if execErr != nil {
			failed++
			logger.Error("failed to insert term", "error", execErr, "uuid", t.ID, "name", t.Name)
			if len(errs) < maxReportedErrors {
				errs = append(errs, execErr)
			}
			continue
		}
		written++
	}
	if failed > 0 {
		return written, failed, fmt.Errorf("term: %d of %d terms failed: %w", failed, len(terms), errors.Join(errs...))
	}
	logger.Info("term data inserted", "terms", written, "procedure", proc)
	return written, 0, nil
}

// SaveJSON writes tree to path as indented UTF-8 JSON without HTML escaping.
func SaveJSON(tree *Tree, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("term: create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("term: create output file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(tree); err != nil {
		_ = f.Close()
		return fmt.Errorf("term: write output file: %w", err)
	}
	return f.Close()
}
