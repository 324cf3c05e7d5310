// Package taxonomy copies the TaxonomyHiddenList of a GO case type into SQL.
package taxonomy

import (
	"context"
	"errors"
	"fmt"

	"github.com/loykin/termsync/internal/common"
	"github.com/loykin/termsync/internal/constants"
	"github.com/loykin/termsync/internal/goapi"
	"github.com/loykin/termsync/internal/metrics"
	"github.com/loykin/termsync/internal/store"
	"github.com/loykin/termsync/internal/util"
)

// Columns are the list fields persisted per row, in stored procedure order.
var Columns = []string{"ID", "Title", "IdForTermStore", "IdForTerm", "IdForTermSet", "Path"}

// CaseTypeColumn carries the case type alongside each row.
const CaseTypeColumn = "CaseType"

// maxReportedErrors bounds the joined error of a run with many failed rows.
const maxReportedErrors = 10

// Writer is the subset of store.Handler used by Sync.
type Writer interface {
	ExecuteStoredProcedure(ctx context.Context, procedure string, params []store.Param) error
	InsertRows(ctx context.Context, table string, columns []string, rows []store.Row) (int, error)
}

// Options configures one taxonomy run.
type Options struct {
	BaseURL  string
	CaseType string
	ViewID   string
	// StoredProcedure defaults to rpa.GO_TaxonomyList_Insert.
	StoredProcedure string
	// Table, when set, bypasses the stored procedure and inserts rows directly.
	Table    string
	MaxPages int
	Metrics  *metrics.Run
}

// Stats summarizes a run.
type Stats struct {
	Fetched int
	Written int
	Failed  int
}

// Endpoint returns the RenderListDataAsStream path of the hidden taxonomy list.
func Endpoint(caseType string) string {
	return fmt.Sprintf("/%s/_api/web/GetList('%%2F%s%%2FLists%%2FTaxonomyHiddenList')/RenderListDataAsStream", caseType, caseType)
}

// InitialURL is the first page of the list for the given view.
func InitialURL(baseURL, caseType, viewID string) string {
	return util.JoinURL(baseURL, Endpoint(caseType)) + "?Paged=TRUE&p_ID=0&PageFirstRow=31&View=" + viewID
}

// Params maps a list row to stored procedure parameters. Missing fields become "".
func Params(row goapi.Row, caseType string) []store.Param {
	params := make([]store.Param, 0, len(Columns)+1)
	for _, c := range Columns {
		params = append(params, store.Param{Name: c, Value: util.AnyToString(row[c])})
	}
	return append(params, store.Param{Name: CaseTypeColumn, Value: caseType})
}

// Record maps a list row to a table row for direct inserts.
func Record(row goapi.Row, caseType string) store.Row {
	rec := make(store.Row, len(Columns)+1)
	for _, p := range Params(row, caseType) {
		rec[p.Name] = p.Value
	}
	return rec
}

// Sync fetches every page of the list and writes all rows. Nothing is written
// when fetching fails. Individual row failures do not stop the run; they are
// reported together in the returned error.
func Sync(ctx context.Context, client *goapi.Client, db Writer, opts Options) (Stats, error) {
	logger := common.GetLogger().WithProcess(constants.ProcessTaxonomy)
	var stats Stats

	listOpts := []goapi.ListOption{goapi.WithPageObserver(opts.Metrics)}
	if opts.MaxPages > 0 {
		listOpts = append(listOpts, goapi.WithMaxPages(opts.MaxPages))
	}
	endpoint := Endpoint(opts.CaseType)
	lh := goapi.NewListHandler(client, opts.BaseURL, endpoint, listOpts...)

	rows, err := lh.ProcessData(ctx, InitialURL(opts.BaseURL, opts.CaseType, opts.ViewID))
	if err != nil {
		return stats, fmt.Errorf("taxonomy: fetch list: %w", err)
	}
	stats.Fetched = len(rows)
	logger.Info("taxonomy list fetched", "rows", len(rows), "case_type", opts.CaseType)

	if opts.Table != "" {
		recs := make([]store.Row, len(rows))
		for i, r := range rows {
			recs[i] = Record(r, opts.CaseType)
		}
		n, err := db.InsertRows(ctx, opts.Table, append(append([]string{}, Columns...), CaseTypeColumn), recs)
		if err != nil {
			stats.Failed = len(rows)
			return stats, fmt.Errorf("taxonomy: %w", err)
		}
		stats.Written = n
		opts.Metrics.RowsWritten(n)
		return stats, nil
	}

	proc := util.TrimWithDefault(opts.StoredProcedure, constants.DefaultTaxonomyProcedure)
	var errs []error
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		err := db.ExecuteStoredProcedure(ctx, proc, Params(r, opts.CaseType))
		opts.Metrics.RowWritten(err)
		if err != nil {
			stats.Failed++
			logger.Error("failed to insert record", "error", err, "id", util.AnyToString(r["ID"]))
			if len(errs) < maxReportedErrors {
				errs = append(errs, err)
			}
			continue
		}
		stats.Written++
	}
	if stats.Failed > 0 {
		return stats, fmt.Errorf("taxonomy: %d of %d rows failed: %w", stats.Failed, len(rows), errors.Join(errs...))
	}
	logger.Info("all rows have been inserted into the database", "rows", stats.Written, "procedure", proc)
	return stats, nil
}
