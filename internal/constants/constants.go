package constants

import "time"

// Orchestrator keys
const (
	// CredentialGoAPI names the credential holding the GO API service account.
	CredentialGoAPI = "go_api"
	// ConstantDbConnectionString names the constant holding the SQL connection string.
	ConstantDbConnectionString = "DbConnectionString"
)

// Sub-process names accepted in the "process" run argument.
const (
	ProcessTaxonomy = "taxonomy"
	ProcessTerm     = "term"
)

// HTTP defaults
const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultUserAgent      = "termsync/1.0"
	ContentTypeJSON       = "application/json"
	ContentTypeJSONUTF8   = "application/json; charset=UTF-8"
	HeaderRequestDigest   = "X-RequestDigest"
	// DefaultMaxPages bounds a NextHref chain.
	DefaultMaxPages = 10000
)

// Database defaults
const (
	DefaultStoredProcedureSchema = "rpa"
	DefaultTaxonomyProcedure     = "rpa.GO_TaxonomyList_Insert"

	DefaultMaxOpenConns    = 4
	DefaultMaxIdleConns    = 2
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultSQLiteMaxConns  = 1 // SQLite allows only one writer
)

// Term store defaults
const (
	DefaultTermPageLimit = 2000
	DefaultTermLCID      = 1030
	DefaultTermSSPID     = "fa62fa7306a44d3fac304c119cbd4bd7"
	EmptyGUID            = "00000000-0000-0000-0000-000000000000"
)
