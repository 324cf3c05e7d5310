package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/loykin/termsync/internal/common"
	"github.com/loykin/termsync/internal/constants"
)

// RunArguments is the JSON object the orchestrator passes to each run.
type RunArguments struct {
	Process         string `mapstructure:"process"`
	CaseType        string `mapstructure:"caseType"`
	ViewID          string `mapstructure:"viewId"`
	BaseURL         string `mapstructure:"baseUrl"`
	StartTermID     string `mapstructure:"startTermId"`
	StoredProcedure string `mapstructure:"storedProcedure"`
	TermSetUUID     string `mapstructure:"termSetUuid"`

	// Table switches taxonomy writes from the stored procedure to a direct insert.
	Table string `mapstructure:"table"`
	// OutputFile receives the fetched term tree as JSON.
	OutputFile string `mapstructure:"outputFile"`
	PageLimit  int    `mapstructure:"pageLimit"`
	LCID       int    `mapstructure:"lcid"`
	SSPID      string `mapstructure:"sspId"`
}

// ParseRunArguments decodes raw JSON and fills defaults. Unknown keys are
// ignored and logged at debug level.
func ParseRunArguments(raw string) (RunArguments, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return RunArguments{}, fmt.Errorf("orchestrator: process arguments are not a JSON object: %w", err)
	}
	var args RunArguments
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &args,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return RunArguments{}, err
	}
	if err := dec.Decode(m); err != nil {
		return RunArguments{}, fmt.Errorf("orchestrator: decode process arguments: %w", err)
	}
	if len(md.Unused) > 0 {
		common.LogDebug("ignoring unknown process arguments", "keys", md.Unused)
	}

	args.Process = strings.TrimSpace(args.Process)
	args.BaseURL = strings.TrimRight(strings.TrimSpace(args.BaseURL), "/")
	args.CaseType = strings.Trim(strings.TrimSpace(args.CaseType), "/")
	if args.PageLimit <= 0 {
		args.PageLimit = constants.DefaultTermPageLimit
	}
	if args.LCID <= 0 {
		args.LCID = constants.DefaultTermLCID
	}
	if args.SSPID == "" {
		args.SSPID = constants.DefaultTermSSPID
	}
	return args, nil
}

// Validate checks the fields the selected process needs.
func (a RunArguments) Validate() error {
	var missing []string
	need := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	switch a.Process {
	case constants.ProcessTaxonomy:
		need("baseUrl", a.BaseURL)
		need("caseType", a.CaseType)
		need("viewId", a.ViewID)
	case constants.ProcessTerm:
		need("baseUrl", a.BaseURL)
		need("caseType", a.CaseType)
		need("storedProcedure", a.StoredProcedure)
		need("termSetUuid", a.TermSetUUID)
	default:
		return nil
	}
	if len(missing) > 0 {
		return fmt.Errorf("orchestrator: process %q requires %s", a.Process, strings.Join(missing, ", "))
	}

	var errs []error
	if a.TermSetUUID != "" {
		if _, err := uuid.Parse(a.TermSetUUID); err != nil {
			errs = append(errs, fmt.Errorf("termSetUuid: %w", err))
		}
	}
	if a.StartTermID != "" {
		if _, err := uuid.Parse(a.StartTermID); err != nil {
			errs = append(errs, fmt.Errorf("startTermId: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("orchestrator: invalid process arguments: %w", errors.Join(errs...))
	}
	return nil
}
