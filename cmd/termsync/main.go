package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/loykin/termsync/internal/process"
	"github.com/loykin/termsync/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNoArguments = errors.New("no process arguments: use --process-arguments, TERMSYNC_PROCESS_ARGUMENTS or process_arguments in the config file")

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "termsync",
		Short: "Copy GetOrganized taxonomy and term data into SQL",
		Long: `termsync runs one orchestrated job: it pulls the TaxonomyHiddenList or a
term set hierarchy from GetOrganized and writes it to the database named by
the DbConnectionString constant.

The "process" argument must be "taxonomy" or "term". Any other value runs
nothing and fails the job with exit code 1, so a typo in the orchestrator
arguments is reported instead of passing silently.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}

	v.SetDefault("config", "")
	v.SetEnvPrefix("TERMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.PersistentFlags().String("config", v.GetString("config"), "path to a config yaml (see examples/config.yaml)")
	cmd.Flags().String("process-arguments", "", "JSON run arguments, e.g. {\"process\":\"taxonomy\",...}; process must be taxonomy or term")
	cmd.Flags().StringToString("constant", nil, "override an orchestrator constant (NAME=VALUE, repeatable)")

	_ = v.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("process_arguments", cmd.Flags().Lookup("process-arguments"))
	_ = v.BindPFlag("constant", cmd.Flags().Lookup("constant"))
	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var doc ConfigDoc
	if path, ok := util.TrimEmptyCheck(v.GetString("config")); ok {
		if err := doc.Load(path); err != nil {
			return err
		}
	}
	if err := doc.SetupLogging(); err != nil {
		return err
	}

	args := util.TrimWithDefault(v.GetString("process_arguments"), doc.ProcessArguments)
	if args == "" {
		return errNoArguments
	}
	conn, err := doc.Connection(args, v.GetStringMapString("constant"))
	if err != nil {
		return err
	}
	if err := DoWait(ctx, doc.Wait, doc.Client); err != nil {
		return err
	}
	return process.Process(ctx, conn, doc.Deps())
}

// execute runs cmd and reports failures through the exit handler.
func execute(ctx context.Context, cmd *cobra.Command) {
	if err := cmd.ExecuteContext(ctx); err != nil {
		exitHandler.LogFatalError(err, "termsync run failed")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	execute(ctx, newRootCmd(viper.GetViper()))
}
