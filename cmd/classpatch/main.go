// classpatch applies class templates to class images.
//
// Usage:
//
//	classpatch apply                  # patch the images listed in classpatch.toml
//	classpatch match IMAGE TEMPLATE   # print the bindings of a match
//	classpatch render IMAGE [CLASS]   # write a template describing classes
//	classpatch dump IMAGE [CLASS]     # disassemble an image
//	classpatch cache prune            # drop old cached matches
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var version = "0.1.0-dev"

var log = commonlog.GetLogger("classpatch.cli")

type globalFlags struct {
	verbose int
	logFile string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "classpatch",
		Short:         "Match and rewrite classes with declarative templates",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(g.verbose, g.logFile)
		},
	}
	rootCmd.PersistentFlags().CountVarP(&g.verbose, "verbose", "v", "Increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().StringVar(&g.logFile, "log-file", "", "Write logs to a file instead of stderr")

	rootCmd.AddCommand(
		newApplyCommand(g),
		newMatchCommand(),
		newRenderCommand(),
		newDumpCommand(),
		newCacheCommand(),
	)
	return rootCmd
}

func configureLogging(verbosity int, file string) {
	if file == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &file)
}
