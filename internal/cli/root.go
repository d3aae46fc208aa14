package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/mergeq/internal/ir"
)

// RootOptions holds the persistent flags every subcommand sees.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"
}

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the mergeq command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "mergeq",
		Short: "mergeq - sequential queue merge engine",
		Long: `Compile merge configurations, run merge sessions against a journal,
and verify recorded sessions by replaying them.`,
		Version:       fmt.Sprintf("%s (journal v%s)", ir.EngineVersion, ir.JournalVersion),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(
		NewCompileCommand(opts),
		NewValidateCommand(opts),
		NewRunCommand(opts),
		NewReplayCommand(opts),
		NewTestCommand(opts),
		NewTraceCommand(opts),
	)
	return cmd
}
