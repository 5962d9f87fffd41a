package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewRootCommand builds the qrbadge command. The outcome of the run is stored
// in *res so callers can map it to a process exit status.
func NewRootCommand(stdout, stderr io.Writer, res *CLIResult) *cobra.Command {
	var v flagValues

	cmd := &cobra.Command{
		Use:   "qrbadge [input.csv]",
		Short: "Generate QR codes and ID badges for a delegate list",
		Long: `qrbadge reads a delegate table (Name, Email, Committee, Country,
Food Preference), gives every delegate a unique code derived from their
committee, and writes one QR image per delegate to qr_codes/.

With --template (or card.enabled in the config file) each QR image is also
pasted onto the template to produce a badge in id_cards/. Summary tables are
written to output/.

Settings come from flags, then QRBADGE_* environment variables, then the
config file, then built-in defaults.`,
		Args:          validateArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := canonicalize(cmd.Flags(), v, args)
			if err != nil {
				res.ExitCode = ExitCode(err)
				return err
			}
			out, err := Execute(cmd.Context(), inv, stdout, stderr)
			*res = out
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})
	bindFlags(cmd.Flags(), &v)
	return cmd
}

func validateArgs(_ *cobra.Command, args []string) error {
	if len(args) > 1 {
		return invalidInvocationf("expected at most one input file, got %d arguments", len(args))
	}
	return nil
}

// ParseInvocation parses command-line arguments into a canonical Invocation
// without running anything.
func ParseInvocation(args []string) (Invocation, error) {
	fs := pflag.NewFlagSet("qrbadge", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var v flagValues
	bindFlags(fs, &v)
	if err := fs.Parse(args); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	return canonicalize(fs, v, fs.Args())
}

// summaryLine is the user-facing result of a run.
func summaryLine(qrCodes, cards, attempted, failed int) string {
	return fmt.Sprintf("%d QR codes and %d ID cards generated (%d rows attempted, %d failed)", qrCodes, cards, attempted, failed)
}
