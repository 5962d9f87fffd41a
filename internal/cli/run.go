package cli

import (
	"context"
	"io"
	"os"
)

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the semantic
// exit code plus any error.
func Run(ctx context.Context, args []string) (CLIResult, error) {
	return RunWithIO(ctx, args, os.Stdout, os.Stderr)
}

// RunWithIO is Run with explicit output streams. The summary line goes to
// stdout; logs and errors go to stderr.
func RunWithIO(ctx context.Context, args []string, stdout, stderr io.Writer) (CLIResult, error) {
	var res CLIResult
	cmd := NewRootCommand(stdout, stderr, &res)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if res.ExitCode == ExitSuccess {
			res.ExitCode = ExitCode(err)
		}
		return res, err
	}
	return res, nil
}
