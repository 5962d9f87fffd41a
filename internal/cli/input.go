package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
)

const (
	ExitSuccess           = 0
	ExitRowFailures       = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// DefaultConfigFile is read from the working directory when --config is not
// given. Its absence is not an error.
const DefaultConfigFile = "qrbadge.yaml"

// Invocation is the canonicalized description of a run as given on the
// command line.
//
// Paths are cleaned and resolved against WorkDir. Empty string fields and a nil
// Seed mean "not given"; the config file or its defaults decide.
type Invocation struct {
	WorkDir string

	// ConfigPath is the config file. ConfigExplicit is set when it came from
	// --config, in which case a missing file is an error.
	ConfigPath     string
	ConfigExplicit bool

	InputPath string
	OutputDir string
	Template  string
	TracePath string
	Seed      *uint64
	Verbose   bool
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitConfigError, Message: fmt.Sprintf(format, args...)}
}

// flagValues receives the raw flag values before canonicalization.
type flagValues struct {
	workDir   string
	config    string
	outputDir string
	template  string
	trace     string
	seed      uint64
	verbose   bool
}

func bindFlags(fs *pflag.FlagSet, v *flagValues) {
	fs.StringVar(&v.workDir, "workdir", "", "Directory relative paths resolve against (default: current directory)")
	fs.StringVarP(&v.config, "config", "c", "", "Config file (default: "+DefaultConfigFile+" if present)")
	fs.StringVarP(&v.outputDir, "output-dir", "o", "", "Directory for qr_codes/, id_cards/ and output/")
	fs.StringVarP(&v.template, "template", "t", "", "Badge template PNG; enables ID card generation")
	fs.StringVar(&v.trace, "trace", "", "Write the canonical run trace to this path")
	fs.Uint64Var(&v.seed, "seed", 0, "Seed for code allocation (default: random)")
	fs.BoolVarP(&v.verbose, "verbose", "v", false, "Enable debug logging")
}

// canonicalize turns parsed flags and positional args into an Invocation.
func canonicalize(fs *pflag.FlagSet, v flagValues, args []string) (Invocation, error) {
	if len(args) > 1 {
		return Invocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(args[1:], " "))
	}

	workDir := v.workDir
	if fs.Changed("workdir") {
		if strings.TrimSpace(workDir) == "" {
			return Invocation{}, invalidInvocationf("--workdir must not be empty")
		}
		workDir = filepath.Clean(workDir)
		if !filepath.IsAbs(workDir) {
			return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", workDir)
		}
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return Invocation{}, fmt.Errorf("resolving working directory: %w", err)
		}
		workDir = wd
	}

	inv := Invocation{WorkDir: workDir, Verbose: v.verbose}

	var err error
	if fs.Changed("config") {
		if inv.ConfigPath, err = resolveFlagPath(workDir, "--config", v.config); err != nil {
			return Invocation{}, err
		}
		inv.ConfigExplicit = true
	} else {
		inv.ConfigPath = filepath.Join(workDir, DefaultConfigFile)
	}
	if len(args) == 1 {
		if inv.InputPath, err = resolveFlagPath(workDir, "input", args[0]); err != nil {
			return Invocation{}, err
		}
	}
	if fs.Changed("output-dir") {
		if inv.OutputDir, err = resolveFlagPath(workDir, "--output-dir", v.outputDir); err != nil {
			return Invocation{}, err
		}
	}
	if fs.Changed("template") {
		if inv.Template, err = resolveFlagPath(workDir, "--template", v.template); err != nil {
			return Invocation{}, err
		}
	}
	if fs.Changed("trace") {
		if inv.TracePath, err = resolveFlagPath(workDir, "--trace", v.trace); err != nil {
			return Invocation{}, err
		}
	}
	if fs.Changed("seed") {
		seed := v.seed
		inv.Seed = &seed
	}
	return inv, nil
}

func resolveFlagPath(workDir, name, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("%s must not be empty", name)
	}
	return resolveUnderWorkDir(workDir, p), nil
}

// resolveUnderWorkDir cleans p and joins it to workDir unless it is absolute.
func resolveUnderWorkDir(workDir, p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean
	}
	return filepath.Join(workDir, clean)
}

// ExitCode extracts a semantic exit code from an error returned by this
// package. Unknown errors are internal errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	return ExitInternalError
}
