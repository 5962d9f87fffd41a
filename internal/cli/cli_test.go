package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	icl "qrbadge/internal/cli"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}

func newWorkDir(t *testing.T) string {
	t.Helper()
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "in", "delegates.csv"),
		"Name,Email,Committee,Country,Food Preference\n"+
			"Jane Doe,jane@example.org,Economics,Kenya,Vegan\n"+
			"Ali,ali@example.org,Health,Egypt,Halal\n"+
			",,,,\n")
	writeFile(t, filepath.Join(workDir, "qrbadge.yaml"), "qr:\n  resolution: 0\n  box_size: 2\nlog:\n  level: error\n")
	return workDir
}

func TestDeterministicInvocation_SameSeedSameArtifacts(t *testing.T) {
	var traces, records [2][]byte
	for i := range traces {
		workDir := newWorkDir(t)
		args := []string{
			"--workdir", workDir,
			"--output-dir", "out",
			"--trace", "trace.json",
			"--seed", "99",
			"in/delegates.csv",
		}
		var stdout bytes.Buffer
		res, err := icl.RunWithIO(context.Background(), args, &stdout, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("run %d err: %v", i, err)
		}
		if res.ExitCode != icl.ExitSuccess {
			t.Fatalf("run %d exit: %d", i, res.ExitCode)
		}
		if got := strings.TrimSpace(stdout.String()); got != "3 QR codes and 0 ID cards generated (3 rows attempted, 0 failed)" {
			t.Fatalf("unexpected summary line: %q", got)
		}
		traces[i] = readFile(t, filepath.Join(workDir, "trace.json"))
		records[i] = readFile(t, filepath.Join(workDir, "out", "output", "all_delegates.json"))
	}

	if !bytes.Equal(traces[0], traces[1]) {
		t.Fatalf("trace differs across identical runs")
	}
	if !bytes.Equal(records[0], records[1]) {
		t.Fatalf("records differ across identical runs")
	}
}

func TestPathResolution_RelativePathsResolveAgainstWorkDir(t *testing.T) {
	workDir := newWorkDir(t)
	otherCwd := t.TempDir()

	oldCwd, _ := os.Getwd()
	_ = os.Chdir(otherCwd)
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })

	args := []string{"--workdir", workDir, "-o", "nested/out", "--seed", "1", "in/delegates.csv"}
	res, err := icl.RunWithIO(context.Background(), args, &bytes.Buffer{}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("expected success, got %d", res.ExitCode)
	}
	if _, err := os.Stat(filepath.Join(workDir, "nested", "out", "output", "results.csv")); err != nil {
		t.Fatalf("expected outputs under workdir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(otherCwd, "nested")); !os.IsNotExist(err) {
		t.Fatalf("nothing should be written relative to the process cwd")
	}
}

func TestExitCodes(t *testing.T) {
	workDir := newWorkDir(t)

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"unknown flag", []string{"--workdir", workDir, "--bogus"}, icl.ExitInvalidInvocation},
		{"two inputs", []string{"--workdir", workDir, "a.csv", "b.csv"}, icl.ExitInvalidInvocation},
		{"missing input", []string{"--workdir", workDir, "missing.csv"}, icl.ExitConfigError},
		{"missing explicit config", []string{"--workdir", workDir, "--config", "none.yaml", "in/delegates.csv"}, icl.ExitConfigError},
		{"missing template fails every row", []string{"--workdir", workDir, "-o", "out", "--template", "none.png", "in/delegates.csv"}, icl.ExitRowFailures},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, _ := icl.RunWithIO(context.Background(), tc.args, &bytes.Buffer{}, &bytes.Buffer{})
			if res.ExitCode != tc.want {
				t.Fatalf("expected exit %d, got %d", tc.want, res.ExitCode)
			}
		})
	}
}

func TestHelp_ExitsZero(t *testing.T) {
	var stdout bytes.Buffer
	res, err := icl.RunWithIO(context.Background(), []string{"--help"}, &stdout, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("expected exit 0, got %d", res.ExitCode)
	}
	if !strings.Contains(stdout.String(), "qrbadge [input.csv]") {
		t.Fatalf("help output missing usage: %q", stdout.String())
	}
}
