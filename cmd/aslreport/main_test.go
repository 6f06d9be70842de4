package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aslreport/internal/api"
	"aslreport/internal/testsupport"
)

type cliTestEnv struct {
	configPath string
	dataDir    string
	inputDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "xdg"))
	t.Setenv("ASLREPORT_SERVER_BIND", "")
	t.Setenv("PORT", "")
	t.Setenv("ASLREPORT_RULES", "")

	env := &cliTestEnv{
		configPath: filepath.Join(base, "aslreport.toml"),
		dataDir:    filepath.Join(base, "data"),
		inputDir:   filepath.Join(base, "input"),
	}
	content := fmt.Sprintf("[paths]\ndata_dir = %q\nlog_dir = %q\n\n[server]\nbind = \"127.0.0.1:0\"\n",
		env.dataDir, filepath.Join(base, "logs"))
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestValidateDirectoryAndRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteSession(t, env.inputDir, "sub-01_", testsupport.PCASLMetadata(), testsupport.M0Metadata(), testsupport.ControlLabel(3))
	testsupport.WriteSession(t, env.inputDir, "sub-02_", testsupport.PCASLMetadata(), testsupport.M0Metadata(), testsupport.ControlLabel(3))

	out, _, err := runCLI(t, []string{"validate", env.inputDir}, env.configPath)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	requireContains(t, out, "== Validation ==")
	requireContains(t, out, "ASL was acquired on a 3T Siemens Prisma scanner")
	requireContains(t, out, "In total, 3 control-label pairs were acquired.")
	requireContains(t, out, "Labeling Type")
	requireContains(t, out, " saved (artifacts in ")

	out, _, err = runCLI(t, []string{"runs", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	var runs []api.RunSummary
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	if len(runs) != 1 || len(runs[0].Sources) != 6 || runs[0].Major != 0 {
		t.Fatalf("unexpected runs %#v", runs)
	}

	out, _, err = runCLI(t, []string{"runs", "show", runs[0].ID}, env.configPath)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	requireContains(t, out, "== Run "+runs[0].ID+" ==")
	requireContains(t, out, "ASL was acquired")

	out, _, err = runCLI(t, []string{"runs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("runs list table: %v", err)
	}
	requireContains(t, out, runs[0].ID)

	if _, _, err := runCLI(t, []string{"runs", "show", "missing"}, env.configPath); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateJSONWithoutSaving(t *testing.T) {
	env := setupCLITestEnv(t)
	aslPath := testsupport.WriteSession(t, env.inputDir, "sub-01_", testsupport.PCASLMetadata(), testsupport.M0Metadata(), testsupport.ControlLabel(1))
	m0Path := filepath.Join(env.inputDir, "sub-01_m0scan.json")
	tsvPath := filepath.Join(env.inputDir, "sub-01_aslcontext.tsv")

	out, _, err := runCLI(t, []string{"validate", "--json", "--no-save", aslPath, m0Path, tsvPath}, env.configPath)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	var resp api.ValidationResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode response: %v\n%s", err, out)
	}
	requireContains(t, resp.Report, "In total, 1 control-label pair was acquired.")
	requireContains(t, resp.Report, "TR for M0 is 6000ms.")

	out, _, err = runCLI(t, []string{"runs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestValidateStrictFailsOnMajorErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	broken := testsupport.With(testsupport.PCASLMetadata(), map[string]any{"PulseSequenceType": nil})
	testsupport.WriteSession(t, env.inputDir, "sub-01_", broken, testsupport.M0Metadata(), testsupport.ControlLabel(2))

	out, _, err := runCLI(t, []string{"validate", "--strict", "--no-save", env.inputDir}, env.configPath)
	if !errors.Is(err, errFindings) {
		t.Fatalf("expected errFindings, got %v", err)
	}
	requireContains(t, out, "== Major Errors ==")
	requireContains(t, out, "PulseSequenceType")
	requireContains(t, out, "Major errors found, cannot generate report.")
}

func TestValidateInputErrors(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"validate", filepath.Join(env.inputDir, "missing")}, env.configPath); !errors.Is(err, api.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing input, got %v", err)
	}

	aslPath := testsupport.WriteSession(t, env.inputDir, "sub-01_", testsupport.PCASLMetadata(), nil, nil)
	bad := filepath.Join(env.inputDir, "scan.nii")
	testsupport.WriteBytes(t, bad, []byte("not a nifti header"))
	if _, _, err := runCLI(t, []string{"validate", "--nifti", bad, aslPath}, env.configPath); !errors.Is(err, api.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad nifti, got %v", err)
	}
}

func TestRulesCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"rules", "--tier", "major"}, env.configPath)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	requireContains(t, out, "ArterialSpinLabelingType")
	if strings.Contains(out, "CONSISTENCY FIELD") {
		t.Fatal("consistency table should only be listed without --tier")
	}

	out, _, err = runCLI(t, []string{"rules"}, env.configPath)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	requireContains(t, out, "CONSISTENCY FIELD")

	out, _, err = runCLI(t, []string{"rules", "--dump"}, env.configPath)
	if err != nil {
		t.Fatalf("rules --dump: %v", err)
	}
	requireContains(t, out, "major:")

	if _, _, err := runCLI(t, []string{"rules", "--tier", "optional"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Rules: embedded")
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
}
