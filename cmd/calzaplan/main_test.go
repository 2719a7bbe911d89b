package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calzaplan/calzaplan/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errBuf bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writePlanDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		config.OrderFile:      "lines:\n  - {model: M1, volume: 300}\n",
		config.CatalogFile:    "models:\n  - model: M1\n    operations:\n      - {fraction: 1, description: costura, resource: MESA, rate: 100}\n",
		config.CalendarFile:   "days:\n  - {name: Lun, regular_minutes: 570, regular_headcount: 20}\n  - {name: Mar, regular_minutes: 570, regular_headcount: 20}\n  - {name: Mie, regular_minutes: 570, regular_headcount: 20}\n",
		config.CapacitiesFile: "capacities: {MESA: 12, PLANA: 8}\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "calzaplan")
}

func TestPlanCommandWritesResult(t *testing.T) {
	dir := writePlanDir(t)

	out, err := run(t, "plan", "--dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Weekly plan")
	assert.Contains(t, out, "M1")
	assert.FileExists(t, filepath.Join(dir, config.ResultFile))
}

func TestReportCommandRendersLastPlan(t *testing.T) {
	dir := writePlanDir(t)

	_, err := run(t, "plan", "--dir", dir)
	require.NoError(t, err)

	out, err := run(t, "report", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Weekly plan")
	assert.Contains(t, out, "M1")
}

func TestReportCommandRestoresCorruptResult(t *testing.T) {
	dir := writePlanDir(t)

	// Two passes so the second write leaves a .bak of the first.
	_, err := run(t, "plan", "--dir", dir)
	require.NoError(t, err)
	_, err = run(t, "plan", "--dir", dir)
	require.NoError(t, err)

	resultPath := filepath.Join(dir, config.ResultFile)
	require.NoError(t, os.WriteFile(resultPath, []byte("{broken"), 0644))

	out, err := run(t, "report", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Weekly plan")
	assert.Contains(t, out, "M1")

	// The corrupt bytes were set aside and the backup took their place.
	assert.FileExists(t, resultPath)
	entries, err := os.ReadDir(filepath.Join(dir, "quarantine"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), config.ResultFile)
}

func TestCompileCommandValidates(t *testing.T) {
	dir := writePlanDir(t)

	out, err := run(t, "compile", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 models")

	broken := t.TempDir()
	_, err = run(t, "compile", "--dir", broken)
	assert.Error(t, err)
}
