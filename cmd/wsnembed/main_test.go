package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nearbyScenario = `{
  "name": "nearby",
  "nodes": [
    {"name": "nso", "role": "source", "x": 0, "y": 0, "power_dbm": 30},
    {"name": "nsi", "role": "sink", "x": 1, "y": 0, "power_dbm": 30}
  ],
  "blocks": [
    {"name": "bso", "role": "source"},
    {"name": "bsi", "role": "sink"}
  ],
  "links": [{"from": "bso", "to": "bsi"}],
  "anchors": [{"block": "bso", "node": "nso"}]
}`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd, a := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := executeRoot(context.Background(), cmd, a)
	return stdout.String(), err
}

func TestCheckReportsInitialFrontier(t *testing.T) {
	out, err := execute(t, "check", writeScenario(t, nearbyScenario))
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "nearby", report.Scenario)
	assert.Equal(t, "building", report.State)
	assert.True(t, report.Solvable)
	assert.Equal(t, 0, report.UsedTimeslots)
	// The direct hop to the sink block and a relay on the sink node.
	assert.Len(t, report.Possibilities, 2)
}

func TestRunCompletesEpisode(t *testing.T) {
	out, err := execute(t, "run", "--seed", "5", "--epsilon", "0", "--log-format", "json", writeScenario(t, nearbyScenario))
	require.NoError(t, err)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "complete", report.Outcome)
	assert.True(t, report.Complete)
	assert.Equal(t, 1, report.UsedTimeslots)
	assert.NotEmpty(t, report.RunID)
	assert.NotEmpty(t, report.Edges)
	for _, e := range report.Edges {
		assert.Equal(t, 0, e.Timeslot)
	}
}

func TestEvalSummarisesEpisodes(t *testing.T) {
	out, err := execute(t, "eval", "--episodes", "6", "--parallelism", "2", "--epsilon", "0", writeScenario(t, nearbyScenario))
	require.NoError(t, err)

	var report evalReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 6, report.Episodes)
	assert.Equal(t, 6, report.Completed)
	assert.Equal(t, 1.0, report.SuccessRate)
	assert.Equal(t, 1.0, report.MeanTimeslots)
}

func TestEnvironmentOverridesFlags(t *testing.T) {
	t.Setenv("WSNEMBED_MAX_STEPS", "0")
	out, err := execute(t, "run", writeScenario(t, nearbyScenario))
	require.NoError(t, err)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "step_limit", report.Outcome)
	assert.Empty(t, report.Edges)
}

func TestMissingScenarioFails(t *testing.T) {
	_, err := execute(t, "check", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestInvalidScenarioFails(t *testing.T) {
	_, err := execute(t, "check", writeScenario(t, `{"nodes": [{"name": "a", "role": "sink"}]}`))
	require.Error(t, err)
}

func TestFailedCommandStillTearsDown(t *testing.T) {
	cmd, a := newRootCmd()
	cmd.SetArgs([]string{"run", "--metrics-addr", "127.0.0.1:0", filepath.Join(t.TempDir(), "nope.json")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	require.Error(t, executeRoot(context.Background(), cmd, a))
	require.NotNil(t, a.metricsSrv, "setup should have started the metrics server")
	// A server that was shut down refuses to serve again.
	assert.ErrorIs(t, a.metricsSrv.ListenAndServe(), http.ErrServerClosed)
}

func TestEvalRejectsNegativeEpisodes(t *testing.T) {
	_, err := execute(t, "eval", "--episodes", "-1", writeScenario(t, nearbyScenario))
	require.ErrorContains(t, err, "must not be negative")
}
