package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/cache_read_unreachable.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestRun_TraceSequence(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: seq
description: "trace numbering"
flow:
  - invoke: remote.offline
    args: { offline: true }
  - invoke: network.observe
    args: { present: false }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Trace, 4)
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Equal(t, "invocation", result.Trace[0].Type)
	assert.Equal(t, "completion", result.Trace[1].Type)
	assert.Equal(t, CaseOK, result.Trace[1].Case)
	assert.Nil(t, result.Trace[1].Result)
}

func TestRun_ExpectationFailuresAreReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong
description: "expects reachable after a cached read"
flow:
  - invoke: remote.read
    args: { fromCache: true }
    expect:
      case: ok
      result: { reachable: true }
  - invoke: session.activate
    args: { id: ghost }
assertions:
  - type: pending_count
    count: 3
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "reachable")
	assert.Contains(t, result.Errors[1], "unexpected error")
	assert.Contains(t, result.Errors[2], "pending_count")
}

func TestRun_ExpectedErrorCase(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: no_actor
description: "queueing without a session fails"
flow:
  - invoke: orders.queue
    args:
      order: { storeId: S1, items: [{ productId: p1, quantity: 1, unitPrice: "1" }] }
    expect:
      case: error
      error: authentication required
assertions:
  - type: final_state
    table: orders
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, CaseError, result.Trace[1].Case)
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_setup
description: "setup needs a valid session"
setup:
  - action: session.activate
    args: { id: ghost }
flow:
  - invoke: orders.reconcile
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (session.activate)")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\nflow: [{invoke: orders.reconcile}]", "name is required"},
		{"empty flow", "name: n\ndescription: d\nflow: []", "flow list"},
		{"unknown action", "name: n\ndescription: d\nflow: [{invoke: orders.explode}]", "unknown action"},
		{"unknown field", "name: n\ndescription: d\nflw: []", "failed to parse YAML"},
		{"bad tie policy", "name: n\ndescription: d\ntie_policy: coin\nflow: [{invoke: orders.reconcile}]", "tie_policy"},
		{"bad case", "name: n\ndescription: d\nflow: [{invoke: orders.reconcile, expect: {case: maybe}}]", "expect.case"},
		{"unknown table", "name: n\ndescription: d\nflow: [{invoke: orders.reconcile}]\nassertions: [{type: final_state, table: carts, count: 0}]", "unknown table"},
		{"reachability without expect", "name: n\ndescription: d\nflow: [{invoke: orders.reconcile}]\nassertions: [{type: reachability}]", "expect.reachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
