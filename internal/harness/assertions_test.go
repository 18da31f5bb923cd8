package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchSubset(t *testing.T) {
	actual := map[string]any{
		"id":     "o1",
		"synced": false,
		"total":  "10",
		"items":  []any{map[string]any{"quantity": float64(2)}},
		"audit":  map[string]any{"createdBy": "u1", "createdOffline": true},
	}

	_, ok := matchSubset(actual, map[string]any{"id": "o1", "synced": false})
	assert.True(t, ok)

	_, ok = matchSubset(actual, map[string]any{"audit": map[string]any{"createdBy": "u1"}})
	assert.True(t, ok, "nested maps match as subsets")

	_, ok = matchSubset(actual, map[string]any{"items": []any{map[string]any{"quantity": 2}}})
	assert.True(t, ok, "integers compare equal to decoded JSON numbers")

	msg, ok := matchSubset(actual, map[string]any{"total": "11"})
	assert.False(t, ok)
	assert.Contains(t, msg, "total")

	msg, ok = matchSubset(actual, map[string]any{"syncedAt": "2024-01-01T00:00:00Z"})
	assert.False(t, ok)
	assert.Contains(t, msg, "syncedAt: missing")

	_, ok = matchSubset(actual, map[string]any{"syncedAt": nil})
	assert.True(t, ok, "an expected null matches an omitted field")

	_, ok = matchSubset(nil, map[string]any{"id": "o1"})
	assert.False(t, ok)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := []TraceEvent{
		{Type: "invocation", Action: "a", Seq: 1},
		{Type: "completion", Action: "a", Seq: 2},
		{Type: "invocation", Action: "b", Seq: 3},
		{Type: "completion", Action: "b", Seq: 4},
	}
	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{"a", "b"}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{"b", "a"}})
	assert.ErrorContains(t, err, "invoked too early")

	err = assertTraceOrder(trace, Assertion{Actions: []string{"a", "c"}})
	assert.ErrorContains(t, err, "c not invoked")
}

func TestAssertTraceContains(t *testing.T) {
	trace := []TraceEvent{
		{Type: "invocation", Action: "network.observe", Args: map[string]any{"present": true}, Seq: 1},
	}
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "network.observe"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "network.observe", Args: map[string]any{"present": true}}))

	err := assertTraceContains(trace, Assertion{Action: "network.observe", Args: map[string]any{"present": false}})
	var ae *AssertionError
	assert.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, ae.Error(), "[1] invocation network.observe")
}
