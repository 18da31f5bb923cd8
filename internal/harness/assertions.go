package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/tillsync/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Type, ev.Action)
			if ev.Case != "" {
				fmt.Fprintf(&buf, " -> %s", ev.Case)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

type loader func(ctx context.Context, m *store.Manager) any

// collections maps final_state table names to their typed contents.
var collections = map[string]loader{
	store.CollSessions:      func(ctx context.Context, m *store.Manager) any { return m.Sessions().All(ctx) },
	store.CollProducts:      func(ctx context.Context, m *store.Manager) any { return m.Products().All(ctx) },
	store.CollOrders:        func(ctx context.Context, m *store.Manager) any { return m.Orders().All(ctx) },
	store.CollNotifications: func(ctx context.Context, m *store.Manager) any { return m.Notifications().All(ctx) },
	store.CollSettings:      func(ctx context.Context, m *store.Manager) any { return m.Settings().All(ctx) },
	store.CollCompanies:     func(ctx context.Context, m *store.Manager) any { return m.Companies().All(ctx) },
	store.CollStores:        func(ctx context.Context, m *store.Manager) any { return m.Stores().All(ctx) },
	store.CollBatches:       func(ctx context.Context, m *store.Manager) any { return m.Batches().All(ctx) },
}

// EvaluateAssertions checks every assertion against the trace and the
// harness state. It returns one message per failure.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, h *Harness) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(ctx, h, a)
		case AssertReachability:
			err = assertReachability(h, a)
		case AssertPendingCount:
			err = assertPendingCount(h, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Type != "invocation" || ev.Action != a.Action {
			continue
		}
		if len(a.Args) == 0 {
			return nil
		}
		if _, ok := matchSubset(ev.Args, a.Args); ok {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("invocation %s with args %v", a.Action, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first invocation of each action appears
// in the listed order. Other actions may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	first := make(map[string]int)
	for i, ev := range trace {
		if ev.Type != "invocation" {
			continue
		}
		if _, seen := first[ev.Action]; !seen {
			first[ev.Action] = i
		}
	}
	prev := -1
	for _, action := range a.Actions {
		pos, ok := first[action]
		if !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("order %v", a.Actions),
				Actual:   fmt.Sprintf("%s not invoked", action),
				Trace:    trace,
			}
		}
		if pos < prev {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("order %v", a.Actions),
				Actual:   fmt.Sprintf("%s invoked too early", action),
				Trace:    trace,
			}
		}
		prev = pos
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Type == "invocation" && ev.Action == a.Action {
			n++
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d invocations of %s", *a.Count, a.Action),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func assertFinalState(ctx context.Context, h *Harness, a Assertion) error {
	load, ok := collections[a.Table]
	if !ok {
		return fmt.Errorf("unknown table %q", a.Table)
	}
	generic, err := toGeneric(load(ctx, h.store))
	if err != nil {
		return err
	}
	docs, _ := generic.([]any)

	var matched []any
	for _, d := range docs {
		if len(a.Where) == 0 {
			matched = append(matched, d)
			continue
		}
		if _, ok := matchSubset(d, a.Where); ok {
			matched = append(matched, d)
		}
	}
	if a.Count != nil && len(matched) != *a.Count {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%d %s matching %v", *a.Count, a.Table, a.Where),
			Actual:   fmt.Sprintf("%d", len(matched)),
		}
	}
	if len(a.Expect) > 0 {
		if len(matched) == 0 {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s matching %v", a.Table, a.Where),
				Actual:   "no documents",
			}
		}
		for _, d := range matched {
			if msg, ok := matchSubset(d, a.Expect); !ok {
				return &AssertionError{
					Type:     AssertFinalState,
					Expected: fmt.Sprintf("%s %v", a.Table, a.Expect),
					Actual:   msg,
				}
			}
		}
	}
	return nil
}

func assertReachability(h *Harness, a Assertion) error {
	actual := map[string]any{
		"reachable": h.reach.IsReachable(),
		"network":   h.reach.NetworkPresent(),
	}
	if msg, ok := matchSubset(actual, a.Expect); !ok {
		return &AssertionError{Type: AssertReachability, Expected: fmt.Sprintf("%v", a.Expect), Actual: msg}
	}
	return nil
}

func assertPendingCount(h *Harness, a Assertion) error {
	if n := h.cache.PendingCount(); n != *a.Count {
		return &AssertionError{
			Type:     AssertPendingCount,
			Expected: fmt.Sprintf("%d pending orders", *a.Count),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// matchSubset reports whether every key in expected is present in actual
// with an equal value. Nested maps are matched as subsets too. Both sides
// are compared in their JSON shape, so YAML integers equal JSON numbers.
func matchSubset(actual any, expected map[string]any) (string, bool) {
	want, err := toGeneric(expected)
	if err != nil {
		return err.Error(), false
	}
	return subset("", actual, want)
}

func subset(path string, actual, expected any) (string, bool) {
	wantMap, ok := expected.(map[string]any)
	if !ok {
		if !reflect.DeepEqual(actual, expected) {
			return fmt.Sprintf("%s: want %v, got %v", displayPath(path), expected, actual), false
		}
		return "", true
	}
	gotMap, ok := actual.(map[string]any)
	if !ok {
		return fmt.Sprintf("%s: want object, got %v", displayPath(path), actual), false
	}
	keys := make([]string, 0, len(wantMap))
	for k := range wantMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		got, present := gotMap[k]
		if !present {
			if wantMap[k] == nil {
				continue
			}
			return fmt.Sprintf("%s: missing", displayPath(path+"."+k)), false
		}
		if msg, ok := subset(path+"."+k, got, wantMap[k]); !ok {
			return msg, false
		}
	}
	return "", true
}

func displayPath(p string) string {
	if p == "" {
		return "result"
	}
	return strings.TrimPrefix(p, ".")
}
