package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/tillsync/internal/connectivity"
	"github.com/roach88/tillsync/internal/enrich"
	"github.com/roach88/tillsync/internal/replication"
	"github.com/roach88/tillsync/internal/session"
	"github.com/roach88/tillsync/internal/store"
	"github.com/roach88/tillsync/internal/testutil"
)

// ScenarioStart is the clock reading when every scenario begins.
var ScenarioStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Harness wires one scenario's components.
type Harness struct {
	store    *store.Manager
	reach    *connectivity.Classifier
	remote   *testutil.FakeRemote
	clock    *testutil.StepClock
	cache    *session.Cache
	worker   *replication.Worker
	orderIDs *seqIDs
	prodIDs  *seqIDs
	seq      int64
}

func newHarness(ctx context.Context, path string, scenario *Scenario) (*Harness, error) {
	tie := store.KeepExistingOnTie
	if scenario.TiePolicy == "prefer-incoming" {
		tie = store.PreferIncomingOnTie
	}
	h := &Harness{
		store:    store.New(path, store.Options{TiePolicy: tie}),
		reach:    connectivity.New(connectivity.Options{}),
		remote:   testutil.NewFakeRemote(),
		clock:    testutil.NewStepClock(ScenarioStart, time.Second),
		orderIDs: &seqIDs{prefix: "local-"},
		prodIDs:  &seqIDs{prefix: "prod-"},
	}
	if err := h.store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	cache, err := session.New(session.Options{
		Store:      h.store,
		Classifier: h.reach,
		Enricher:   enrich.New(enrich.Options{Sessions: h.store, Reach: h.reach, Now: h.clock.Now}),
		Remote:     h.remote,
		OrderIDs:   h.orderIDs,
		ProductIDs: h.prodIDs,
		Now:        h.clock.Now,
	})
	if err != nil {
		return nil, err
	}
	h.cache = cache
	worker, err := replication.New(replication.Options{Subscriber: h.remote, Store: h.store})
	if err != nil {
		return nil, err
	}
	h.worker = worker
	return h, nil
}

func (h *Harness) close() {
	h.worker.Stop()
	_ = h.store.Close()
}

// Run executes a scenario in a fresh temporary store and returns the
// result. An error is returned only when the scenario cannot run at all;
// failed expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "tillsync-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	h, err := newHarness(ctx, filepath.Join(dir, "scenario.db"), scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	for i, step := range scenario.Setup {
		if _, err := h.step(ctx, result, step.Action, step.Args); err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
	}
	for i, step := range scenario.Flow {
		out, err := h.step(ctx, result, step.Invoke, step.Args)
		for _, msg := range checkExpect(step.Expect, out, err) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
		}
	}
	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, h) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) step(ctx context.Context, result *Result, action string, args map[string]any) (any, error) {
	h.seq++
	result.addInvocation(action, args, h.seq)
	fn, ok := actions[action]
	var out any
	var err error
	if !ok {
		err = fmt.Errorf("unknown action %q", action)
	} else {
		out, err = fn(ctx, h, args)
	}
	generic, convErr := toGeneric(out)
	if convErr != nil && err == nil {
		err = convErr
	}
	h.seq++
	if err != nil {
		result.addCompletion(action, CaseError, nil, err.Error(), h.seq)
		return nil, err
	}
	result.addCompletion(action, CaseOK, generic, "", h.seq)
	return generic, nil
}

func checkExpect(expect *ExpectClause, out any, err error) []string {
	if expect == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}
	var errs []string
	switch expect.Case {
	case CaseOK:
		if err != nil {
			return []string{fmt.Sprintf("expected ok, got error: %v", err)}
		}
	case CaseError:
		if err == nil {
			return []string{"expected error, got ok"}
		}
		if expect.Error != "" && !strings.Contains(err.Error(), expect.Error) {
			errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", expect.Error, err.Error()))
		}
		return errs
	}
	if len(expect.Result) > 0 {
		if msg, ok := matchSubset(out, expect.Result); !ok {
			errs = append(errs, "result mismatch: "+msg)
		}
	}
	return errs
}

// seqIDs generates prefix-0001, prefix-0002, ...
type seqIDs struct {
	prefix string
	n      int
}

func (g *seqIDs) Generate() string {
	g.n++
	return fmt.Sprintf("%s%04d", g.prefix, g.n)
}
