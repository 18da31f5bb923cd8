package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/tillsync/internal/remote"
)

// PutCall records one FakeRemote.Put.
type PutCall struct {
	Collection string
	ID         string
	Body       json.RawMessage
}

// FakeRemote is an in-memory remote.Client and remote.Subscriber.
//
// While offline, queries are answered from the documents already held
// with FromCache set, and puts fail with remote.ErrOffline. Change events
// are delivered synchronously by Emit.
type FakeRemote struct {
	mu       sync.Mutex
	docs     map[string]map[string]json.RawMessage
	offline  bool
	failPut  map[string]error
	puts     []PutCall
	queries  int
	subs     map[int]*fakeSubscription
	nextSub  int
	rejected []remote.Change
}

var (
	_ remote.Client     = (*FakeRemote)(nil)
	_ remote.Subscriber = (*FakeRemote)(nil)
)

func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		docs:    make(map[string]map[string]json.RawMessage),
		failPut: make(map[string]error),
		subs:    make(map[int]*fakeSubscription),
	}
}

// Seed stores body under collection/id without recording a put.
func (f *FakeRemote) Seed(collection, id string, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("FakeRemote.Seed: %v", err))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collection(collection)[id] = raw
}

// SetOffline toggles cache-only mode.
func (f *FakeRemote) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// FailPut makes every put of id fail with err. A nil err clears it.
func (f *FakeRemote) FailPut(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failPut, id)
		return
	}
	f.failPut[id] = err
}

// Puts returns every successful put in call order.
func (f *FakeRemote) Puts() []PutCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PutCall(nil), f.puts...)
}

// Queries returns how many queries were served.
func (f *FakeRemote) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// Doc returns the stored body of collection/id.
func (f *FakeRemote) Doc(collection, id string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.docs[collection][id]
	return raw, ok
}

func (f *FakeRemote) Query(_ context.Context, q remote.Query) ([]remote.Document, remote.ReadMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	ids := make([]string, 0, len(f.docs[q.Collection]))
	for id := range f.docs[q.Collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := []remote.Document{}
	for _, id := range ids {
		raw := f.docs[q.Collection][id]
		if q.Matches(attributes(id, raw)) {
			out = append(out, remote.Document{ID: id, Data: raw})
		}
	}
	return out, remote.ReadMeta{FromCache: f.offline}, nil
}

func (f *FakeRemote) Put(_ context.Context, collection, id string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return remote.ErrOffline
	}
	if err := f.failPut[id]; err != nil {
		return err
	}
	f.collection(collection)[id] = raw
	f.puts = append(f.puts, PutCall{Collection: collection, ID: id, Body: raw})
	return nil
}

type fakeSubscription struct {
	f        *FakeRemote
	id       int
	q        remote.Query
	onChange func(remote.Change) error
	onError  func(error)
}

func (s *fakeSubscription) Stop() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	delete(s.f.subs, s.id)
}

func (f *FakeRemote) Subscribe(_ context.Context, q remote.Query, onChange func(remote.Change) error, onError func(error)) (remote.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSubscription{f: f, id: f.nextSub, q: q, onChange: onChange, onError: onError}
	f.nextSub++
	f.subs[s.id] = s
	return s, nil
}

// ActiveSubscriptions returns the number of subscriptions not stopped.
func (f *FakeRemote) ActiveSubscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Emit stores the change and delivers it to every matching subscription.
func (f *FakeRemote) Emit(collection string, kind remote.ChangeType, id string, body any) {
	var raw json.RawMessage
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			panic(fmt.Sprintf("FakeRemote.Emit: %v", err))
		}
	}
	f.mu.Lock()
	if kind == remote.ChangeRemoved {
		delete(f.collection(collection), id)
	} else {
		f.collection(collection)[id] = raw
	}
	var targets []*fakeSubscription
	for _, s := range f.subs {
		if s.q.Collection == collection && (raw == nil || s.q.Matches(attributes(id, raw))) {
			targets = append(targets, s)
		}
	}
	f.mu.Unlock()

	change := remote.Change{Type: kind, Doc: remote.Document{ID: id, Data: raw}}
	for _, s := range targets {
		if err := s.onChange(change); err != nil {
			f.mu.Lock()
			f.rejected = append(f.rejected, change)
			f.mu.Unlock()
		}
	}
}

// Rejected returns the changes a subscriber asked to have redelivered.
func (f *FakeRemote) Rejected() []remote.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.Change, len(f.rejected))
	copy(out, f.rejected)
	return out
}

// FailSubscriptions ends every active subscription with err.
func (f *FakeRemote) FailSubscriptions(err error) {
	f.mu.Lock()
	subs := f.subs
	f.subs = make(map[int]*fakeSubscription)
	f.mu.Unlock()
	for _, s := range subs {
		if s.onError != nil {
			s.onError(err)
		}
	}
}

func (f *FakeRemote) collection(name string) map[string]json.RawMessage {
	c, ok := f.docs[name]
	if !ok {
		c = make(map[string]json.RawMessage)
		f.docs[name] = c
	}
	return c
}

// attributes flattens a document's top-level scalar fields to strings so
// queries can filter on them. The document id is exposed as "id".
func attributes(id string, raw json.RawMessage) map[string]string {
	attrs := map[string]string{"id": id}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return attrs
	}
	for k, v := range fields {
		switch v := v.(type) {
		case string:
			attrs[k] = v
		case bool, float64:
			attrs[k] = fmt.Sprint(v)
		}
	}
	return attrs
}
