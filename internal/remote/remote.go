// Package remote defines the surface of the remote system of record that
// the on-device core consumes: document queries that report whether they
// were served fresh or from the client's cache, writes, and live
// subscriptions with change events.
package remote

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrOffline is returned when the origin is unreachable and no cached
// response exists.
var ErrOffline = errors.New("remote unreachable and nothing cached")

// Document is one remote document.
type Document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the document body into out.
func (d Document) Decode(out any) error {
	return json.Unmarshal(d.Data, out)
}

// ReadMeta describes how a read was served.
type ReadMeta struct {
	// FromCache is true when the client answered from its local cache
	// instead of the origin.
	FromCache bool
}

// Query selects documents of one collection, optionally filtered by
// field equality.
type Query struct {
	Collection string
	Where      map[string]string
}

// Matches reports whether a flat attribute set satisfies every filter.
func (q Query) Matches(attrs map[string]string) bool {
	for k, v := range q.Where {
		if attrs[k] != v {
			return false
		}
	}
	return true
}

// ChangeType is the kind of a subscription event.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is one subscription event.
type Change struct {
	Type ChangeType
	Doc  Document
}

// Reader queries documents.
type Reader interface {
	Query(ctx context.Context, q Query) ([]Document, ReadMeta, error)
}

// Writer upserts documents.
type Writer interface {
	Put(ctx context.Context, collection, id string, body any) error
}

// Client is the document API used for reads and reconciliation writes.
type Client interface {
	Reader
	Writer
}

// Subscription is a live subscription. Stop cancels it and returns only
// after no further callbacks will run.
type Subscription interface {
	Stop()
}

// Subscriber opens live subscriptions. onChange receives every change
// event, possibly before Subscribe returns; a non-nil result asks for the
// change to be redelivered where the transport supports it. onError
// receives a terminal subscription error, after which no more changes are
// delivered.
type Subscriber interface {
	Subscribe(ctx context.Context, q Query, onChange func(Change) error, onError func(error)) (Subscription, error)
}
