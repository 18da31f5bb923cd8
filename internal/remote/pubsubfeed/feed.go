// Package pubsubfeed delivers remote change events from a Google Cloud
// Pub/Sub subscription as a remote.Subscriber.
//
// Each message carries one document in its data and routing in its
// attributes: collection, docId, changeType, and any filterable fields
// such as storeId.
package pubsubfeed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/roach88/tillsync/internal/logger"
	"github.com/roach88/tillsync/internal/remote"
)

// Attribute names read from each message.
const (
	AttrCollection = "collection"
	AttrDocID      = "docId"
	AttrChangeType = "changeType"
)

// Feed subscribes to one Pub/Sub subscription.
type Feed struct {
	client       *pubsub.Client
	subscription string
	log          *logger.Logger
}

var _ remote.Subscriber = (*Feed)(nil)

// New connects to project and reads from the named subscription.
func New(ctx context.Context, project, subscription string, log *logger.Logger) (*Feed, error) {
	if project == "" || subscription == "" {
		return nil, errors.New("pubsub project and subscription are required")
	}
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &Feed{
		client:       client,
		subscription: subscription,
		log:          logger.OrNop(log).Named("pubsubfeed"),
	}, nil
}

// Close releases the underlying client.
func (f *Feed) Close() error {
	return f.client.Close()
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Stop() {
	s.once.Do(s.cancel)
	<-s.done
}

// Subscribe starts receiving in the background. Messages outside q are
// acknowledged and dropped. A message is acknowledged only after onChange
// accepts it; a rejected one is nacked for redelivery. A receive failure
// is passed to onError once and ends the subscription.
func (f *Feed) Subscribe(ctx context.Context, q remote.Query, onChange func(remote.Change) error, onError func(error)) (remote.Subscription, error) {
	if q.Collection == "" {
		return nil, errors.New("subscribe: collection is required")
	}
	rctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	receiver := f.client.Subscriber(f.subscription)

	go func() {
		defer close(sub.done)
		err := receiver.Receive(rctx, func(mctx context.Context, msg *pubsub.Message) {
			lctx := f.log.WithField(mctx, "message_id", msg.ID)
			if f.deliver(lctx, q, msg.Attributes, msg.Data, onChange) {
				msg.Ack()
			} else {
				msg.Nack()
			}
		})
		if err != nil && rctx.Err() == nil && onError != nil {
			onError(err)
		}
	}()
	return sub, nil
}

// deliver hands one message to onChange and reports whether it should be
// acknowledged. Malformed and foreign messages are acknowledged so they
// are not redelivered forever.
func (f *Feed) deliver(ctx context.Context, q remote.Query, attrs map[string]string, data []byte, onChange func(remote.Change) error) bool {
	change, ok, err := Decode(q, attrs, data)
	if err != nil {
		f.log.Warn(ctx, "dropping malformed change", err)
		return true
	}
	if !ok {
		return true
	}
	if err := onChange(change); err != nil {
		f.log.Warn(f.log.WithField(ctx, "doc_id", change.Doc.ID), "change not applied, requesting redelivery", err)
		return false
	}
	return true
}

// Decode turns one message into a change. ok is false when the message
// does not belong to q.
func Decode(q remote.Query, attrs map[string]string, data []byte) (change remote.Change, ok bool, err error) {
	if attrs[AttrCollection] != q.Collection || !q.Matches(attrs) {
		return remote.Change{}, false, nil
	}
	id := attrs[AttrDocID]
	if id == "" {
		return remote.Change{}, false, errors.New("message has no docId attribute")
	}
	kind := remote.ChangeType(attrs[AttrChangeType])
	switch kind {
	case "":
		kind = remote.ChangeModified
	case remote.ChangeAdded, remote.ChangeModified, remote.ChangeRemoved:
	default:
		return remote.Change{}, false, fmt.Errorf("unknown change type %q", kind)
	}
	if kind != remote.ChangeRemoved && len(data) == 0 {
		return remote.Change{}, false, fmt.Errorf("%s change for %s has no body", kind, id)
	}
	return remote.Change{Type: kind, Doc: remote.Document{ID: id, Data: data}}, true, nil
}
