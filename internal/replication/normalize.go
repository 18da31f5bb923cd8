package replication

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tillsync/internal/model"
	"github.com/roach88/tillsync/internal/remote"
)

type remoteNotification struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	StoreID   string          `json:"storeId"`
	Read      bool            `json:"read"`
	CreatedAt json.RawMessage `json:"createdAt"`
}

// Normalize converts a remote notification document into the local record
// shape. createdAt may be an RFC 3339 string, epoch milliseconds, or a
// {seconds, nanoseconds} timestamp object. A missing createdAt stays zero
// so that replaying a change is idempotent.
func Normalize(doc remote.Document, storeID string) (model.Notification, error) {
	var r remoteNotification
	if err := json.Unmarshal(doc.Data, &r); err != nil {
		return model.Notification{}, fmt.Errorf("decode notification %s: %w", doc.ID, err)
	}
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return model.Notification{}, fmt.Errorf("notification %s createdAt: %w", doc.ID, err)
	}
	id := doc.ID
	if id == "" {
		id = r.ID
	}
	if id == "" {
		return model.Notification{}, errors.New("notification without id")
	}
	if r.StoreID == "" {
		r.StoreID = storeID
	}
	return model.Notification{
		ID:        id,
		Type:      r.Type,
		Title:     r.Title,
		Message:   r.Message,
		StoreID:   r.StoreID,
		Read:      r.Read,
		CreatedAt: createdAt,
	}, nil
}

type timestampObject struct {
	Seconds      *int64 `json:"seconds"`
	Nanoseconds  int64  `json:"nanoseconds"`
	USeconds     *int64 `json:"_seconds"`
	UNanoseconds int64  `json:"_nanoseconds"`
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	case '{':
		var o timestampObject
		if err := json.Unmarshal(raw, &o); err != nil {
			return time.Time{}, err
		}
		switch {
		case o.Seconds != nil:
			return time.Unix(*o.Seconds, o.Nanoseconds).UTC(), nil
		case o.USeconds != nil:
			return time.Unix(*o.USeconds, o.UNanoseconds).UTC(), nil
		}
		return time.Time{}, errors.New("timestamp object has no seconds")
	default:
		var ms int64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return time.Time{}, fmt.Errorf("unsupported timestamp %s", raw)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
}
