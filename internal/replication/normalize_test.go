package replication

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/remote"
)

func TestNormalize_CreatedAtForms(t *testing.T) {
	want := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", `"2024-03-01T10:00:00+01:00"`, want},
		{"millis", `1709283600000`, want},
		{"seconds object", `{"seconds":1709283600,"nanoseconds":0}`, want},
		{"underscore object", `{"_seconds":1709283600,"_nanoseconds":0}`, want},
		{"null", `null`, time.Time{}},
		{"empty string", `""`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := remote.Document{ID: "n1", Data: json.RawMessage(`{"title":"x","createdAt":` + tt.raw + `}`)}
			n, err := Normalize(doc, "S1")
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(n.CreatedAt), "got %v", n.CreatedAt)
		})
	}
}

func TestNormalize_Fields(t *testing.T) {
	doc := remote.Document{ID: "n1", Data: json.RawMessage(`{"type":"stock","title":"Low","message":"m","read":true}`)}
	n, err := Normalize(doc, "S1")
	require.NoError(t, err)
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, "S1", n.StoreID, "store defaults to the subscribed store")
	assert.Equal(t, "stock", n.Type)
	assert.True(t, n.Read)
	assert.True(t, n.CreatedAt.IsZero())
}

func TestNormalize_Rejects(t *testing.T) {
	for name, doc := range map[string]remote.Document{
		"not json":     {ID: "n1", Data: json.RawMessage(`nope`)},
		"bool time":    {ID: "n1", Data: json.RawMessage(`{"createdAt":true}`)},
		"bad string":   {ID: "n1", Data: json.RawMessage(`{"createdAt":"yesterday"}`)},
		"empty object": {ID: "n1", Data: json.RawMessage(`{"createdAt":{}}`)},
		"no id at all": {Data: json.RawMessage(`{"title":"x"}`)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(doc, "S1")
			require.Error(t, err)
		})
	}
}
