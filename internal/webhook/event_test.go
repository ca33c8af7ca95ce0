package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	raw := []byte(`{
		"object": "user",
		"entry": [
			{"uid": "100001234567890", "id": "100001234567890", "time": 1700000000, "changed_fields": ["feed", "likes"]},
			{"uid": 42, "time": 1700000001, "changed_fields": []},
			{"id": "555", "time": 1700000002, "changed_fields": ["name"], "extra": true}
		]
	}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, "user", event.Object)
	require.Len(t, event.Entries, 3)

	assert.Equal(t, int64(100001234567890), event.Entries[0].Subject())
	assert.Equal(t, int64(1700000000), event.Entries[0].Time)
	assert.Equal(t, []string{"feed", "likes"}, event.Entries[0].ChangedFields)

	assert.Equal(t, int64(42), event.Entries[1].Subject())
	assert.Equal(t, int64(555), event.Entries[2].Subject())
}

func TestParseEvent_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "object=page"},
		{"missing object", `{"entry": []}`},
		{"non numeric id", `{"object": "page", "entry": [{"id": "abc"}]}`},
		{"fractional id", `{"object": "page", "entry": [{"id": 1.5}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestSubjectID_JSON(t *testing.T) {
	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(`{"uid": null, "id": ""}`), &entry))
	assert.Equal(t, int64(0), entry.Subject())

	out, err := json.Marshal(Entry{ID: 7, Time: 1, ChangedFields: []string{"feed"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7","time":1,"changed_fields":["feed"]}`, string(out))
}
