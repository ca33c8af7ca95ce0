package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Event is a real-time update notification: one object type and the
// entries that changed.
type Event struct {
	Object  string  `json:"object"`
	Entries []Entry `json:"entry"`
}

// Entry describes a change to one subject.
type Entry struct {
	UID           SubjectID `json:"uid,omitempty"`
	ID            SubjectID `json:"id,omitempty"`
	Time          int64     `json:"time"`
	ChangedFields []string  `json:"changed_fields"`
}

// Subject returns the numeric identifier of the changed object. User
// subscriptions set uid; page subscriptions set id.
func (e Entry) Subject() int64 {
	if e.UID != 0 {
		return int64(e.UID)
	}
	return int64(e.ID)
}

// SubjectID is a platform object id. The platform sends ids both as JSON
// numbers and as numeric strings.
type SubjectID int64

// UnmarshalJSON accepts 123, "123" and null.
func (id *SubjectID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		data = []byte(s)
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid subject id %q", data)
	}
	*id = SubjectID(n)
	return nil
}

// MarshalJSON writes the id as a string, the way the platform does.
func (id SubjectID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(id.String())), nil
}

func (id SubjectID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseEvent decodes a verified request body.
func ParseEvent(rawBody []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, err
	}
	if event.Object == "" {
		return nil, errors.New("event has no object type")
	}
	return &event, nil
}
