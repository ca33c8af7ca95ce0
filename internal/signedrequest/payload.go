package signedrequest

import (
	"encoding/json"
	"strconv"
)

// Payload is a verified signed request payload. Numbers are kept as
// json.Number so large platform ids survive without float rounding.
type Payload map[string]interface{}

// Has reports whether key is present and not null.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// String returns the value at key as a string. Numbers are formatted in
// their original JSON form; anything else yields "".
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Int64 returns the value at key as an integer, accepting both JSON numbers
// and numeric strings.
func (p Payload) Int64(key string) (int64, bool) {
	switch v := p[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Bind decodes the payload into v. Unknown fields are ignored.
func (p Payload) Bind(v interface{}) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
