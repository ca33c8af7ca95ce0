package logging

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// Field is one key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Strings(key string, values []string) Field { return Field{Key: key, Value: values} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Err attaches err under the "error" key.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Secret logs a masked form of value: only its last four characters survive,
// and only when it is long enough that they give nothing away.
func Secret(key, value string) Field {
	return Field{Key: key, Value: Redact(value)}
}

// Redact masks a credential for logging.
func Redact(value string) string {
	switch {
	case value == "":
		return ""
	case len(value) < 16:
		return "****"
	default:
		return "****" + value[len(value)-4:]
	}
}

// sensitiveKeys are masked even when logged with String or Any.
var sensitiveKeys = map[string]bool{
	"access_token":   true,
	"app_secret":     true,
	"password":       true,
	"session":        true,
	"signed_request": true,
	"verify_token":   true,
}

func isSensitive(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

func toZap(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if s, ok := f.Value.(string); ok && isSensitive(f.Key) {
			out = append(out, zap.String(f.Key, Redact(s)))
			continue
		}
		switch v := f.Value.(type) {
		case string:
			out = append(out, zap.String(f.Key, v))
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}
