package fetch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/marcohefti/polecat/internal/redact"
)

// leveledLogger adapts zap to retryablehttp.LeveledLogger. Values are
// redacted since the client logs request URLs.
type leveledLogger struct {
	log      *zap.Logger
	redactor *redact.Redactor
}

func (l leveledLogger) fields(kv []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		val := kv[i+1]
		if s, ok := val.(string); ok {
			out = append(out, zap.String(key, l.redactor.URL(s)))
			continue
		}
		if err, ok := val.(error); ok {
			out = append(out, zap.String(key, l.redactor.URL(err.Error())))
			continue
		}
		if s, ok := val.(fmt.Stringer); ok {
			out = append(out, zap.String(key, l.redactor.URL(s.String())))
			continue
		}
		out = append(out, zap.Any(key, val))
	}
	return out
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error(msg, l.fields(kv)...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debug(msg, l.fields(kv)...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debug(msg, l.fields(kv)...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn(msg, l.fields(kv)...) }
