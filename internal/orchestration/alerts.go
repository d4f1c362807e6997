package orchestration

import (
	"context"
	"encoding/json"
	"log"
)

// AlertSink receives out-of-band warnings and errors from the
// reconciliation loop (poll hiccups, timeouts). Implementations must be
// fire-and-forget: the loop never blocks on or reacts to sink behavior.
type AlertSink interface {
	OnWarn(ctx context.Context, event string, fields map[string]interface{})
	OnError(ctx context.Context, event string, fields map[string]interface{})
}

// LogAlertSink writes alerts as structured JSON log lines
type LogAlertSink struct{}

func (LogAlertSink) OnWarn(ctx context.Context, event string, fields map[string]interface{}) {
	logAlert("warn", event, fields)
}

func (LogAlertSink) OnError(ctx context.Context, event string, fields map[string]interface{}) {
	logAlert("error", event, fields)
}

func logAlert(level, event string, fields map[string]interface{}) {
	entry := map[string]interface{}{
		"level": level,
		"event": event,
	}
	for key, value := range fields {
		entry[key] = value
	}
	logJSON, _ := json.Marshal(entry)
	log.Println(string(logJSON))
}

// NopAlertSink discards everything; useful as a test default
type NopAlertSink struct{}

func (NopAlertSink) OnWarn(ctx context.Context, event string, fields map[string]interface{})  {}
func (NopAlertSink) OnError(ctx context.Context, event string, fields map[string]interface{}) {}
