package logger

import (
	"context"
	"fmt"
	"recurring-card/pkg/common"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Notifier delivers an alert text somewhere a human will see it.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type AlertCore struct {
	core     zapcore.Core
	notifier Notifier
	minLevel zapcore.Level
}

func NewAlertCore(core zapcore.Core, notifier Notifier, minLevel zapcore.Level) *AlertCore {
	return &AlertCore{core: core, notifier: notifier, minLevel: minLevel}
}

func (a *AlertCore) Enabled(lvl zapcore.Level) bool {
	return a.core.Enabled(lvl)
}

func (a *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	return &AlertCore{
		core:     a.core.With(fields),
		notifier: a.notifier,
		minLevel: a.minLevel,
	}
}

func (a *AlertCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if a.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, a)
	}
	return checkedEntry
}

func (a *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if a.notifier != nil && entry.Level >= a.minLevel && shouldAlert(fields) {
		message := FormatAlert(entry, fields)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.notifier.Notify(ctx, message)
		}()
	}
	return a.core.Write(entry, fields)
}

func (a *AlertCore) Sync() error {
	return a.core.Sync()
}

func shouldAlert(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT && f.Type == zapcore.BoolType && f.Integer == 1 {
			return true
		}
	}
	return false
}

// FormatAlert renders an entry and its fields as a plain-text alert.
func FormatAlert(entry zapcore.Entry, fields []zapcore.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT {
			continue
		}
		f.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s alert\n\nMessage: %s\n", entry.Level.CapitalString(), entry.Message)
	if len(keys) > 0 {
		b.WriteString("\nFields:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, enc.Fields[k])
		}
	}
	fmt.Fprintf(&b, "\nTime: %s", entry.Time.Format("2006-01-02 15:04:05"))
	return b.String()
}
