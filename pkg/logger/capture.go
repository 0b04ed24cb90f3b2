package logger

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Entry is a single captured log record. The same shape is used for the
// response log stream and for progress events, so handlers can forward
// entries without re-encoding. Data holds the structured fields for log
// entries and the whole payload for the terminal "finalData" event.
type Entry struct {
	TS      time.Time   `json:"ts"`
	Level   string      `json:"level"`
	Tag     string      `json:"tag"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Capture tees log entries written through a request-scoped logger into an
// in-memory buffer. An optional observer receives every entry as it is
// written, which is what the streaming endpoint subscribes to.
type Capture struct {
	mu       sync.Mutex
	entries  []Entry
	observer func(Entry)
	limit    int
}

// NewCapture creates a capture buffer holding at most limit entries.
// Entries beyond the limit are dropped silently; the buffer exists for
// diagnostics, not durability.
func NewCapture(limit int) *Capture {
	if limit <= 0 {
		limit = 2000
	}
	return &Capture{limit: limit}
}

// Observe registers a callback invoked synchronously for every captured
// entry. Only one observer is supported; later calls replace the earlier.
func (c *Capture) Observe(fn func(Entry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// Entries returns a copy of everything captured so far.
func (c *Capture) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Capture) add(e Entry) {
	c.mu.Lock()
	if len(c.entries) < c.limit {
		c.entries = append(c.entries, e)
	}
	observer := c.observer
	c.mu.Unlock()
	if observer != nil {
		observer(e)
	}
}

// WithCapture wraps base so that every entry at or above level also lands in
// the returned Capture, which holds at most limit entries. The returned
// logger is safe for concurrent use, same as any zap logger.
func WithCapture(base *zap.Logger, level zapcore.Level, limit int) (*zap.Logger, *Capture) {
	capture := NewCapture(limit)
	wrapped := base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, &captureCore{capture: capture, level: level})
	}))
	return wrapped, capture
}

// captureCore is a zapcore.Core that converts entries into Entry records.
type captureCore struct {
	capture *Capture
	level   zapcore.Level
	fields  []zapcore.Field
}

func (cc *captureCore) Enabled(level zapcore.Level) bool {
	return level >= cc.level
}

func (cc *captureCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &captureCore{capture: cc.capture, level: cc.level}
	clone.fields = append(clone.fields, cc.fields...)
	clone.fields = append(clone.fields, fields...)
	return clone
}

func (cc *captureCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if cc.Enabled(entry.Level) {
		return checked.AddCore(entry, cc)
	}
	return checked
}

func (cc *captureCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range cc.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	e := Entry{
		TS:      entry.Time,
		Level:   entry.Level.String(),
		Tag:     entry.LoggerName,
		Message: entry.Message,
	}
	// A typed nil map inside the interface would marshal as "data": null.
	if len(enc.Fields) > 0 {
		e.Data = enc.Fields
	}
	cc.capture.add(e)
	return nil
}

func (cc *captureCore) Sync() error { return nil }

// Field helpers keep call sites terse when attaching run context.
var (
	RunID = func(id string) zap.Field { return zap.String("run_id", id) }
	Phase = func(phase string) zap.Field { return zap.String("phase", phase) }
	CID   = func(cid string) zap.Field { return zap.String("cid", cid) }
)
