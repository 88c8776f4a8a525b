package log

import (
	"time"

	"gopkg.in/Sirupsen/logrus.v0"
)

// LogContext lets callers inject ambient fields (build id, engine instance,
// current NSF path...) into every EntryZ without threading them through
// call sites. None are registered by default.
type LogContext interface {
	AddLogContext(e *EntryZ)
}

var contexts []LogContext

// RegisterContext adds a LogContext consulted by every EntryZ built from now
// on.
func RegisterContext(c LogContext) {
	contexts = append(contexts, c)
}

const maxZFields = 12

// EntryZ is a fixed-capacity, allocation-free log entry builder. Field
// setters and End() are nil-receiver safe so that a disabled log call
// (Module.DebugZ returning nil) chains and no-ops for free:
//
//	log.ModBank.DebugZ("bank miss").Hex8("bank", id).End()
type EntryZ struct {
	mod   Module
	lvl   Level
	msg   string
	zfbuf [maxZFields]ZField
	zfidx int
}

func NewEntryZ() *EntryZ {
	return &EntryZ{}
}

func (e *EntryZ) push(f ZField) *EntryZ {
	if e == nil || e.zfidx >= len(e.zfbuf) {
		return e
	}
	e.zfbuf[e.zfidx] = f
	e.zfidx++
	return e
}

func (e *EntryZ) String(key, val string) *EntryZ {
	return e.push(ZField{Type: FieldTypeString, Key: key, String: val})
}

func (e *EntryZ) Bool(key string, val bool) *EntryZ {
	return e.push(ZField{Type: FieldTypeBool, Key: key, Boolean: val})
}

func (e *EntryZ) Hex8(key string, val uint8) *EntryZ {
	return e.push(ZField{Type: FieldTypeHex8, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex16(key string, val uint16) *EntryZ {
	return e.push(ZField{Type: FieldTypeHex16, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex32(key string, val uint32) *EntryZ {
	return e.push(ZField{Type: FieldTypeHex32, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Int(key string, val int) *EntryZ {
	return e.push(ZField{Type: FieldTypeInt, Key: key, Integer: uint64(int64(val))})
}

func (e *EntryZ) Uint(key string, val uint64) *EntryZ {
	return e.push(ZField{Type: FieldTypeUint, Key: key, Integer: val})
}

func (e *EntryZ) Duration(key string, val time.Duration) *EntryZ {
	return e.push(ZField{Type: FieldTypeDuration, Key: key, Duration: val})
}

func (e *EntryZ) Error(key string, err error) *EntryZ {
	return e.push(ZField{Type: FieldTypeError, Key: key, Error: err})
}

// End flushes the entry to the underlying logger. A nil receiver (the
// module/level was disabled) is a no-op.
func (e *EntryZ) End() {
	if e == nil {
		return
	}

	for _, c := range contexts {
		c.AddLogContext(e)
	}

	fields := make(logrus.Fields, e.zfidx)
	for i := range e.zfbuf[:e.zfidx] {
		fields[e.zfbuf[i].Key] = e.zfbuf[i].Value()
	}

	entry := logrus.StandardLogger().WithField("_mod", modNames[e.mod]).WithFields(fields)
	switch e.lvl {
	case DebugLevel:
		entry.Debug(e.msg)
	case InfoLevel:
		entry.Info(e.msg)
	case WarnLevel:
		entry.Warn(e.msg)
	case ErrorLevel:
		entry.Error(e.msg)
	case FatalLevel:
		entry.Fatal(e.msg)
	case PanicLevel:
		entry.Panic(e.msg)
	}
}
