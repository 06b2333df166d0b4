package log

import "time"

// Field is a single structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

const errFieldKey = "error"

// Str creates a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Dur creates a duration field.
func Dur(key string, value time.Duration) Field { return Field{Key: key, Value: value.String()} }

// Any creates a field with an arbitrary value.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Err attaches an error to the entry.
func Err(err error) Field { return Field{Key: errFieldKey, Value: err} }

// Component tags the entry with a component name.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// Operation tags the entry with an operation name.
func Operation(name string) Field { return Field{Key: OperationKey, Value: name} }

// RequestID tags the entry with a request identifier.
func RequestID(id string) Field { return Field{Key: RequestIDKey, Value: id} }
