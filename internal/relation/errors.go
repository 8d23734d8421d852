package relation

import (
	"errors"
	"fmt"
)

// ColumnError reports that a required column is missing from a relation,
// or that column sets that must agree do not.
type ColumnError struct {
	Message string

	// Missing lists the offending columns when known.
	Missing ColumnSet
}

func (e *ColumnError) Error() string {
	if e.Missing.IsEmpty() {
		return "column error: " + e.Message
	}
	return fmt.Sprintf("column error: %s (missing %s)", e.Message, e.Missing)
}

// EngineError reports an operation or helper object attached to an engine
// that does not support it, or engines that disagree where they must match.
type EngineError struct {
	Message string

	// Engine names the engine involved, if any.
	Engine string
}

func (e *EngineError) Error() string {
	if e.Engine == "" {
		return "engine error: " + e.Message
	}
	return fmt.Sprintf("engine error: %s (engine=%s)", e.Message, e.Engine)
}

// RelationalAlgebraError reports a structurally invalid combination of
// operations that is not purely about columns or engines.
type RelationalAlgebraError struct {
	Message string
}

func (e *RelationalAlgebraError) Error() string {
	return "relational algebra error: " + e.Message
}

// SerializationError reports malformed wire-format input.
type SerializationError struct {
	Message string

	// Path locates the offending node, e.g. "relations[1].base".
	Path string
}

func (e *SerializationError) Error() string {
	if e.Path == "" {
		return "serialization error: " + e.Message
	}
	return fmt.Sprintf("serialization error at %s: %s", e.Path, e.Message)
}

func newColumnError(missing ColumnSet, format string, args ...any) error {
	return &ColumnError{Message: fmt.Sprintf(format, args...), Missing: missing}
}

func newEngineError(engine Engine, format string, args ...any) error {
	e := &EngineError{Message: fmt.Sprintf(format, args...)}
	if engine != nil {
		e.Engine = engine.String()
	}
	return e
}

func newAlgebraError(format string, args ...any) error {
	return &RelationalAlgebraError{Message: fmt.Sprintf(format, args...)}
}

// NewEngineError builds an EngineError for use by engines and passes.
func NewEngineError(engine Engine, format string, args ...any) error {
	return newEngineError(engine, format, args...)
}

// NewSerializationError builds a SerializationError at path.
func NewSerializationError(path, format string, args ...any) error {
	return &SerializationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// IsColumnError reports whether err wraps a ColumnError.
func IsColumnError(err error) bool {
	var ce *ColumnError
	return errors.As(err, &ce)
}

// IsEngineError reports whether err wraps an EngineError.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// IsRelationalAlgebraError reports whether err wraps a RelationalAlgebraError.
func IsRelationalAlgebraError(err error) bool {
	var re *RelationalAlgebraError
	return errors.As(err, &re)
}

// IsSerializationError reports whether err wraps a SerializationError.
func IsSerializationError(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}
