package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSource covers backend unreachable, scan/listing failures and
	// malformed record files during enumeration.
	ErrSource = errors.New("source error")
	// ErrNormalization is returned when a field violates its required shape.
	ErrNormalization = errors.New("normalization error")
	// ErrWrite covers directory creation, removal, write and chown failures.
	ErrWrite = errors.New("write error")
	// ErrAccountLookup is returned when the unprivileged account cannot be resolved.
	ErrAccountLookup = errors.New("account lookup error")
	// ErrConfig is returned for invalid configuration before a run starts.
	ErrConfig = errors.New("config error")
)

// StageError wraps a pipeline failure with the stage it happened in and
// the image it concerns.
type StageError struct {
	Kind  error
	Stage string
	UUID  string
	Field string
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Stage != "" {
		b.WriteString(": ")
		b.WriteString(e.Stage)
	}
	if e.UUID != "" {
		fmt.Fprintf(&b, ": image %s", e.UUID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// SourceErrorf builds an ErrSource StageError.
func SourceErrorf(stage string, err error) error {
	return &StageError{Kind: ErrSource, Stage: stage, Err: err}
}

// NormalizationErrorf builds an ErrNormalization StageError for field.
func NormalizationErrorf(uuid, field, format string, args ...interface{}) error {
	return &StageError{
		Kind:  ErrNormalization,
		Stage: "normalize",
		UUID:  uuid,
		Field: field,
		Err:   fmt.Errorf(format, args...),
	}
}

// WriteErrorf builds an ErrWrite StageError.
func WriteErrorf(stage, uuid string, err error) error {
	return &StageError{Kind: ErrWrite, Stage: stage, UUID: uuid, Err: err}
}

// StageOf returns the stage recorded on err, or "" when err carries none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// KindOf returns the error kind name used for metrics labels.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrSource):
		return "source"
	case errors.Is(err, ErrNormalization):
		return "normalize"
	case errors.Is(err, ErrAccountLookup):
		return "account"
	case errors.Is(err, ErrWrite):
		return "write"
	case errors.Is(err, ErrConfig):
		return "config"
	default:
		return "unknown"
	}
}
