package table

import (
	"errors"
	"fmt"
)

// Configuration error codes (T001-T099).
const (
	ErrFileNotFound     = "T001" // table file cannot be located
	ErrMalformed        = "T002" // file is not a valid workbook
	ErrMissingSheet     = "T003" // a required sheet is absent
	ErrBadRow           = "T004" // row has too few cells or a bad pattern
	ErrDuplicateFeature = "T005" // (feature, value, knob) declared twice
	ErrDuplicateMenu    = "T006" // BIOS menu id declared twice
	ErrUnboundVariable  = "T007" // output references a placeholder the pattern does not bind
	ErrUnknownOperation = "T008" // operation name is not a known step kind
	ErrKnobDump         = "T009" // BIOS knob dump cannot be read
)

// ConfigError reports a broken mapping table. There is no degraded mode:
// every ConfigError is fatal at load time.
type ConfigError struct {
	Code    string
	Path    string
	Sheet   string
	Row     int // 1-based, 0 when not row specific
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	loc := e.Path
	if e.Sheet != "" {
		loc += ":" + e.Sheet
	}
	if e.Row > 0 {
		loc += fmt.Sprintf(":%d", e.Row)
	}
	if loc != "" {
		loc += ": "
	}
	msg := fmt.Sprintf("[%s] %s%s", e.Code, loc, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is a mapping table configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
