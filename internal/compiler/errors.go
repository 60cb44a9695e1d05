package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/pvl/internal/sysvar"
)

// Structure error codes (C001-C099).
const (
	ErrUnmatchedRepeat  = "C001" // Repeat without End
	ErrUnmatchedEnd     = "C002" // End without Repeat
	ErrEmptyRepeat      = "C003" // Repeat body has no statement
	ErrEmbeddedBlock    = "C004" // PREPARE/STEP inside a block
	ErrPrepareAfterStep = "C005" // PREPARE after the first STEP
	ErrBadRepeatCount   = "C006" // Repeat count is not a positive integer
)

// StructureError reports malformed block structure.
type StructureError struct {
	Code    string
	Line    int // 1-based index in the translated input, 0 if unknown
	Message string
}

func (e *StructureError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// TranslateError locates a translation failure in its input.
type TranslateError struct {
	Label string // file name or other input label
	Line  int    // 1-based
	Text  string
	Err   error
}

func (e *TranslateError) Error() string {
	return fmt.Sprintf("%s:%d: %q: %v", e.Label, e.Line, e.Text, e.Err)
}

func (e *TranslateError) Unwrap() error {
	return e.Err
}

// EnvironmentError reports a step that needs a specific Environment.
type EnvironmentError struct {
	Op  string
	Env sysvar.Environment
}

func (e *EnvironmentError) Error() string {
	env := string(e.Env)
	if env == "" {
		env = "unset"
	}
	return fmt.Sprintf("%s: invalid Environment %s", e.Op, env)
}

// TransitionError reports an Environment pair without generated code.
type TransitionError struct {
	From, To sysvar.Environment
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("no transition from %q to %q", e.From, e.To)
}

// FeatureError reports a feature setting missing from the feature table.
type FeatureError struct {
	Feature string
	Value   string
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("no knob mapping for feature %s=%s", e.Feature, e.Value)
}

// ErrNoKnobs is returned for a knob or feature step without settings.
var ErrNoKnobs = errors.New("missing parameters")

// IsStructureError reports whether err is a block structure error.
func IsStructureError(err error) bool {
	var se *StructureError
	return errors.As(err, &se)
}

// IsTranslateError reports whether err carries an input location.
func IsTranslateError(err error) bool {
	var te *TranslateError
	return errors.As(err, &te)
}
