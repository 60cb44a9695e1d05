package ir

// Version constants for the toolkit and the generated script format.
const (
	// ToolVersion is stamped into every generated script.
	ToolVersion = "0.3.0"

	// ScriptFormatVersion is the generated script layout version.
	ScriptFormatVersion = "1"
)
