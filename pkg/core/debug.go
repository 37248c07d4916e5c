package core

// DebugMode controls whether the default fallback shows error details.
// When true, fallbacks show the error kind and stack trace even if the
// boundary's ShowErrorDetails is false.
var DebugMode = false

// SetDebugMode enables or disables debug mode for the runtime.
func SetDebugMode(debug bool) {
	DebugMode = debug
}
