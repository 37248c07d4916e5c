// Package testing provides helpers for testing declui components.
//
// # Time
//
// FakeClock implements clock.Clock. Timers registered through AfterFunc fire
// synchronously, in deadline order, from inside Advance:
//
//	clk := uitest.NewFakeClock()
//	r := core.NewConditional(adaptor, core.ConditionalConfig{Clock: clk, Reactive: true, DebounceDelay: 50 * time.Millisecond})
//	loading.Set(true)
//	clk.Advance(50 * time.Millisecond)
//
// # Diagnostics
//
// ErrorRecorder captures everything reported through pkg/errors for the
// duration of a test:
//
//	rec := uitest.RecordErrors(t)
//	// ...
//	if len(rec.Warnings()) != 1 { ... }
//
// # Golden Snapshots
//
// CaptureSnapshot records a headless primitive tree with per-type IDs,
// layouts and properties. MatchesFile compares it against a JSON golden
// file; run with DECLUI_UPDATE_SNAPSHOTS=1 to rewrite the file:
//
//	uitest.CaptureSnapshot(doc.Primitive()).MatchesFile(t, "testdata/form.golden.json")
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import uitest "github.com/go-drift/declui/pkg/testing"
package testing
