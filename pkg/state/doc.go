// Package state implements the reactive state manager: a registry of named,
// typed cells with computed cells, ordered synchronous notification and
// snapshot persistence.
//
// A Manager is confined to the UI thread. Notification is synchronous: Set
// returns only after every subscriber of the changed cell has run and every
// computed cell depending on it has been recomputed and, when its value
// changed, notified. When a subscriber sets state, the new value is stored
// immediately but the resulting notification round is queued until the
// current round completes. Within one outer Set no cell notifies its
// subscribers twice.
//
// Computed cells either declare their inputs explicitly or discover them by
// observing which cells their compute function reads:
//
//	count, _ := state.CreateState(m, "counter", 0)
//	label, _ := state.CreateComputed(m, "label", func() string {
//		return fmt.Sprintf("Count: %d", count.Get())
//	})
//
// Computed cells are recomputed in topological order, lowest height first,
// ties broken by key.
package state
