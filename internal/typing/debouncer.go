package typing

import (
	"sync"
	"time"
)

// Window is how long a typing entry survives without a new signal. Clients
// clear their indicator on the same schedule from signal receipt time.
const Window = time.Second

// Debouncer tracks display-only typing state. Signals are fire-and-forget:
// every Touch is rebroadcast immediately by the gateway, and the entry here
// expires on its own after Window of silence or when the user disconnects.
// Nothing is persisted and no other component queries this state.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[int]*time.Timer
}

// NewDebouncer creates a debouncer with the default window.
func NewDebouncer() *Debouncer {
	return NewDebouncerWithWindow(Window)
}

// NewDebouncerWithWindow creates a debouncer with a custom expiry window.
func NewDebouncerWithWindow(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		entries: make(map[int]*time.Timer),
	}
}

// Touch records a typing signal for the user, resetting the expiry timer.
// The entry is created on the first signal and destroyed when the timer
// fires.
func (d *Debouncer) Touch(userID int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.entries[userID]; ok {
		timer.Reset(d.window)
		return
	}
	d.entries[userID] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.entries, userID)
	})
}

// Forget drops the user's entry immediately. Called on disconnect so typing
// state never outlives the connection.
func (d *Debouncer) Forget(userID int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.entries[userID]; ok {
		timer.Stop()
		delete(d.entries, userID)
	}
}

// ActiveCount reports how many entries are currently tracked. Display-only,
// used by the debug surface and tests.
func (d *Debouncer) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
