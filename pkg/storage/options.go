package storage

import "time"

// Options configures a Service. The zero value is not useful; build one
// with DefaultOptions and override what the test or caller needs.
type Options struct {
	// MaxLockTTL is the protocol constant bounding how long a lock may sit
	// before back_off_maybe_clean_up_lock treats it as abandoned and
	// attempts roll-forward/roll-back, measured in oracle timestamp units.
	MaxLockTTL uint64

	// CleanupBackoff is how long back_off_maybe_clean_up_lock sleeps, with
	// the table mutex released, before a caller retries Get against a
	// not-yet-expired lock.
	CleanupBackoff time.Duration
}

// DefaultOptions fixes MAX_LOCK_TTL at the value this expansion chose to
// resolve the spec's open 100ms-10s range (see DESIGN.md), and a cleanup
// backoff on the order the spec names for §5's suspension points.
func DefaultOptions() Options {
	return Options{
		MaxLockTTL:     100,
		CleanupBackoff: 500 * time.Millisecond,
	}
}
