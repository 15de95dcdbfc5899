// Package affinity provides a goroutine-identity check used to enforce that
// certain EventLoop operations (Register, Deregister, Reregister, and the
// run loop itself) are only ever invoked from the loop's own worker
// goroutine.
//
// Go deliberately has no public goroutine-ID API, so this parses the
// numeric prefix out of runtime.Stack's "goroutine N [...]" header.
package affinity

import "runtime"

// CurrentGoroutineID returns an identifier for the calling goroutine, stable
// for the lifetime of that goroutine. It is not a public Go API guarantee,
// only an implementation detail of the runtime's debug output, so it must
// only be used for same-goroutine identity checks, never persisted or
// compared across processes.
func CurrentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// Token identifies one specific goroutine, captured once via Capture and
// later compared with Is from any goroutine.
type Token struct {
	id    uint64
	known bool
}

// Capture records the identity of the calling goroutine.
func Capture() Token {
	return Token{id: CurrentGoroutineID(), known: true}
}

// Is reports whether the calling goroutine is the one that produced t. A
// zero-value (uncaptured) Token never matches.
func (t Token) Is() bool {
	return t.known && CurrentGoroutineID() == t.id
}
