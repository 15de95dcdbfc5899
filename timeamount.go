package eventloop

import "time"

// TimeAmount is an immutable duration expressed as a signed count of
// nanoseconds. The scheduling API itself takes and returns standard library
// types (ScheduleTask takes a time.Duration, ScheduledTask.ReadyTime returns
// a time.Time); Duration converts a TimeAmount for use there.
//
// TimeAmount is totally ordered by its nanosecond count. Arithmetic is the
// caller's responsibility not to overflow a signed 64-bit integer; this is a
// programming error, not a runtime failure mode.
type TimeAmount struct {
	nanos int64
}

// Nanoseconds constructs a TimeAmount directly from a count of nanoseconds.
func Nanoseconds(n int64) TimeAmount { return TimeAmount{nanos: n} }

// Microseconds constructs a TimeAmount of n microseconds.
func Microseconds(n int64) TimeAmount { return TimeAmount{nanos: n * int64(time.Microsecond)} }

// Milliseconds constructs a TimeAmount of n milliseconds.
func Milliseconds(n int64) TimeAmount { return TimeAmount{nanos: n * int64(time.Millisecond)} }

// Seconds constructs a TimeAmount of n seconds.
func Seconds(n int64) TimeAmount { return TimeAmount{nanos: n * int64(time.Second)} }

// Minutes constructs a TimeAmount of n minutes.
func Minutes(n int64) TimeAmount { return TimeAmount{nanos: n * int64(time.Minute)} }

// Hours constructs a TimeAmount of n hours.
func Hours(n int64) TimeAmount { return TimeAmount{nanos: n * int64(time.Hour)} }

// Nanos returns the amount as a signed count of nanoseconds.
func (t TimeAmount) Nanos() int64 { return t.nanos }

// Duration converts the amount to a time.Duration, for interop with APIs
// (timers, contexts) that require one.
func (t TimeAmount) Duration() time.Duration { return time.Duration(t.nanos) }

// Add returns the sum of two TimeAmounts.
func (t TimeAmount) Add(o TimeAmount) TimeAmount { return TimeAmount{nanos: t.nanos + o.nanos} }

// Sub returns the difference t - o.
func (t TimeAmount) Sub(o TimeAmount) TimeAmount { return TimeAmount{nanos: t.nanos - o.nanos} }

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater than o.
func (t TimeAmount) Compare(o TimeAmount) int {
	switch {
	case t.nanos < o.nanos:
		return -1
	case t.nanos > o.nanos:
		return 1
	default:
		return 0
	}
}

// Less reports whether t is strictly less than o.
func (t TimeAmount) Less(o TimeAmount) bool { return t.nanos < o.nanos }

// IsZero reports whether the amount is exactly zero nanoseconds.
func (t TimeAmount) IsZero() bool { return t.nanos == 0 }

// String renders the amount using time.Duration's formatting.
func (t TimeAmount) String() string { return t.Duration().String() }
