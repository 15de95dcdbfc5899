// Package eventloop provides the event-loop core of a non-blocking network
// I/O runtime: a fixed pool of single-threaded EventLoops multiplexing I/O
// readiness, immediate tasks, and time-scheduled tasks, plus a generic
// Future/Promise pair used to report the outcome of submitted work.
//
// # Architecture
//
// An [EventLoopGroup] owns a fixed number of [EventLoop] instances, each
// bound to exactly one worker goroutine. Callers obtain a loop via
// [EventLoopGroup.Next] and submit work with [EventLoop.Execute],
// [Submit], or [ScheduleTask]. Every callback a loop
// runs — I/O handlers, submitted tasks, scheduled tasks, Future callbacks —
// executes on that loop's single worker goroutine, in an order consistent
// with the order in which it was submitted.
//
// # Platform support
//
// I/O readiness is multiplexed using a platform-native [Selector]:
// epoll on Linux, kqueue on Darwin/BSD. Windows builds compile against a
// stub Selector that reports [ErrUnsupportedOperation], matching the
// "external collaborator" boundary the real primitive sits behind.
//
// # Thread affinity
//
// [EventLoop.InEventLoop] reports whether the calling goroutine is the
// loop's own worker goroutine. Selector interest changes
// ([EventLoop.Register], [EventLoop.Deregister], [EventLoop.Reregister])
// and Future callback delivery both depend on this invariant; see
// [EventLoop.Execute] for the cross-goroutine submission path.
package eventloop
