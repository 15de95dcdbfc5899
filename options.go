package eventloop

// loopConfig holds configuration resolved from LoopOption values.
type loopConfig struct {
	logger         Logger
	metricsEnabled bool
	tickBudget     int
}

// LoopOption configures an EventLoop at construction time.
type LoopOption interface {
	applyLoop(*loopConfig)
}

type loopOptionFunc func(*loopConfig)

func (f loopOptionFunc) applyLoop(c *loopConfig) { f(c) }

// WithLogger overrides the structured logger a loop uses for its own
// lifecycle and tick diagnostics. The default is the package-level logger
// set by SetDefaultLogger.
func WithLogger(logger Logger) LoopOption {
	return loopOptionFunc(func(c *loopConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithMetrics enables tick/queue/latency metrics collection, retrievable via
// EventLoop.Metrics. Disabled by default to keep the steady-state tick free
// of the bookkeeping.
func WithMetrics(enabled bool) LoopOption {
	return loopOptionFunc(func(c *loopConfig) {
		c.metricsEnabled = enabled
	})
}

// WithTickBudget bounds how many ready timer-queue entries a single tick
// will drain before yielding back to the Selector wait, preventing a flood
// of self-resubmitting tasks from starving I/O dispatch (
// scenario S6). A budget <= 0 means unbounded.
func WithTickBudget(n int) LoopOption {
	return loopOptionFunc(func(c *loopConfig) {
		c.tickBudget = n
	})
}

func resolveLoopConfig(opts []LoopOption) *loopConfig {
	cfg := &loopConfig{
		logger: defaultLogger(),
	}
	for _, o := range opts {
		if o != nil {
			o.applyLoop(cfg)
		}
	}
	return cfg
}

// groupConfig holds configuration resolved from GroupOption values.
type groupConfig struct {
	loopOptions []LoopOption
	logger      Logger
}

// GroupOption configures an EventLoopGroup at construction time.
type GroupOption interface {
	applyGroup(*groupConfig)
}

type groupOptionFunc func(*groupConfig)

func (f groupOptionFunc) applyGroup(c *groupConfig) { f(c) }

// WithLoopOptions passes the given LoopOptions through to every EventLoop
// the group constructs.
func WithLoopOptions(opts ...LoopOption) GroupOption {
	return groupOptionFunc(func(c *groupConfig) {
		c.loopOptions = append(c.loopOptions, opts...)
	})
}

// WithGroupLogger sets the logger used for the group's own orchestration
// (round-robin assignment is silent; graceful shutdown logs one record, with
// the failure count and the first failure, only when a loop fails to close).
func WithGroupLogger(logger Logger) GroupOption {
	return groupOptionFunc(func(c *groupConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

func resolveGroupConfig(opts []GroupOption) *groupConfig {
	cfg := &groupConfig{
		logger: defaultLogger(),
	}
	for _, o := range opts {
		if o != nil {
			o.applyGroup(cfg)
		}
	}
	return cfg
}
