package eventloop

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLoop_ExecuteRunsOnLoopThread(t *testing.T) {
	loop := newTestLoop(t)

	done := make(chan bool, 1)
	require.NoError(t, loop.Execute(func() {
		done <- loop.InEventLoop()
	}))

	select {
	case onLoop := <-done:
		assert.True(t, onLoop)
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestEventLoop_ExecuteOrderingIsFIFO(t *testing.T) {
	loop := newTestLoop(t)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, loop.Execute(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSubmit_ReturnsResultAsFuture(t *testing.T) {
	loop := newTestLoop(t)

	f := Submit(loop, func() (int, error) { return 7, nil })
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestSubmit_PropagatesTaskError(t *testing.T) {
	loop := newTestLoop(t)
	wantErr := errors.New("task failed")

	f := Submit(loop, func() (int, error) { return 0, wantErr })
	_, err := f.Wait()
	assert.ErrorIs(t, err, wantErr)
}

func TestScheduleTask_FiresNoSoonerThanDelay(t *testing.T) {
	loop := newTestLoop(t)

	start := time.Now()
	sched := ScheduleTask(loop, 50*time.Millisecond, func() (string, error) { return "fired", nil })
	v, err := sched.Future().Wait()
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "fired", v)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestScheduleTask_OrdersByDeadline(t *testing.T) {
	loop := newTestLoop(t)

	var mu sync.Mutex
	var order []string
	record := func(label string) { mu.Lock(); order = append(order, label); mu.Unlock() }

	var wg sync.WaitGroup
	wg.Add(3)
	ScheduleTask(loop, 30*time.Millisecond, func() (Void, error) { defer wg.Done(); record("third"); return Void{}, nil })
	ScheduleTask(loop, 10*time.Millisecond, func() (Void, error) { defer wg.Done(); record("first"); return Void{}, nil })
	ScheduleTask(loop, 20*time.Millisecond, func() (Void, error) { defer wg.Done(); record("second"); return Void{}, nil })
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestScheduled_CancelBeforeItRunsPreventsExecution(t *testing.T) {
	loop := newTestLoop(t)

	var ran atomic.Bool
	sched := ScheduleTask(loop, 200*time.Millisecond, func() (Void, error) {
		ran.Store(true)
		return Void{}, nil
	})

	assert.True(t, sched.Cancel())
	assert.False(t, sched.Cancel(), "cancelling twice is a no-op")

	_, err := sched.Future().Wait()
	assert.ErrorIs(t, err, ErrCancelled)
	time.Sleep(250 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestEventLoop_CloseGentlyFailsFarFutureScheduledTasks(t *testing.T) {
	loop, err := NewEventLoop("shutdown-fails-timers-test")
	require.NoError(t, err)

	a := ScheduleTask(loop, 10*time.Second, func() (Void, error) { return Void{}, nil })
	b := ScheduleTask(loop, 10*time.Second, func() (Void, error) { return Void{}, nil })
	c := ScheduleTask(loop, 10*time.Second, func() (Void, error) { return Void{}, nil })

	start := time.Now()
	_, err = loop.CloseGently().Wait()
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "shutdown must not wait out a far-future deadline")

	for _, sched := range []*Scheduled[Void]{a, b, c} {
		_, err := sched.Future().Wait()
		assert.ErrorIs(t, err, ErrShutdown)
	}
}

func TestScheduled_CancelAfterPopStillSettlesFuture(t *testing.T) {
	loop := newTestLoop(t)

	ready := make(chan struct{})
	release := make(chan struct{})
	sched := ScheduleTask(loop, 0, func() (int, error) {
		close(ready)
		<-release
		return 42, nil
	})

	<-ready
	// The task has already been popped and is running; Cancel must lose
	// the race and the future must still settle once the task completes.
	assert.False(t, sched.Cancel())
	close(release)

	v, err := sched.Future().Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestEventLoop_PanicInTaskDoesNotKillTheLoop(t *testing.T) {
	loop := newTestLoop(t)

	require.NoError(t, loop.Execute(func() { panic("boom") }))

	f := Submit(loop, func() (int, error) { return 1, nil })
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestEventLoop_CloseGentlyDrainsQueuedWorkFirst(t *testing.T) {
	loop, err := NewEventLoop("drain-test")
	require.NoError(t, err)

	var ran atomic.Bool
	require.NoError(t, loop.Execute(func() {
		time.Sleep(20 * time.Millisecond)
		ran.Store(true)
	}))

	_, err = loop.CloseGently().Wait()
	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestEventLoop_ExecuteAfterCloseGentlyIsRejected(t *testing.T) {
	loop, err := NewEventLoop("reject-test")
	require.NoError(t, err)

	_, err = loop.CloseGently().Wait()
	require.NoError(t, err)

	err = loop.Execute(func() {})
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestEventLoop_Metrics(t *testing.T) {
	loop, err := NewEventLoop("metrics-test", WithMetrics(true))
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = loop.CloseGently().Wait() })

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, loop.Execute(wg.Done))
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		return loop.Metrics().TasksRun >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestEventLoop_RegisterRequiresLoopThread(t *testing.T) {
	loop := newTestLoop(t)

	err := loop.Register(nil, InterestRead)
	var unsupportedErr *UnsupportedOperationError
	assert.ErrorAs(t, err, &unsupportedErr)
}
