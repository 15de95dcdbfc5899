package eventloop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	loop, err := NewEventLoop(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = loop.CloseGently().Wait()
	})
	return loop
}

func TestPromise_SucceedSettlesFuture(t *testing.T) {
	loop := newTestLoop(t)
	p := NewPromise[int](loop)
	f := p.Future()

	assert.False(t, f.IsDone())
	assert.True(t, p.Succeed(42))
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, f.IsDone())
}

func TestPromise_DoubleSettleIsIgnored(t *testing.T) {
	loop := newTestLoop(t)
	p := NewPromise[int](loop)

	assert.True(t, p.Succeed(1))
	assert.False(t, p.Succeed(2))
	assert.False(t, p.Fail(errors.New("too late")))

	v, err := p.Future().Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFuture_WhenSuccessAndWhenFailure(t *testing.T) {
	loop := newTestLoop(t)

	okFuture := NewSucceededFuture(loop, "ok")
	var gotSuccess string
	okFuture.WhenSuccess(func(v string) { gotSuccess = v })
	okFuture.WhenFailure(func(error) { t.Fatal("must not be called on success") })
	_, _ = okFuture.Wait()
	assert.Eventually(t, func() bool { return gotSuccess == "ok" }, time.Second, time.Millisecond)

	failErr := errors.New("boom")
	failFuture := NewFailedFuture[string](loop, failErr)
	var gotFailure error
	failFuture.WhenSuccess(func(string) { t.Fatal("must not be called on failure") })
	failFuture.WhenFailure(func(err error) { gotFailure = err })
	_, _ = failFuture.Wait()
	assert.Eventually(t, func() bool { return errors.Is(gotFailure, failErr) }, time.Second, time.Millisecond)
}

func TestMap_TransformsSuccessValue(t *testing.T) {
	loop := newTestLoop(t)
	f := NewSucceededFuture(loop, 2)

	doubled := Map(f, func(v int) (int, error) { return v * 2, nil })
	v, err := doubled.Wait()
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestMap_PropagatesUpstreamFailure(t *testing.T) {
	loop := newTestLoop(t)
	upstreamErr := errors.New("upstream failed")
	f := NewFailedFuture[int](loop, upstreamErr)

	called := false
	mapped := Map(f, func(v int) (int, error) {
		called = true
		return v, nil
	})
	_, err := mapped.Wait()
	assert.ErrorIs(t, err, upstreamErr)
	assert.False(t, called, "fn must never run once upstream has failed")
}

func TestMap_TrapsPanicAsFailure(t *testing.T) {
	loop := newTestLoop(t)
	f := NewSucceededFuture(loop, 1)

	mapped := Map(f, func(int) (int, error) { panic("kaboom") })
	_, err := mapped.Wait()
	require.Error(t, err)
	var panicErr PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
}

func TestFlatMap_ChainsAsyncSteps(t *testing.T) {
	loop := newTestLoop(t)
	f := NewSucceededFuture(loop, 10)

	chained := FlatMap(f, func(v int) (*Future[int], error) {
		return NewSucceededFuture(loop, v+5), nil
	})
	v, err := chained.Wait()
	require.NoError(t, err)
	assert.Equal(t, 15, v)
}

func TestFuture_And(t *testing.T) {
	loop := newTestLoop(t)
	a := NewSucceededFuture(loop, "left")
	b := NewSucceededFuture(loop, "right")

	pair, err := a.And(b).Wait()
	require.NoError(t, err)
	assert.Equal(t, [2]string{"left", "right"}, pair)
}

func TestFuture_AndFailsOnEitherFailure(t *testing.T) {
	loop := newTestLoop(t)
	failErr := errors.New("right side failed")
	a := NewSucceededFuture(loop, "left")
	b := NewFailedFuture[string](loop, failErr)

	_, err := a.And(b).Wait()
	assert.ErrorIs(t, err, failErr)
}

func TestAndAll_CollectsInInputOrder(t *testing.T) {
	loop := newTestLoop(t)
	futures := []*Future[int]{
		NewSucceededFuture(loop, 1),
		NewSucceededFuture(loop, 2),
		NewSucceededFuture(loop, 3),
	}
	results, err := AndAll(futures).Wait()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, results)
}

func TestAndAll_FailsOnFirstFailureButWaitsForAll(t *testing.T) {
	loop := newTestLoop(t)
	failErr := errors.New("middle failed")
	futures := []*Future[int]{
		NewSucceededFuture(loop, 1),
		NewFailedFuture[int](loop, failErr),
		NewSucceededFuture(loop, 3),
	}
	_, err := AndAll(futures).Wait()
	assert.ErrorIs(t, err, failErr)
}

func TestFuture_Cascade(t *testing.T) {
	loop := newTestLoop(t)
	source := NewSucceededFuture(loop, "value")
	target := NewPromise[string](loop)

	source.Cascade(target)
	v, err := target.Future().Wait()
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestFuture_WaitFromLoopThreadReturnsReentrantError(t *testing.T) {
	loop := newTestLoop(t)
	f := Submit(loop, func() (int, error) {
		inner := NewPromise[int](loop)
		inner.Succeed(1)
		_, err := inner.Future().Wait()
		return 0, err
	})
	_, err := f.Wait()
	assert.ErrorIs(t, err, ErrReentrantWait)
}
