package eventloop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownError_UnwrapsCause(t *testing.T) {
	cause := errors.New("selector closed mid-drain")
	err := &ShutdownError{LoopName: "loop-0", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "loop-0")
	assert.Contains(t, err.Error(), cause.Error())
}

func TestUnsupportedOperationError_UnwrapsSentinel(t *testing.T) {
	err := unsupported("Selector.Register")
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	assert.Contains(t, err.Error(), "Selector.Register")
}

func TestPanicError_UnwrapsErrorValue(t *testing.T) {
	cause := errors.New("inner failure")
	err := panicToError(cause)
	assert.ErrorIs(t, err, cause)
}

func TestPanicError_NonErrorValueHasNoUnwrap(t *testing.T) {
	err := panicToError("plain string panic")
	var pe PanicError
	assert.ErrorAs(t, err, &pe)
	assert.Nil(t, pe.Unwrap())
	assert.Contains(t, err.Error(), "plain string panic")
}
