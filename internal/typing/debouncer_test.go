package typing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTouchCreatesEntryAndExpiryDestroysIt(t *testing.T) {
	d := NewDebouncerWithWindow(20 * time.Millisecond)

	d.Touch(1)
	assert.Equal(t, 1, d.ActiveCount())

	assert.Eventually(t, func() bool {
		return d.ActiveCount() == 0
	}, time.Second, 5*time.Millisecond, "entry must expire after the window")
}

func TestRepeatedTouchExtendsLifetime(t *testing.T) {
	d := NewDebouncerWithWindow(50 * time.Millisecond)

	d.Touch(1)
	for i := 0; i < 3; i++ {
		time.Sleep(25 * time.Millisecond)
		d.Touch(1)
		assert.Equal(t, 1, d.ActiveCount(), "entry must survive while signals keep arriving")
	}

	assert.Eventually(t, func() bool {
		return d.ActiveCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestForgetDropsEntryImmediately(t *testing.T) {
	d := NewDebouncerWithWindow(time.Minute)

	d.Touch(1)
	d.Touch(2)
	assert.Equal(t, 2, d.ActiveCount())

	d.Forget(1)
	assert.Equal(t, 1, d.ActiveCount())

	// forgetting an unknown user is a noop
	d.Forget(99)
	assert.Equal(t, 1, d.ActiveCount())
}
