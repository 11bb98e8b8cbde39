package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterReturnsOnlineList(t *testing.T) {
	reg := NewRegistry()

	online, err := reg.Register("conn-a", 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, online)

	online, err = reg.Register("conn-b", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, online)
	assert.True(t, reg.IsOnline(1))
	assert.True(t, reg.IsOnline(2))
}

func TestRegisterBindsExactlyOnce(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Register("conn-a", 1)
	require.NoError(t, err)

	_, err = reg.Register("conn-a", 2)
	require.ErrorIs(t, err, ErrAlreadyBound)

	// rebind attempt with the same user is still a second bind
	_, err = reg.Register("conn-a", 1)
	require.ErrorIs(t, err, ErrAlreadyBound)

	assert.Equal(t, []int{1}, reg.OnlineUsers())
}

func TestUnregisterRemovesUserAfterLastConnection(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register("conn-a", 1)
	require.NoError(t, err)

	online, changed := reg.Unregister("conn-a")
	assert.True(t, changed)
	assert.Empty(t, online)
	assert.False(t, reg.IsOnline(1))
}

func TestMultipleConnectionsCollapseToOneEntry(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Register("desktop", 7)
	require.NoError(t, err)
	online, err := reg.Register("phone", 7)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, online, "same user twice must appear once")

	// first disconnect: user still online, no broadcast
	_, changed := reg.Unregister("desktop")
	assert.False(t, changed)
	assert.True(t, reg.IsOnline(7))

	// last disconnect: exactly one offline broadcast
	online, changed = reg.Unregister("phone")
	assert.True(t, changed)
	assert.Empty(t, online)
	assert.False(t, reg.IsOnline(7))
}

func TestUnregisterUnknownConnectionIsNoop(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register("conn-a", 1)
	require.NoError(t, err)

	online, changed := reg.Unregister("never-joined")
	assert.False(t, changed)
	assert.Nil(t, online)
	assert.Equal(t, []int{1}, reg.OnlineUsers())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register("conn-a", 1)
	require.NoError(t, err)

	_, changed := reg.Unregister("conn-a")
	assert.True(t, changed)
	_, changed = reg.Unregister("conn-a")
	assert.False(t, changed)
}

func TestConcurrentRegisterUnregisterLeavesNoStaleEntries(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("conn-%d", i)
			if _, err := reg.Register(connID, i%10); err != nil {
				t.Errorf("register %s: %v", connID, err)
				return
			}
			reg.Unregister(connID)
		}(i)
	}
	wg.Wait()

	assert.Empty(t, reg.OnlineUsers(), "every connection disconnected, set must be empty")
}
