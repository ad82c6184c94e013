package task

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResult(t *testing.T) {
	tk := FromResult(42)
	assert.Equal(t, StatusCompleted, tk.Status())

	v, err := tk.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFromErrorKeepsIdentity(t *testing.T) {
	boom := errors.New("boom")
	tk := FromError[int](boom)
	assert.True(t, tk.IsFaulted())

	_, err := tk.Await(context.Background())
	assert.True(t, err == boom)
}

func TestCanceledIsNotAFault(t *testing.T) {
	tk := Canceled[string]()
	assert.True(t, tk.IsCanceled())
	assert.False(t, tk.IsFaulted())

	_, err := tk.Await(context.Background())
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompletionSourceSettlesOnce(t *testing.T) {
	c := NewCompletionSource[int]()
	assert.Equal(t, StatusRunning, c.Task().Status())

	assert.True(t, c.TrySetResult(1))
	assert.False(t, c.TrySetResult(2))
	assert.False(t, c.TrySetError(errors.New("late")))
	assert.False(t, c.TrySetCanceled())

	v, err := c.Task().Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestAwaitStopsOnContext(t *testing.T) {
	c := NewCompletionSource[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Task().Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatusRunning, c.Task().Status())
}

func TestThen(t *testing.T) {
	t.Run("maps value", func(t *testing.T) {
		tk := Then(FromResult(2), func(v int) (string, error) {
			return "v" + string(rune('0'+v)), nil
		})
		v, err := tk.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "v2", v)
	})

	t.Run("passes fault through unchanged", func(t *testing.T) {
		boom := errors.New("boom")
		called := false
		tk := Then(FromError[int](boom), func(v int) (int, error) {
			called = true
			return v, nil
		})
		_, err := tk.Await(context.Background())
		assert.True(t, err == boom)
		assert.True(t, tk.IsFaulted())
		assert.False(t, called)
	})

	t.Run("passes cancellation through", func(t *testing.T) {
		tk := Then(Canceled[int](), func(v int) (int, error) { return v, nil })
		_, err := tk.Await(context.Background())
		assert.ErrorIs(t, err, ErrCanceled)
		assert.True(t, tk.IsCanceled())
	})

	t.Run("faults when mapper fails", func(t *testing.T) {
		bad := errors.New("bad")
		tk := Then(FromResult(1), func(int) (int, error) { return 0, bad })
		_, err := tk.Await(context.Background())
		assert.True(t, err == bad)
	})
}
