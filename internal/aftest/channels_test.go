package aftest_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/fruitbox12/validator-azero/internal/aftest"
	"github.com/stretchr/testify/require"
)

type fakeFatal struct {
	HelperCalled bool
	Message      string
}

func (f *fakeFatal) Helper() { f.HelperCalled = true }

func (f *fakeFatal) Fatalf(format string, args ...any) {
	f.Message = fmt.Sprintf(format, args...)
}

func TestReceiveOrTimeout(t *testing.T) {
	t.Run("value arrives", func(t *testing.T) {
		t.Parallel()

		ch := make(chan int)
		go func() {
			time.Sleep(5 * time.Millisecond)
			ch <- 7
		}()

		ff := new(fakeFatal)
		require.Equal(t, 7, aftest.ReceiveOrTimeout(ff, ch, aftest.ScaleMs(1000)))
		require.True(t, ff.HelperCalled)
		require.Empty(t, ff.Message)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		ff := new(fakeFatal)
		require.Panics(t, func() {
			_ = aftest.ReceiveOrTimeout(ff, make(chan int), aftest.ScaleMs(5))
		})
		require.NotEmpty(t, ff.Message)
	})

	t.Run("nil channel fails immediately", func(t *testing.T) {
		t.Parallel()

		var ch chan int
		ff := new(fakeFatal)
		require.Panics(t, func() {
			_ = aftest.ReceiveOrTimeout(ff, ch, aftest.ScaleMs(1_000_000))
		})
		require.NotEmpty(t, ff.Message)
	})
}

func TestClosedSoon(t *testing.T) {
	t.Parallel()

	ch := make(chan int, 2)
	ch <- 1
	ch <- 2
	close(ch)

	ff := new(fakeFatal)
	aftest.ClosedSoon(ff, ch)
	require.Empty(t, ff.Message)

	ff = new(fakeFatal)
	require.Panics(t, func() {
		aftest.ClosedSoon(ff, make(chan int))
	})
	require.NotEmpty(t, ff.Message)
}

func TestNotSending(t *testing.T) {
	t.Parallel()

	ch := make(chan int, 1)

	ff := new(fakeFatal)
	aftest.NotSending(ff, ch)
	require.Empty(t, ff.Message)

	ch <- 1
	aftest.NotSending(ff, ch)
	require.Contains(t, ff.Message, "got 1")
}
