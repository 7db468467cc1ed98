// Package aftest holds helpers shared by tests across the module.
package aftest

import (
	"time"
)

// FatalHelper is the subset of [testing.TB] used by the channel helpers.
// Keeping it narrow lets the helpers themselves be tested with a fake.
type FatalHelper interface {
	Helper()

	Fatalf(format string, args ...any)
}

// ReceiveSoon receives a value from ch,
// failing the test if nothing arrives within a short default timeout.
func ReceiveSoon[T any](tb FatalHelper, ch <-chan T) T {
	tb.Helper()
	return ReceiveOrTimeout(tb, ch, ScaleMs(100))
}

// ReceiveOrTimeout receives a value from ch,
// failing the test if nothing arrives within timeout.
func ReceiveOrTimeout[T any](tb FatalHelper, ch <-chan T, timeout ScaledDuration) T {
	tb.Helper()

	if ch == nil {
		tb.Fatalf("refusing to block on receive from nil channel %T", ch)
		panic("unreachable")
	}

	timer := time.NewTimer(time.Duration(timeout))
	defer timer.Stop()

	select {
	case <-timer.C:
		tb.Fatalf(
			"timed out receiving from channel %T %v; set AZERO_TEST_TIME_FACTOR above %d if this only flakes on one machine",
			ch, ch, TimeFactor,
		)
		// Fatalf stops the goroutine under a real testing.T,
		// but the helper is also exercised with a fake.
		panic("unreachable")
	case x := <-ch:
		return x
	}
}

// ClosedSoon fails the test unless ch is closed within a short default timeout.
// Values still buffered in ch are drained and discarded.
func ClosedSoon[T any](tb FatalHelper, ch <-chan T) {
	tb.Helper()

	if ch == nil {
		tb.Fatalf("a nil channel %T is never closed", ch)
		panic("unreachable")
	}

	timer := time.NewTimer(time.Duration(ScaleMs(100)))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			tb.Fatalf("timed out waiting for channel %T %v to close", ch, ch)
			panic("unreachable")
		case _, ok := <-ch:
			if !ok {
				return
			}
		}
	}
}

// SendSoon sends x to ch,
// failing the test if the send blocks beyond a short default timeout.
func SendSoon[T any](tb FatalHelper, ch chan<- T, x T) {
	tb.Helper()

	if ch == nil {
		tb.Fatalf("refusing to block on send to nil channel %T", ch)
		panic("unreachable")
	}

	timer := time.NewTimer(time.Duration(ScaleMs(100)))
	defer timer.Stop()

	select {
	case <-timer.C:
		tb.Fatalf(
			"timed out sending to channel %T %v; set AZERO_TEST_TIME_FACTOR above %d if this only flakes on one machine",
			ch, ch, TimeFactor,
		)
		panic("unreachable")
	case ch <- x:
	}
}

// NotSending fails the test if a value is immediately available on ch.
func NotSending[T any](tb FatalHelper, ch <-chan T) {
	tb.Helper()

	if ch == nil {
		tb.Fatalf("cannot check that nil channel %T is not sending", ch)
		panic("unreachable")
	}

	select {
	case x := <-ch:
		tb.Fatalf("no value expected on channel %T %v; got %v", ch, ch, x)
	default:
	}
}
