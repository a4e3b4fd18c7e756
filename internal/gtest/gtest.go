// Package gtest contains helpers shared across tests in this module.
package gtest

import (
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
)

// NewLogger returns a *slog.Logger whose output is routed through t.Log,
// so that log lines are associated with the test that produced them.
func NewLogger(t testing.TB) *slog.Logger {
	return slogt.New(t, slogt.Text())
}

// timeScale is a multiplier applied to all durations produced by [ScaleMs].
// Set GORDERING_TEST_TIME_SCALE to a larger value on slow machines.
var timeScale = func() float64 {
	s := os.Getenv("GORDERING_TEST_TIME_SCALE")
	if s == "" {
		return 1
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		panic("invalid GORDERING_TEST_TIME_SCALE: " + s)
	}
	return f
}()

// ScaleMs returns ms milliseconds, scaled by GORDERING_TEST_TIME_SCALE.
func ScaleMs(ms int64) time.Duration {
	return time.Duration(float64(ms) * timeScale * float64(time.Millisecond))
}

// ReceiveSoon receives a value from ch,
// failing the test if a value is not received within a short timeout.
func ReceiveSoon[T any](t testing.TB, ch <-chan T) T {
	t.Helper()
	return ReceiveOrTimeout(t, ch, ScaleMs(100))
}

// ReceiveOrTimeout receives a value from ch,
// failing the test if a value is not received within timeout.
func ReceiveOrTimeout[T any](t testing.TB, ch <-chan T, timeout time.Duration) T {
	t.Helper()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed before receiving value")
		}
		return v
	case <-timer.C:
		t.Fatalf("no value received within %s", timeout)
	}

	panic("unreachable")
}

// SendSoon sends v on ch,
// failing the test if the send does not complete within a short timeout.
func SendSoon[T any](t testing.TB, ch chan<- T, v T) {
	t.Helper()

	timer := time.NewTimer(ScaleMs(100))
	defer timer.Stop()

	select {
	case ch <- v:
		return
	case <-timer.C:
		t.Fatalf("channel not ready to send within %s", ScaleMs(100))
	}
}

// NotSending fails the test if ch has a value ready to read
// within a very short duration.
func NotSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	timer := time.NewTimer(ScaleMs(15))
	defer timer.Stop()

	select {
	case v := <-ch:
		t.Fatalf("expected no value to be sent, got %v", v)
	case <-timer.C:
		// Okay.
	}
}
