package pushclient

import "time"

// Delay returns the wait before reconnect attempt k (1-indexed):
// base * 2^(k-1). Attempts below 1 are treated as 1.
func Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Cap the shift so large attempt counts cannot overflow.
	if attempt > 31 {
		attempt = 31
	}
	return base * time.Duration(1<<(attempt-1))
}

// AfterFunc schedules f after d and returns a function that cancels it.
// The returned stop reports whether the call prevented f from running.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
