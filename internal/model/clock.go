package model

import (
	"fmt"
	"time"
)

// Clock reports wall-clock milliseconds anchored at server start, so
// durations stay monotonic even if the system clock steps.
type Clock struct {
	base  int64
	start time.Time
}

func NewClock() *Clock {
	return &Clock{base: time.Now().UnixMilli(), start: time.Now()}
}

// Now returns the current server time in milliseconds.
func (c *Clock) Now() int64 {
	return c.base + time.Since(c.start).Milliseconds()
}

// Since returns milliseconds elapsed since t, or -1 if t is unset.
func (c *Clock) Since(t int64) int {
	if t < 0 {
		return -1
	}

	return int(c.Now() - t)
}

// PrettyDuration renders a millisecond duration as "1d02h03m04s",
// "2h03m04s", "3m04s" or "4.05s". Negative durations render empty.
func PrettyDuration(ms int) string {
	if ms < 0 {
		return ""
	}

	t := ms
	i := t % 1000
	t /= 1000
	s := t % 60
	t /= 60
	m := t % 60
	t /= 60
	h := t % 24
	d := t / 24

	switch {
	case d > 0:
		return fmt.Sprintf("%dd%02dh%02dm%02ds", d, h, m, s)
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%d.%02ds", s, i/10)
	}
}
