package flow

import "time"

// Countdown is the unlock state of time gated content.
type Countdown struct {
	Target    time.Time
	Remaining time.Duration
	Unlocked  bool
}

// Seconds is the remaining time for templates and the API.
func (c Countdown) Seconds() int64 {
	return int64(c.Remaining / time.Second)
}

// CountdownFor uses the personal target of f, falling back to the site wide
// target. Without any target the content is unlocked.
func CountdownFor(f *Flow, global, now time.Time) Countdown {
	target := global
	if f != nil && !f.CountdownTarget.IsZero() {
		target = f.CountdownTarget
	}
	if target.IsZero() || !now.Before(target) {
		return Countdown{Target: target, Unlocked: true}
	}
	return Countdown{Target: target, Remaining: target.Sub(now)}
}
