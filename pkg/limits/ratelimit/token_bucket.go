package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// FromRate builds a limit that admits hits requests per period.
//
// The refill interval is period/hits rounded up, so the bucket never grants
// more throughput than configured when period is not evenly divisible by
// hits. The bucket starts full with a burst capacity of hits.
//
// Non-positive hits or period produce an invalid limit that New rejects.
//
// Example:
//
//	// 61 requests per hour: one token every 59.016393443s
//	limit := FromRate(61, time.Hour, "61 requests per hour")
func FromRate(hits int64, period time.Duration, description string) Limit {
	if hits <= 0 || period <= 0 {
		return Limit{description: description}
	}

	ns := int64(period)
	refill := ns / hits
	if ns%hits != 0 {
		refill++
	}

	return Limit{
		refill:      refill,
		tokens:      hits, // Start with full bucket
		burst:       hits,
		description: description,
	}
}

// PerSecond returns a limit of hits requests per second.
func PerSecond(hits int64) Limit {
	return FromRate(hits, time.Second, fmt.Sprintf("%d requests per second", hits))
}

// PerSeconds returns a limit of hits requests per n seconds.
func PerSeconds(hits, n int64) Limit {
	return perUnits(hits, n, time.Second, "seconds")
}

// PerMinute returns a limit of hits requests per minute.
func PerMinute(hits int64) Limit {
	return FromRate(hits, time.Minute, fmt.Sprintf("%d requests per minute", hits))
}

// PerMinutes returns a limit of hits requests per n minutes.
func PerMinutes(hits, n int64) Limit {
	return perUnits(hits, n, time.Minute, "minutes")
}

// PerHour returns a limit of hits requests per hour.
func PerHour(hits int64) Limit {
	return FromRate(hits, time.Hour, fmt.Sprintf("%d requests per hour", hits))
}

// PerHours returns a limit of hits requests per n hours.
func PerHours(hits, n int64) Limit {
	return perUnits(hits, n, time.Hour, "hours")
}

func perUnits(hits, n int64, unit time.Duration, label string) Limit {
	description := fmt.Sprintf("%d requests per %d %s", hits, n, label)
	if n <= 0 || n > math.MaxInt64/int64(unit) {
		return Limit{description: description}
	}
	return FromRate(hits, time.Duration(n)*unit, description)
}

// WithBurst returns a copy of l with a different bucket capacity.
// Current tokens are capped at the new burst; a larger burst fills as
// tokens are earned.
func (l Limit) WithBurst(burst int64) Limit {
	if burst <= 0 {
		l.burst, l.tokens = 0, 0
		return l
	}
	l.burst = burst
	l.tokens = min(l.tokens, burst)
	return l
}

// IsValid reports whether l can be enforced: it must hold at least one
// token, stay within its burst, earn tokens at a positive interval and
// carry a description.
func IsValid(l Limit) bool {
	return l.tokens > 0 &&
		l.burst >= l.tokens &&
		l.refill > 0 &&
		l.description != ""
}

// replenish credits the tokens earned over elapsed nanoseconds, capped at
// burst. Partial progress toward the next token is dropped.
func replenish(l Limit, elapsed int64) Limit {
	if elapsed <= 0 || l.refill <= 0 {
		return l
	}

	earned := elapsed / l.refill
	if earned >= l.burst-l.tokens {
		l.tokens = l.burst
	} else {
		l.tokens += earned
	}
	return l
}

// take consumes one token if one is available.
func take(l Limit) (Limit, bool) {
	if l.tokens <= 0 {
		return l, false
	}
	l.tokens--
	return l, true
}

// waitCost projects the nanoseconds until n requests fit in l.
//
// A single missing token costs the time already accrued since the last
// hit; each further missing token adds a full refill interval. The result
// saturates at math.MaxInt64.
func waitCost(l Limit, n, sinceLastHit int64) int64 {
	if n <= 0 {
		return 0
	}

	missing := n - l.tokens
	switch {
	case missing <= 0:
		return 0
	case missing == 1:
		return sinceLastHit
	}

	extra := missing - 1
	if extra > (math.MaxInt64-sinceLastHit)/l.refill {
		return math.MaxInt64
	}
	return sinceLastHit + l.refill*extra
}
