package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseLimit parses a rule of the form "<hits>/<period>".
//
// The period is either a unit name ("s", "sec", "second", "m", "min",
// "minute", "h", "hr", "hour") or a Go duration ("5m", "30s", "2h").
// Whole multiples of a unit get the matching Per* description:
//
//	ParseLimit("100/hour") // "100 requests per hour"
//	ParseLimit("15/5m")    // "15 requests per 5 minutes"
//	ParseLimit("3/1500ms") // "3 requests per 1.5s"
func ParseLimit(s string) (Limit, error) {
	hitsPart, periodPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Limit{}, fmt.Errorf("invalid limit %q: expected <hits>/<period>", s)
	}

	hits, err := strconv.ParseInt(strings.TrimSpace(hitsPart), 10, 64)
	if err != nil {
		return Limit{}, fmt.Errorf("invalid limit %q: hits: %w", s, err)
	}
	if hits <= 0 {
		return Limit{}, fmt.Errorf("invalid limit %q: hits must be positive", s)
	}

	periodPart = strings.ToLower(strings.TrimSpace(periodPart))
	switch periodPart {
	case "s", "sec", "second":
		return PerSecond(hits), nil
	case "m", "min", "minute":
		return PerMinute(hits), nil
	case "h", "hr", "hour":
		return PerHour(hits), nil
	}

	period, err := time.ParseDuration(periodPart)
	if err != nil {
		return Limit{}, fmt.Errorf("invalid limit %q: period: %w", s, err)
	}
	if period <= 0 {
		return Limit{}, fmt.Errorf("invalid limit %q: period must be positive", s)
	}

	switch {
	case period == time.Second:
		return PerSecond(hits), nil
	case period == time.Minute:
		return PerMinute(hits), nil
	case period == time.Hour:
		return PerHour(hits), nil
	case period%time.Hour == 0:
		return PerHours(hits, int64(period/time.Hour)), nil
	case period%time.Minute == 0:
		return PerMinutes(hits, int64(period/time.Minute)), nil
	case period%time.Second == 0:
		return PerSeconds(hits, int64(period/time.Second)), nil
	}

	return FromRate(hits, period, fmt.Sprintf("%d requests per %s", hits, period)), nil
}

// ParseLimits parses each rule in order.
func ParseLimits(rules []string) ([]Limit, error) {
	limits := make([]Limit, 0, len(rules))
	for _, rule := range rules {
		l, err := ParseLimit(rule)
		if err != nil {
			return nil, err
		}
		limits = append(limits, l)
	}
	return limits, nil
}
