package ratelimit

// state is the mutable core of a Limiter. It is touched only by the
// limiter goroutine.
//
// Token counts in limits are as of lastHit. Each request settles a view of
// all limits against the same elapsed time; only a successful hit commits
// that view and moves lastHit forward.
type state struct {
	limits  []Limit
	scratch []Limit
	lastHit int64
}

func newState(limits []Limit, now int64) *state {
	owned := make([]Limit, len(limits))
	copy(owned, limits)
	return &state{
		limits:  owned,
		scratch: make([]Limit, len(limits)),
		lastHit: now,
	}
}

// settle replenishes every limit into the scratch view and returns it
// together with the elapsed time it was settled against.
func (s *state) settle(now int64) ([]Limit, int64) {
	elapsed := max(now-s.lastHit, 0)
	for i, l := range s.limits {
		s.scratch[i] = replenish(l, elapsed)
	}
	return s.scratch, elapsed
}

// hit tries to take one token from every limit. On the first empty limit it
// returns that limit's description and commits nothing.
func (s *state) hit(now int64) (string, bool) {
	view, _ := s.settle(now)
	for i := range view {
		next, ok := take(view[i])
		if !ok {
			return view[i].description, false
		}
		view[i] = next
	}

	s.limits, s.scratch = view, s.limits
	s.lastHit = now
	return "", true
}

// ask returns the longest wait any limit imposes on n more requests.
func (s *state) ask(now, n int64) int64 {
	view, elapsed := s.settle(now)
	var worst int64
	for _, l := range view {
		if cost := waitCost(l, n, elapsed); cost > worst {
			worst = cost
		}
	}
	return worst
}

// status returns a settled copy of every limit.
func (s *state) status(now int64) []Status {
	view, _ := s.settle(now)
	out := make([]Status, len(view))
	for i, l := range view {
		out[i] = Status{
			Description:    l.description,
			Tokens:         l.tokens,
			Burst:          l.burst,
			RefillInterval: l.RefillInterval(),
		}
	}
	return out
}
