package ratelimit

// ChildSpec describes how to start a named limiter. Supervisors keep the
// spec and call Start again to replace a limiter.
type ChildSpec struct {
	// ID names the limiter.
	ID string

	// Limits are enforced in order.
	Limits []Limit

	// Options are applied after WithName(ID).
	Options []Option
}

// NewChildSpec returns a spec for a limiter named id.
func NewChildSpec(id string, limits []Limit, opts ...Option) ChildSpec {
	return ChildSpec{ID: id, Limits: limits, Options: opts}
}

// Start validates the limits and starts the limiter.
func (s ChildSpec) Start() (*Limiter, error) {
	opts := make([]Option, 0, len(s.Options)+1)
	opts = append(opts, WithName(s.ID))
	opts = append(opts, s.Options...)
	return New(s.Limits, opts...)
}
