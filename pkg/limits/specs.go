package limits

import (
	"fmt"

	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// SpecsFromConfig parses every configured limiter into a ChildSpec.
// Limits keep their configured order; burst overrides are applied by
// matching the limit entry exactly as written.
func SpecsFromConfig(limiters []config.LimiterConfig) ([]ratelimit.ChildSpec, error) {
	specs := make([]ratelimit.ChildSpec, 0, len(limiters))

	for _, lc := range limiters {
		parsed := make([]ratelimit.Limit, 0, len(lc.Limits))
		for i, s := range lc.Limits {
			limit, err := ratelimit.ParseLimit(s)
			if err != nil {
				return nil, fmt.Errorf("limiter %q limits[%d]: %w", lc.Name, i, err)
			}
			if burst, ok := lc.BurstOverrides[s]; ok {
				limit = limit.WithBurst(burst)
			}
			parsed = append(parsed, limit)
		}
		specs = append(specs, ratelimit.NewChildSpec(lc.Name, parsed))
	}

	return specs, nil
}
