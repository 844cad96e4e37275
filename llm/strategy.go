package llm

import (
	"fmt"
	"sort"
)

// Strategy is the policy determining provider try-order for one routed call
type Strategy int

const (
	// StrategyFallback tries providers in registration order
	StrategyFallback Strategy = iota
	// StrategyCheapest orders providers by static cost rank
	StrategyCheapest
	// StrategyFastest orders providers by static speed rank
	StrategyFastest
	// StrategyBestQuality orders providers by static quality rank
	StrategyBestQuality
	// StrategyRoundRobin rotates the registration order with a cursor that
	// advances on every routed call
	StrategyRoundRobin
)

// String implements fmt.Stringer
func (s Strategy) String() string {
	switch s {
	case StrategyFallback:
		return "fallback"
	case StrategyCheapest:
		return "cheapest"
	case StrategyFastest:
		return "fastest"
	case StrategyBestQuality:
		return "best_quality"
	case StrategyRoundRobin:
		return "round_robin"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a config string to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "fallback":
		return StrategyFallback, nil
	case "cheapest":
		return StrategyCheapest, nil
	case "fastest":
		return StrategyFastest, nil
	case "best_quality":
		return StrategyBestQuality, nil
	case "round_robin":
		return StrategyRoundRobin, nil
	default:
		return StrategyFallback, fmt.Errorf("unknown strategy: %q", name)
	}
}

// rankOf extracts the relevant static rank from a capability descriptor.
// Zero means unranked.
func rankOf(s Strategy, caps Capabilities) int {
	switch s {
	case StrategyCheapest:
		return caps.CostRank
	case StrategyFastest:
		return caps.SpeedRank
	case StrategyBestQuality:
		return caps.QualityRank
	default:
		return 0
	}
}

// OrderCandidates computes the try-order for a routed call. It is a pure
// function of the strategy, the keys in registration order, each key's
// capabilities, and the round-robin cursor value. Ranked strategies sort
// stably with unranked keys last; round-robin rotates the registration order.
func OrderCandidates(s Strategy, keys []string, caps func(key string) Capabilities, cursor uint64) []string {
	out := make([]string, len(keys))
	copy(out, keys)

	switch s {
	case StrategyCheapest, StrategyFastest, StrategyBestQuality:
		sort.SliceStable(out, func(i, j int) bool {
			ri, rj := rankOf(s, caps(out[i])), rankOf(s, caps(out[j]))
			if ri == 0 {
				return false
			}
			if rj == 0 {
				return true
			}
			return ri < rj
		})
	case StrategyRoundRobin:
		if n := len(out); n > 0 {
			rotated := make([]string, n)
			start := int(cursor % uint64(n))
			for i := 0; i < n; i++ {
				rotated[i] = out[(start+i)%n]
			}
			return rotated
		}
	}

	return out
}
