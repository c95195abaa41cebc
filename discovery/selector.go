package discovery

import "fmt"

// Selector picks one endpoint out of a lookup result.
//
// A record is healthy when every one of its checks is passing. A record
// with no checks at all is healthy only if AllowUnchecked is set. Among
// healthy records the first one in registry order wins, so the same input
// always yields the same endpoint.
type Selector struct {
	AllowUnchecked bool
}

// Healthy returns the healthy records in their original order.
func (s Selector) Healthy(records []HealthRecord) []HealthRecord {
	out := make([]HealthRecord, 0, len(records))
	for _, r := range records {
		if s.isHealthy(r) {
			out = append(out, r)
		}
	}
	return out
}

// Select returns the endpoint of the first healthy record.
func (s Selector) Select(records []HealthRecord) (Endpoint, error) {
	for _, r := range records {
		if !s.isHealthy(r) {
			continue
		}
		return Endpoint{Host: r.Host(), Port: r.Port}, nil
	}
	return Endpoint{}, fmt.Errorf("%w: %d candidate(s), none passing", ErrNoHealthyEndpoint, len(records))
}

func (s Selector) isHealthy(r HealthRecord) bool {
	if len(r.Checks) == 0 {
		return s.AllowUnchecked
	}
	for _, c := range r.Checks {
		if c.Status != CheckPassing {
			return false
		}
	}
	return true
}
