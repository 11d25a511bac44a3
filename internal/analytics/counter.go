// Package analytics builds read-only reports from stored journey, checkout,
// order and referral rows. Every builder is a pure function of its inputs.
package analytics

import "sort"

// Count is one entry of a ranked Counter.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Counter tallies occurrences per key. Ranking does not depend on the order
// keys were added: higher counts first, ties broken by key.
type Counter struct {
	counts map[string]int
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add counts key once. Empty keys are ignored.
func (c *Counter) Add(key string) {
	c.AddN(key, 1)
}

// AddN counts key n times. Empty keys are ignored.
func (c *Counter) AddN(key string, n int) {
	if key == "" {
		return
	}
	c.counts[key] += n
}

// Get returns the count for key.
func (c *Counter) Get(key string) int {
	return c.counts[key]
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int {
	return len(c.counts)
}

// Total returns the sum of all counts.
func (c *Counter) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Top returns at most n entries in rank order. n <= 0 returns all entries.
func (c *Counter) Top(n int) []Count {
	out := make([]Count, 0, len(c.counts))
	for k, v := range c.counts {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Map returns a copy of the raw counts.
func (c *Counter) Map() map[string]int {
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
