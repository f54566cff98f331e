package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Collector captures counters and gauges for the diagnostics endpoint.
type Collector interface {
	IncCounter(name string, delta uint64)
	SetGauge(name string, value uint64)
}

// Registry is an in-memory Collector with a plain-text exposition format.
type Registry struct {
	mu       sync.Mutex
	counters map[string]uint64
	gauges   map[string]uint64
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]uint64),
		gauges:   make(map[string]uint64),
	}
}

func (r *Registry) IncCounter(name string, delta uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

func (r *Registry) SetGauge(name string, value uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = value
}

// Counter returns the current value of a counter.
func (r *Registry) Counter(name string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// Render produces one "name value" line per metric, sorted by name.
func (r *Registry) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, 0, len(r.counters)+len(r.gauges))
	for name, v := range r.counters {
		lines = append(lines, fmt.Sprintf("%s %d", name, v))
	}
	for name, v := range r.gauges {
		lines = append(lines, fmt.Sprintf("%s %d", name, v))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}
