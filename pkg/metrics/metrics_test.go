package metrics

import (
	"sync"
	"testing"
)

func TestRegistry_Render(t *testing.T) {
	r := NewRegistry()
	r.IncCounter("scans_total", 1)
	r.IncCounter("scans_total", 2)
	r.SetGauge("tables", 4)
	r.SetGauge("tables", 5)

	if got := r.Counter("scans_total"); got != 3 {
		t.Fatalf("expected counter 3, got %d", got)
	}

	want := "scans_total 3\ntables 5\n"
	if got := r.Render(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.IncCounter("hits", 1)
			}
		}()
	}
	wg.Wait()

	if got := r.Counter("hits"); got != 8000 {
		t.Fatalf("expected 8000 hits, got %d", got)
	}
}
