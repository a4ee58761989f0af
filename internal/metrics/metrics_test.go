package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type captureBackend struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
	flushes  int
}

func newCapture() *captureBackend {
	return &captureBackend{counters: map[string]float64{}, samples: map[string][]float64{}}
}

func key(name string, l Labels) string {
	return name + "|" + l["step"] + "|" + l["status"] + "|" + l["kind"]
}

func (c *captureBackend) IncCounter(name string, delta float64, l Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key(name, l)] += delta
}

func (c *captureBackend) ObserveHistogram(name string, v float64, l Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples[key(name, l)] = append(c.samples[key(name, l)], v)
}

func (c *captureBackend) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

func TestSetBackend_RoutesCalls(t *testing.T) {
	c := newCapture()
	SetBackend(c)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("convert", nil, 1500*time.Millisecond)
	RecordStep("convert", errors.New("boom"), time.Second)
	RecordRecords("converted", 3)
	RecordRecords("converted", 0)
	IncCounter(LinesTotal, 4, nil)
	if err := Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}

	if got := c.counters[key(StepTotal, Labels{"step": "convert", "status": "ok"})]; got != 1 {
		t.Fatalf("ok steps=%v, want 1", got)
	}
	if got := c.counters[key(StepTotal, Labels{"step": "convert", "status": "error"})]; got != 1 {
		t.Fatalf("error steps=%v, want 1", got)
	}
	if got := c.samples[key(StepDurationSeconds, Labels{"step": "convert", "status": "ok"})]; len(got) != 1 || got[0] != 1.5 {
		t.Fatalf("duration samples=%v, want [1.5]", got)
	}
	if got := c.counters[key(RecordsTotal, Labels{"kind": "converted"})]; got != 3 {
		t.Fatalf("records=%v, want 3", got)
	}
	if got := c.counters[key(LinesTotal, nil)]; got != 4 {
		t.Fatalf("lines=%v, want 4", got)
	}
	if c.flushes != 1 {
		t.Fatalf("flushes=%d, want 1", c.flushes)
	}
}

func TestNopBackendByDefault(t *testing.T) {
	SetBackend(nil)
	IncCounter(LinesTotal, 1, nil)
	ObserveHistogram(StepDurationSeconds, 1, nil)
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush() err=%v", err)
	}
}
