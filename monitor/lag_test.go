package monitor

import (
	"testing"
	"time"
)

func TestLagMonitorReadAndReset(t *testing.T) {
	l := NewLagMonitor(10 * time.Millisecond)

	if mean, max := l.ReadAndReset(); mean != nil || max != nil {
		t.Fatal("expected no readings before any measurement")
	}

	l.record(1 * time.Millisecond)
	l.record(2 * time.Millisecond)
	l.record(4*time.Millisecond + 5*time.Microsecond)
	l.record(-time.Millisecond)

	mean, max := l.ReadAndReset()
	if mean == nil || max == nil {
		t.Fatal("expected readings")
	}
	if *mean != 1.75 {
		t.Errorf("expected mean 1.75ms, got %v", *mean)
	}
	if *max != 4.01 && *max != 4.0 {
		t.Errorf("expected max about 4.00ms, got %v", *max)
	}

	if mean, max := l.ReadAndReset(); mean != nil || max != nil {
		t.Error("expected readings to be reset after read")
	}
}

func TestLagMonitorLifecycle(t *testing.T) {
	l := NewLagMonitor(time.Millisecond)
	l.Stop() // never started

	l.Start()
	l.Start()
	time.Sleep(50 * time.Millisecond)
	l.Stop()
	l.Stop()

	mean, max := l.ReadAndReset()
	if mean == nil || max == nil {
		t.Fatal("expected the background goroutine to record delays")
	}
	if *mean < 0 || *max < *mean {
		t.Errorf("inconsistent readings mean=%v max=%v", *mean, *max)
	}
}
