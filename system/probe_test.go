package system

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

func TestSumCPUTimes(t *testing.T) {
	perCore := []cpu.TimesStat{
		{CPU: "cpu0", User: 10, System: 5, Idle: 80, Iowait: 5},
		{CPU: "cpu1", User: 20, Nice: 1, System: 4, Idle: 70, Irq: 2, Softirq: 3},
	}

	got := SumCPUTimes(perCore)
	if got.Cores != 2 {
		t.Errorf("expected 2 cores, got %d", got.Cores)
	}
	if got.Idle != 155 {
		t.Errorf("expected idle 155 (idle+iowait), got %v", got.Idle)
	}
	if got.Total != 200 {
		t.Errorf("expected total 200, got %v", got.Total)
	}
}

func TestSumNetCountersSkipsLoopback(t *testing.T) {
	stats := []net.IOCountersStat{
		{Name: "lo", BytesRecv: 1 << 20, BytesSent: 1 << 20},
		{Name: "eth0", BytesRecv: 1000, BytesSent: 400},
		{Name: "wlan0", BytesRecv: 500, BytesSent: 100},
		{Name: "lo0", BytesRecv: 7, BytesSent: 7},
	}

	got := SumNetCounters(stats)
	if got.RxBytes != 1500 || got.TxBytes != 500 {
		t.Fatalf("expected rx=1500 tx=500, got rx=%d tx=%d", got.RxBytes, got.TxBytes)
	}
}

func TestIsLoopback(t *testing.T) {
	cases := map[string]bool{
		"lo":                          true,
		"lo0":                         true,
		"Loopback Pseudo-Interface 1": true,
		"eth0":                        false,
		"lowpan0":                     false,
		"docker0":                     false,
		"enp3s0":                      false,
	}
	for name, want := range cases {
		if got := IsLoopback(name); got != want {
			t.Errorf("IsLoopback(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestHostMemoryUsedPercent(t *testing.T) {
	pct, ok := HostMemory{Total: 1000, Available: 250}.UsedPercent()
	if !ok || pct != 75 {
		t.Fatalf("expected 75%%, got %v (ok=%v)", pct, ok)
	}
	if _, ok := (HostMemory{}).UsedPercent(); ok {
		t.Error("expected zero total to be unavailable")
	}
	if _, ok := (HostMemory{Total: 10, Available: 20}).UsedPercent(); ok {
		t.Error("expected available > total to be unavailable")
	}
}

func TestHostProbeReadsSelf(t *testing.T) {
	p := NewHostProbe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	heap := p.Heap()
	if heap.Used == 0 || heap.Total < heap.Used {
		t.Errorf("unexpected heap stats %+v", heap)
	}
	if p.Goroutines() < 1 {
		t.Error("expected at least one goroutine")
	}
	if p.StartTime().After(time.Now()) {
		t.Error("start time is in the future")
	}

	if _, err := p.ProcessCPUTime(ctx); err != nil && !errors.Is(err, ErrUnavailable) {
		if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
			t.Errorf("process cpu time: %v", err)
		}
	}

	if runtime.GOOS == "linux" {
		if _, err := p.CPUTimes(ctx); err != nil {
			t.Errorf("cpu times: %v", err)
		}
		if rss, err := p.ProcessRSS(ctx); err != nil || rss == 0 {
			t.Errorf("process rss = %d, err = %v", rss, err)
		}
	}
}

func TestHostProbeRetriesSelfAfterFailure(t *testing.T) {
	p := NewHostProbe()
	calls := 0
	p.open = func(ctx context.Context, pid int32) (*process.Process, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient failure")
		}
		return process.NewProcessWithContext(ctx, pid)
	}
	ctx := context.Background()

	if _, err := p.self(ctx); err == nil {
		t.Fatal("expected the first open to fail")
	}
	proc, err := p.self(ctx)
	if err != nil || proc == nil {
		t.Fatalf("expected the second open to succeed, err = %v", err)
	}
	if again, _ := p.self(ctx); again != proc {
		t.Error("expected the opened process to be cached")
	}
	if calls != 2 {
		t.Errorf("expected 2 open attempts, got %d", calls)
	}
}
