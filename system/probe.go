package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// ErrUnavailable 当前平台不支持该指标
var ErrUnavailable = errors.New("metric unavailable on this platform")

// 包初始化时间，作为进程启动时间的兜底值
var initTime = time.Now()

// CPUTimes 所有核心累计的CPU时间（秒）
type CPUTimes struct {
	Idle  float64
	Total float64
	Cores int
}

// HeapStats 运行时堆内存（字节）
type HeapStats struct {
	Used  uint64
	Total uint64
}

// HostMemory 系统内存（字节）
type HostMemory struct {
	Total     uint64
	Available uint64
}

// UsedPercent 系统内存使用率
func (m HostMemory) UsedPercent() (float64, bool) {
	if m.Total == 0 || m.Available > m.Total {
		return 0, false
	}
	return float64(m.Total-m.Available) / float64(m.Total) * 100, true
}

// NetCounters 除回环接口外所有网卡的累计收发字节数
type NetCounters struct {
	RxBytes uint64
	TxBytes uint64
}

// Probe 平台探针，每个方法独立读取，失败互不影响
type Probe interface {
	CPUTimes(ctx context.Context) (CPUTimes, error)
	ProcessCPUTime(ctx context.Context) (time.Duration, error)
	ProcessRSS(ctx context.Context) (uint64, error)
	Heap() HeapStats
	HostMemory(ctx context.Context) (HostMemory, error)
	LoadAverage(ctx context.Context) (float64, error)
	NetCounters(ctx context.Context) (NetCounters, error)
	ActiveHandles(ctx context.Context) (int, error)
	Goroutines() int
	StartTime() time.Time
}

// HostProbe 基于 gopsutil 的本机探针
type HostProbe struct {
	open func(ctx context.Context, pid int32) (*process.Process, error)

	mu    sync.Mutex
	proc  *process.Process
	start time.Time
}

// NewHostProbe 创建本机探针
func NewHostProbe() *HostProbe {
	return &HostProbe{open: process.NewProcessWithContext}
}

// self 打开本进程句柄，成功后缓存，失败则下次重试
func (p *HostProbe) self(ctx context.Context) (*process.Process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.proc != nil {
		return p.proc, nil
	}
	proc, err := p.open(ctx, int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	p.proc = proc
	p.start = initTime
	if ms, err := proc.CreateTimeWithContext(ctx); err == nil && ms > 0 {
		p.start = time.UnixMilli(ms)
	}
	return p.proc, nil
}

// CPUTimes 汇总各核心的CPU时间
func (p *HostProbe) CPUTimes(ctx context.Context) (CPUTimes, error) {
	perCore, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return CPUTimes{}, fmt.Errorf("cpu times: %w", err)
	}
	if len(perCore) == 0 {
		return CPUTimes{}, ErrUnavailable
	}
	return SumCPUTimes(perCore), nil
}

// SumCPUTimes 累加每个核心的时间，空闲时间包含 iowait
func SumCPUTimes(perCore []cpu.TimesStat) CPUTimes {
	var t CPUTimes
	for _, c := range perCore {
		idle := c.Idle + c.Iowait
		t.Idle += idle
		t.Total += c.User + c.Nice + c.System + c.Irq + c.Softirq + c.Steal + idle
	}
	t.Cores = len(perCore)
	return t
}

// ProcessCPUTime 本进程累计的用户态+内核态CPU时间
func (p *HostProbe) ProcessCPUTime(ctx context.Context) (time.Duration, error) {
	return processCPUTime()
}

// ProcessRSS 本进程常驻内存
func (p *HostProbe) ProcessRSS(ctx context.Context) (uint64, error) {
	proc, err := p.self(ctx)
	if err != nil {
		return 0, fmt.Errorf("open self process: %w", err)
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("process memory: %w", err)
	}
	return info.RSS, nil
}

// Heap 读取 Go 运行时堆内存
func (p *HostProbe) Heap() HeapStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return HeapStats{Used: ms.HeapAlloc, Total: ms.HeapSys}
}

// HostMemory 系统内存总量与可用量
func (p *HostProbe) HostMemory(ctx context.Context) (HostMemory, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return HostMemory{}, fmt.Errorf("virtual memory: %w", err)
	}
	return HostMemory{Total: v.Total, Available: v.Available}, nil
}

// LoadAverage 1分钟平均负载
func (p *HostProbe) LoadAverage(ctx context.Context) (float64, error) {
	if runtime.GOOS == "windows" {
		return 0, ErrUnavailable
	}
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("load average: %w", err)
	}
	return avg.Load1, nil
}

// NetCounters 汇总非回环网卡的收发字节数
func (p *HostProbe) NetCounters(ctx context.Context) (NetCounters, error) {
	stats, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return NetCounters{}, fmt.Errorf("net counters: %w", err)
	}
	if len(stats) == 0 {
		return NetCounters{}, ErrUnavailable
	}
	return SumNetCounters(stats), nil
}

// SumNetCounters 累加网卡计数，跳过回环接口
func SumNetCounters(stats []net.IOCountersStat) NetCounters {
	var n NetCounters
	for _, s := range stats {
		if IsLoopback(s.Name) {
			continue
		}
		n.RxBytes += s.BytesRecv
		n.TxBytes += s.BytesSent
	}
	return n
}

// IsLoopback 判断网卡名是否为回环接口（lo, lo0, Loopback Pseudo-Interface 1 ...）
func IsLoopback(name string) bool {
	if strings.HasPrefix(strings.ToLower(name), "loopback") {
		return true
	}
	if !strings.HasPrefix(name, "lo") {
		return false
	}
	for _, r := range name[2:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ActiveHandles 本进程打开的文件描述符/句柄数
func (p *HostProbe) ActiveHandles(ctx context.Context) (int, error) {
	proc, err := p.self(ctx)
	if err != nil {
		return 0, fmt.Errorf("open self process: %w", err)
	}
	n, err := proc.NumFDsWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("open handles: %w", err)
	}
	return int(n), nil
}

// Goroutines 当前 goroutine 数量
func (p *HostProbe) Goroutines() int {
	return runtime.NumGoroutine()
}

// StartTime 进程启动时间
func (p *HostProbe) StartTime() time.Time {
	if _, err := p.self(context.Background()); err != nil {
		return initTime
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.start
}

var _ Probe = (*HostProbe)(nil)
